// Package service defines the interfaces for domain services.
package service

import (
	"time"
)

// Metrics defines the interface for collecting business metrics.
// The application layer stays independent of the monitoring backend.
// Metrics 定义了收集业务指标的接口，使应用层独立于具体的监控实现。
type Metrics interface {
	// RecordSessionIssue records one login cookie issuance.
	// RecordSessionIssue 记录一次登录 Cookie 签发。
	RecordSessionIssue(success bool, errorKind string, duration time.Duration)

	// RecordSessionValidate records one cookie validation; result is "ok" or the error kind.
	// RecordSessionValidate 记录一次 Cookie 校验，结果为 "ok" 或错误类型。
	RecordSessionValidate(result string, duration time.Duration)

	// RecordKeyRingRefresh records a key ring reload and the number of keys it produced.
	// RecordKeyRingRefresh 记录密钥环重新加载及其包含的密钥数量。
	RecordKeyRingRefresh(success bool, keyCount int)

	// RecordKeyStoreOperation records the latency and outcome of a key store call.
	// RecordKeyStoreOperation 记录密钥存储调用的延迟和结果。
	RecordKeyStoreOperation(store, operation string, duration time.Duration, err error)
}

// NoopMetrics discards every measurement.
type NoopMetrics struct{}

func (NoopMetrics) RecordSessionIssue(bool, string, time.Duration) {}
func (NoopMetrics) RecordSessionValidate(string, time.Duration) {}
func (NoopMetrics) RecordKeyRingRefresh(bool, int) {}
func (NoopMetrics) RecordKeyStoreOperation(string, string, time.Duration, error) {}
