package dto

import (
	"time"

	"github.com/turtacn/sharedcookie/pkg/errors"
)

// APIResponse 通用 API 响应结构
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorDTO   `json:"error,omitempty"`
	TraceID   string      `json:"trace_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// ErrorDTO 错误信息 DTO
type ErrorDTO struct {
	Code        string                 `json:"code"`
	Message     string                 `json:"message"`
	Description string                 `json:"description,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// ValidationErrorDTO 验证错误 DTO
type ValidationErrorDTO struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// SuccessResponse 创建成功响应
func SuccessResponse(data interface{}, traceID string) *APIResponse {
	return &APIResponse{
		Success:   true,
		Data:      data,
		TraceID:   traceID,
		Timestamp: time.Now().Unix(),
	}
}

// ErrorResponse 创建错误响应；未分类错误不暴露内部细节
func ErrorResponse(err error, traceID string) *APIResponse {
	var errorDTO *ErrorDTO
	if authErr, ok := errors.AsAuthError(err); ok {
		errorDTO = &ErrorDTO{
			Code:        authErr.Code(),
			Message:     authErr.Description(),
			Description: string(authErr.Kind()),
			Details:     authErr.Metadata(),
		}
	} else {
		errorDTO = &ErrorDTO{
			Code:    string(errors.KindInternal),
			Message: "Internal server error",
		}
	}

	return &APIResponse{
		Success:   false,
		Error:     errorDTO,
		TraceID:   traceID,
		Timestamp: time.Now().Unix(),
	}
}

// ValidationErrorResponse 创建验证错误响应
func ValidationErrorResponse(validationErrors []ValidationErrorDTO, traceID string) *APIResponse {
	details := make(map[string]interface{}, len(validationErrors))
	for _, ve := range validationErrors {
		details[ve.Field] = ve.Message
	}

	return &APIResponse{
		Success: false,
		Error: &ErrorDTO{
			Code:        string(errors.KindInvalidIdentity),
			Message:     "Validation failed",
			Description: "One or more fields failed validation",
			Details:     details,
		},
		TraceID:   traceID,
		Timestamp: time.Now().Unix(),
	}
}

// UnauthorizedResponse 创建未认证响应；所有 Cookie 校验失败共用同一响应体
func UnauthorizedResponse(traceID string) *APIResponse {
	return &APIResponse{
		Success: false,
		Error: &ErrorDTO{
			Code:    errors.CodeUnauthenticated,
			Message: "Authentication required",
		},
		TraceID:   traceID,
		Timestamp: time.Now().Unix(),
	}
}

// ServiceUnavailableResponse 创建服务不可用响应
func ServiceUnavailableResponse(message string, traceID string) *APIResponse {
	return &APIResponse{
		Success: false,
		Error: &ErrorDTO{
			Code:        "service_unavailable",
			Message:     "Service temporarily unavailable",
			Description: message,
		},
		TraceID:   traceID,
		Timestamp: time.Now().Unix(),
	}
}
