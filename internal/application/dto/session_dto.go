// Package dto provides data transfer objects for the application layer.
package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/sharedcookie/internal/domain/models"
)

// LoginRequest 登录请求；未提供 remember_me 时使用配置的默认值
type LoginRequest struct {
	Email      string `json:"email" binding:"required,email,max=254"`
	RememberMe *bool  `json:"remember_me,omitempty"`
}

// LoginResponse 登录响应，Cookie 本身通过 Set-Cookie 返回
type LoginResponse struct {
	Name         string    `json:"name"`
	CookieName   string    `json:"cookie_name"`
	ExpiresAt    time.Time `json:"expires_at"`
	IsPersistent bool      `json:"is_persistent"`
}

// ClaimDTO 声明 DTO
type ClaimDTO struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	ValueType string `json:"value_type,omitempty"`
	Issuer    string `json:"issuer,omitempty"`
}

// PrincipalResponse 当前用户信息响应
type PrincipalResponse struct {
	Name               string     `json:"name"`
	Email              string     `json:"email"`
	AuthenticationType string     `json:"authentication_type"`
	IssuedAt           *time.Time `json:"issued_at,omitempty"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	Claims             []ClaimDTO `json:"claims"`
}

// NewPrincipalResponse builds the response body of a validated principal.
func NewPrincipalResponse(p *models.Principal, ticket *models.Ticket) *PrincipalResponse {
	resp := &PrincipalResponse{
		Name:               p.Name(),
		Email:              p.Email(),
		AuthenticationType: p.Identity().AuthenticationType,
	}
	for _, c := range p.Claims().All() {
		resp.Claims = append(resp.Claims, ClaimDTO{
			Type:      c.Type,
			Value:     c.Value,
			ValueType: c.ValueType,
			Issuer:    c.Issuer,
		})
	}
	if ticket != nil {
		issued, expires := ticket.IssuedAt, ticket.ExpiresAt
		resp.IssuedAt, resp.ExpiresAt = &issued, &expires
	}
	return resp
}

// KeyInfoResponse 密钥元数据（不含密钥材料）
type KeyInfoResponse struct {
	ID          uuid.UUID `json:"id"`
	Status      string    `json:"status"`
	ActivatesAt time.Time `json:"activates_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}
