package dto

import (
	"time"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

// UserDetails mirrors the user record the upstream login system hands over.
type UserDetails struct {
	EmpId string `json:"EmpId"`
	Role  string `json:"Role"`
	Name  string `json:"Name"`
}

// SessionRequest payload for POST /session.
type SessionRequest struct {
	UserDetails UserDetails `json:"userDetails"`
}

// SessionResponse returns the issued session.
type SessionResponse struct {
	Token     string      `json:"token"`
	SessionID string      `json:"session_id"`
	EmpID     string      `json:"emp_id"`
	Role      domain.Role `json:"role"`
	Name      string      `json:"name,omitempty"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// ToSessionUser converts the login payload.
func (d UserDetails) ToSessionUser() domain.SessionUser {
	return domain.SessionUser{EmpID: d.EmpId, Role: domain.Role(d.Role), Name: d.Name}
}
