package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/practicum-auth/internal/core/domain"
)

// ErrorResponse represents a generic error payload with request ID for debugging.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// NewErrorResponse creates an error response with request ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	requestID, _ := c.Get("request_id")
	requestIDStr, _ := requestID.(string)

	return ErrorResponse{
		Error:     errorMsg,
		RequestID: requestIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SignUpRequest defines the payload for account creation.
type SignUpRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"full_name" binding:"required"`
}

// SwitchRoleRequest selects one of the held roles as the active role.
type SwitchRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// IdentitySummary is the minimal identity view returned by the API.
type IdentitySummary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// ProfileSummary is the directory profile view returned by the API.
type ProfileSummary struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	FullName    string  `json:"full_name"`
	NIMNIP      *string `json:"nim_nip,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
	RoleDefault *string `json:"role_default,omitempty"`
}

// RoleSummary describes a held role.
type RoleSummary struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// PermissionSummary describes a granted permission.
type PermissionSummary struct {
	ID     string `json:"id"`
	Code   string `json:"code"`
	Module string `json:"module"`
	Action string `json:"action"`
}

// SessionResponse is the full session snapshot returned by the API.
type SessionResponse struct {
	Phase       string              `json:"phase"`
	IsLoading   bool                `json:"is_loading"`
	Identity    *IdentitySummary    `json:"identity,omitempty"`
	Profile     *ProfileSummary     `json:"profile,omitempty"`
	Roles       []RoleSummary       `json:"roles"`
	Permissions []PermissionSummary `json:"permissions"`
	CurrentRole string              `json:"current_role,omitempty"`
	Warning     string              `json:"warning,omitempty"`
}

// NewSessionResponse maps the session aggregate to its API view.
func NewSessionResponse(state domain.AuthState) SessionResponse {
	resp := SessionResponse{
		Phase:       string(state.Phase()),
		IsLoading:   state.IsLoading,
		Roles:       make([]RoleSummary, 0, len(state.Roles)),
		Permissions: make([]PermissionSummary, 0, len(state.Permissions)),
		CurrentRole: state.CurrentRole,
	}

	if state.Identity != nil {
		resp.Identity = &IdentitySummary{ID: state.Identity.ID, Email: state.Identity.Email}
	}
	if state.Profile != nil {
		resp.Profile = &ProfileSummary{
			ID:          state.Profile.ID,
			Email:       state.Profile.Email,
			FullName:    state.Profile.FullName,
			NIMNIP:      state.Profile.NIMNIP,
			Phone:       state.Profile.Phone,
			AvatarURL:   state.Profile.AvatarURL,
			RoleDefault: state.Profile.RoleDefault,
		}
	}
	for _, role := range state.Roles {
		resp.Roles = append(resp.Roles, RoleSummary{ID: role.ID, Code: role.Code, Name: role.Name})
	}
	for _, perm := range state.Permissions {
		resp.Permissions = append(resp.Permissions, PermissionSummary{
			ID:     perm.ID,
			Code:   perm.Code,
			Module: perm.Module,
			Action: perm.Action,
		})
	}

	return resp
}

// SignUpResponse is returned after a successful account creation.
type SignUpResponse struct {
	Identity IdentitySummary `json:"identity"`
	Message  string          `json:"message"`
}

// AccessResponse answers a single authorization probe.
type AccessResponse struct {
	Allowed bool `json:"allowed"`
}

// LockoutResponse is returned when login is rejected by the attempt policy.
type LockoutResponse struct {
	Error             string `json:"error"`
	RetryAfterSeconds int    `json:"retry_after_seconds"`
	FailedAttempts    int    `json:"failed_attempts"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse describes per-dependency readiness results.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
