package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/practicum-auth/internal/core/domain"
	"github.com/arklim/practicum-auth/internal/core/port"
	"github.com/arklim/practicum-auth/internal/usecase"
)

// AuthHandler exposes the session lifecycle and authorization probe endpoints.
type AuthHandler struct {
	lifecycle *usecase.SessionLifecycleManager
	evaluator *usecase.PermissionEvaluator
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(lifecycle *usecase.SessionLifecycleManager, evaluator *usecase.PermissionEvaluator) *AuthHandler {
	return &AuthHandler{lifecycle: lifecycle, evaluator: evaluator}
}

// RegisterRoutes binds authentication routes.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/login", h.login)
	r.POST("/logout", h.logout)
	r.POST("/signup", h.signUp)
	r.POST("/switch-role", h.switchRole)
	r.POST("/refresh", h.refresh)
	r.GET("/session", h.session)
	r.GET("/can", h.can)
}

func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	result := h.lifecycle.Login(c.Request.Context(), port.Credentials{
		Email:    req.Email,
		Password: req.Password,
	})

	if !result.Success {
		var lockout *domain.LockoutError
		if errors.As(result.Err, &lockout) {
			c.JSON(http.StatusTooManyRequests, LockoutResponse{
				Error:             lockout.Error(),
				RetryAfterSeconds: int(lockout.RetryAfter().Seconds()),
				FailedAttempts:    lockout.FailedAttempts,
			})
			return
		}

		RespondWithMappedError(c, result.Err, []ErrorCase{
			{Err: domain.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid email or password"},
			{Err: domain.ErrNetwork, Status: http.StatusBadGateway, Message: "identity service unreachable"},
		}, http.StatusInternalServerError, "login failed")
		return
	}

	resp := NewSessionResponse(h.lifecycle.Store().State())
	// A degraded login still authenticates; surface the partial failure.
	if result.Err != nil {
		resp.Warning = result.Err.Error()
	}

	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) logout(c *gin.Context) {
	h.lifecycle.Logout(c.Request.Context())
	c.JSON(http.StatusOK, MessageResponse{Message: "signed out"})
}

func (h *AuthHandler) signUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid signup payload"))
		return
	}

	identity, err := h.lifecycle.SignUp(c.Request.Context(), port.SignUpInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		if errors.Is(err, domain.ErrWeakPassword) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, err.Error()))
			return
		}
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: domain.ErrNetwork, Status: http.StatusBadGateway, Message: "identity service unreachable"},
		}, http.StatusInternalServerError, "signup failed")
		return
	}

	c.JSON(http.StatusCreated, SignUpResponse{
		Identity: IdentitySummary{ID: identity.ID, Email: identity.Email},
		Message:  "account created",
	})
}

func (h *AuthHandler) switchRole(c *gin.Context) {
	var req SwitchRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid switch-role payload"))
		return
	}

	if err := h.lifecycle.SwitchRole(c.Request.Context(), req.Role); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: domain.ErrNotAuthenticated, Status: http.StatusUnauthorized, Message: "not authenticated"},
			{Err: domain.ErrRoleNotHeld, Status: http.StatusForbidden, Message: "role not held"},
		}, http.StatusInternalServerError, "role switch failed")
		return
	}

	c.JSON(http.StatusOK, NewSessionResponse(h.lifecycle.Store().State()))
}

func (h *AuthHandler) refresh(c *gin.Context) {
	if err := h.lifecycle.Refresh(c.Request.Context()); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: domain.ErrNotAuthenticated, Status: http.StatusUnauthorized, Message: "not authenticated"},
			{Err: domain.ErrNetwork, Status: http.StatusBadGateway, Message: "identity service unreachable"},
		}, http.StatusInternalServerError, "session refresh failed")
		return
	}

	c.JSON(http.StatusOK, NewSessionResponse(h.lifecycle.Store().State()))
}

func (h *AuthHandler) session(c *gin.Context) {
	c.JSON(http.StatusOK, NewSessionResponse(h.lifecycle.Store().State()))
}

// can answers a single authorization probe against the current session.
// Exactly one of ?role=, ?permission=, or ?module=&action= selects the check.
func (h *AuthHandler) can(c *gin.Context) {
	role := c.Query("role")
	permission := c.Query("permission")
	module := c.Query("module")
	action := c.Query("action")

	switch {
	case role != "":
		c.JSON(http.StatusOK, AccessResponse{Allowed: h.evaluator.HasRole(role)})
	case permission != "":
		c.JSON(http.StatusOK, AccessResponse{Allowed: h.evaluator.HasPermission(permission)})
	case module != "" && action != "":
		c.JSON(http.StatusOK, AccessResponse{Allowed: h.evaluator.CanAccess(module, action)})
	default:
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "specify role, permission, or module and action"))
	}
}
