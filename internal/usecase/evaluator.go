package usecase

import (
	"strings"

	"github.com/arklim/practicum-auth/internal/core/domain"
)

// PermissionEvaluator answers authorization queries against the current
// session state. All queries are pure reads over a store snapshot; they are
// safe to call arbitrarily often.
type PermissionEvaluator struct {
	store *SessionStore
}

// NewPermissionEvaluator constructs an evaluator over the session store.
func NewPermissionEvaluator(store *SessionStore) *PermissionEvaluator {
	return &PermissionEvaluator{store: store}
}

// HasRole reports whether the identity holds the role, matching code or name
// case-insensitively.
func (e *PermissionEvaluator) HasRole(code string) bool {
	if code == "" {
		return false
	}
	for _, role := range e.store.State().Roles {
		if strings.EqualFold(role.Code, code) || strings.EqualFold(role.Name, code) {
			return true
		}
	}
	return false
}

// HasPermission reports whether the effective permission set contains the
// permission code.
func (e *PermissionEvaluator) HasPermission(code string) bool {
	if code == "" {
		return false
	}
	for _, permission := range e.store.State().Permissions {
		if permission.Code == code {
			return true
		}
	}
	return false
}

// CanAccess reports whether some effective permission grants the (module,
// action) pair.
func (e *PermissionEvaluator) CanAccess(module, action string) bool {
	if module == "" || action == "" {
		return false
	}
	for _, permission := range e.store.State().Permissions {
		if permission.Module == module && permission.Action == action {
			return true
		}
	}
	return false
}

// HasAnyPermission reports whether at least one of the codes is granted.
func (e *PermissionEvaluator) HasAnyPermission(codes ...string) bool {
	for _, code := range codes {
		if e.HasPermission(code) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether every code is granted.
func (e *PermissionEvaluator) HasAllPermissions(codes ...string) bool {
	for _, code := range codes {
		if !e.HasPermission(code) {
			return false
		}
	}
	return true
}

// IsAdmin reports whether the identity holds the ADMIN role.
func (e *PermissionEvaluator) IsAdmin() bool { return e.HasRole(domain.RoleAdmin) }

// IsDosen reports whether the identity holds the DOSEN role.
func (e *PermissionEvaluator) IsDosen() bool { return e.HasRole(domain.RoleDosen) }

// IsMahasiswa reports whether the identity holds the MAHASISWA role.
func (e *PermissionEvaluator) IsMahasiswa() bool { return e.HasRole(domain.RoleMahasiswa) }

// IsLaboran reports whether the identity holds the LABORAN role.
func (e *PermissionEvaluator) IsLaboran() bool { return e.HasRole(domain.RoleLaboran) }
