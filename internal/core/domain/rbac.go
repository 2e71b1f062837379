package domain

import "time"

// Well-known role codes in the practicum platform.
const (
	RoleAdmin     = "ADMIN"
	RoleDosen     = "DOSEN"
	RoleMahasiswa = "MAHASISWA"
	RoleLaboran   = "LABORAN"
)

// Role is a named bundle of permissions an identity can hold.
type Role struct {
	ID          string
	Code        string
	Name        string
	Description *string
	IsActive    bool
}

// Permission grants a fine-grained (module, action) capability.
type Permission struct {
	ID          string
	Code        string
	Module      string
	Action      string
	Description *string
}

// RoleAssignment links an identity to a role.
type RoleAssignment struct {
	UserID     string
	RoleID     string
	IsActive   bool
	AssignedAt time.Time
}

// RolePermission links a role with a permission.
type RolePermission struct {
	RoleID       string
	PermissionID string
}
