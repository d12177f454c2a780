package tenant

import (
	"errors"
	"time"
)

// Tenant is one homeowners association. Every domain row in the system hangs
// off a tenant id; nothing is shared between tenants.
type Tenant struct {
	ID        int64
	Name      string
	Slug      string
	Timezone  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Role orders what a member may do within a tenant.
type Role string

const (
	RoleReadonly Role = "READONLY"
	RoleBoard    Role = "BOARD"
	RoleManager  Role = "MANAGER"
	RoleAdmin    Role = "ADMIN"
)

var roleLevels = map[Role]int{
	RoleReadonly: 0,
	RoleBoard:    1,
	RoleManager:  2,
	RoleAdmin:    3,
}

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

// Allows reports whether the role meets or exceeds the required role.
func (r Role) Allows(required Role) bool {
	return roleLevels[r] >= roleLevels[required]
}

// Membership links a user to a tenant with a role.
type Membership struct {
	ID        int64
	TenantID  int64
	UserID    int64
	Role      Role
	CreatedAt time.Time
}

var (
	// ErrTenantNotFound occurs when a tenant is missing.
	ErrTenantNotFound = errors.New("tenant: not found")
	// ErrSlugTaken occurs when onboarding reuses an existing slug.
	ErrSlugTaken = errors.New("tenant: slug already taken")
	// ErrMemberExists occurs when a user already belongs to the tenant.
	ErrMemberExists = errors.New("tenant: user is already a member")
	// ErrNotMember occurs when looking up a membership that does not exist.
	ErrNotMember = errors.New("tenant: user is not a member")
	// ErrInvalidRole occurs on an unknown role value.
	ErrInvalidRole = errors.New("tenant: invalid role")
)
