package domain

import "context"

// Permission is a capability granted to an identity by its role.
type Permission string

const (
	PermTaskSubmit    Permission = "task:submit"
	PermTaskViewAll   Permission = "task:view_all"
	PermTaskDeleteAll Permission = "task:delete_all"
	PermQueueView     Permission = "queue:view"
	PermQueueManage   Permission = "queue:manage"
)

// Role is a named permission bundle.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
)

// rolePerms is the static role to permission table. Admin holds every
// permission; manager can see and manage the whole queue but not delete
// other users' tasks; user operates on own tasks only.
var rolePerms = map[Role]map[Permission]bool{
	RoleAdmin: {
		PermTaskSubmit:    true,
		PermTaskViewAll:   true,
		PermTaskDeleteAll: true,
		PermQueueView:     true,
		PermQueueManage:   true,
	},
	RoleManager: {
		PermTaskSubmit:  true,
		PermTaskViewAll: true,
		PermQueueView:   true,
		PermQueueManage: true,
	},
	RoleUser: {
		PermTaskSubmit: true,
		PermQueueView:  true,
	},
}

// Identity is the authenticated caller attached to each API request.
type Identity struct {
	UserID   string
	UserName string
	Role     Role
}

// HasPermission reports whether the identity's role grants p.
func (id Identity) HasPermission(p Permission) bool {
	return rolePerms[id.Role][p]
}

// CanAccessTask reports whether the identity may read or delete t. Owners
// always can; otherwise the matching *_ALL permission is required.
func (id Identity) CanAccessTask(t Task, p Permission) bool {
	if t.UserID == id.UserID {
		return true
	}
	return id.HasPermission(p)
}

// TokenVerifier resolves a bearer token into an Identity. Implementations
// return ErrUnauthorized for unknown or expired tokens.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}
