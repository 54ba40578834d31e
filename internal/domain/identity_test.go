package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRolePermissions(t *testing.T) {
	t.Parallel()
	admin := Identity{UserID: "u-admin", Role: RoleAdmin}
	manager := Identity{UserID: "u-mgr", Role: RoleManager}
	user := Identity{UserID: "u-1", Role: RoleUser}

	for _, p := range []Permission{PermTaskSubmit, PermTaskViewAll, PermTaskDeleteAll, PermQueueView, PermQueueManage} {
		assert.True(t, admin.HasPermission(p), "admin %s", p)
	}
	assert.True(t, manager.HasPermission(PermTaskViewAll))
	assert.True(t, manager.HasPermission(PermQueueManage))
	assert.False(t, manager.HasPermission(PermTaskDeleteAll))
	assert.True(t, user.HasPermission(PermTaskSubmit))
	assert.False(t, user.HasPermission(PermTaskViewAll))
	assert.False(t, user.HasPermission(PermQueueManage))
}

func TestCanAccessTask(t *testing.T) {
	t.Parallel()
	owner := Identity{UserID: "u-1", Role: RoleUser}
	other := Identity{UserID: "u-2", Role: RoleUser}
	mgr := Identity{UserID: "u-mgr", Role: RoleManager}
	task := Task{ID: "t1", UserID: "u-1"}

	assert.True(t, owner.CanAccessTask(task, PermTaskViewAll))
	assert.True(t, owner.CanAccessTask(task, PermTaskDeleteAll))
	assert.False(t, other.CanAccessTask(task, PermTaskViewAll))
	assert.True(t, mgr.CanAccessTask(task, PermTaskViewAll))
	assert.False(t, mgr.CanAccessTask(task, PermTaskDeleteAll))
}

func TestUnknownRoleHasNoPermissions(t *testing.T) {
	t.Parallel()
	anon := Identity{UserID: "x", Role: Role("ghost")}
	assert.False(t, anon.HasPermission(PermTaskSubmit))
}
