package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hsemihaktas/TaskFlow/pkg/models"
)

var allRoles = []models.Role{models.RoleOwner, models.RoleAdmin, models.RoleMember}

func TestManagerPredicates(t *testing.T) {
	for _, r := range allRoles {
		expected := r != models.RoleMember
		assert.Equal(t, expected, CanInviteMembers(r), "CanInviteMembers(%s)", r)
		assert.Equal(t, expected, CanCreateProject(r), "CanCreateProject(%s)", r)
		assert.Equal(t, expected, CanManageTasks(r), "CanManageTasks(%s)", r)
		assert.Equal(t, expected, CanDeleteProject(r), "CanDeleteProject(%s)", r)
		assert.Equal(t, expected, CanDeleteTask(r), "CanDeleteTask(%s)", r)
	}
}

func TestCanDeleteOrganization(t *testing.T) {
	assert.True(t, CanDeleteOrganization(models.RoleOwner))
	assert.False(t, CanDeleteOrganization(models.RoleAdmin))
	assert.False(t, CanDeleteOrganization(models.RoleMember))
}

func TestCanUpdateMemberRole_NeverToOwnerNeverSelf(t *testing.T) {
	for _, actor := range allRoles {
		for _, target := range allRoles {
			for _, newRole := range allRoles {
				assert.False(t, CanUpdateMemberRole(actor, target, true, newRole),
					"self-edit must be denied: actor=%s target=%s new=%s", actor, target, newRole)
				if newRole == models.RoleOwner {
					assert.False(t, CanUpdateMemberRole(actor, target, false, newRole),
						"promotion to owner must be denied: actor=%s target=%s", actor, target)
				}
			}
		}
	}
}

func TestCanUpdateMemberRole_Owner(t *testing.T) {
	assert.True(t, CanUpdateMemberRole(models.RoleOwner, models.RoleMember, false, models.RoleAdmin))
	assert.True(t, CanUpdateMemberRole(models.RoleOwner, models.RoleAdmin, false, models.RoleMember))
	// the owner cannot demote themselves, and there is no other owner target
	assert.False(t, CanUpdateMemberRole(models.RoleOwner, models.RoleOwner, false, models.RoleMember))
}

func TestCanUpdateMemberRole_Admin(t *testing.T) {
	assert.True(t, CanUpdateMemberRole(models.RoleAdmin, models.RoleMember, false, models.RoleAdmin))
	assert.False(t, CanUpdateMemberRole(models.RoleAdmin, models.RoleAdmin, false, models.RoleMember))
	assert.False(t, CanUpdateMemberRole(models.RoleAdmin, models.RoleOwner, false, models.RoleMember))
}

func TestCanUpdateMemberRole_Member(t *testing.T) {
	for _, target := range allRoles {
		for _, newRole := range allRoles {
			assert.False(t, CanUpdateMemberRole(models.RoleMember, target, false, newRole))
		}
	}
}

func TestCanRemoveMember(t *testing.T) {
	// the owner membership can never be removed, not even by the owner
	for _, actor := range allRoles {
		assert.False(t, CanRemoveMember(actor, models.RoleOwner, false), "actor=%s", actor)
	}
	assert.False(t, CanRemoveMember(models.RoleOwner, models.RoleOwner, true))

	// non-owners may leave on their own
	assert.True(t, CanRemoveMember(models.RoleAdmin, models.RoleAdmin, true))
	assert.True(t, CanRemoveMember(models.RoleMember, models.RoleMember, true))

	// owner removes anyone below, admin only members
	assert.True(t, CanRemoveMember(models.RoleOwner, models.RoleAdmin, false))
	assert.True(t, CanRemoveMember(models.RoleOwner, models.RoleMember, false))
	assert.True(t, CanRemoveMember(models.RoleAdmin, models.RoleMember, false))
	assert.False(t, CanRemoveMember(models.RoleAdmin, models.RoleAdmin, false))
	assert.False(t, CanRemoveMember(models.RoleMember, models.RoleMember, false))
}

func TestCanRemoveTaskAssignment(t *testing.T) {
	for _, r := range allRoles {
		assert.True(t, CanRemoveTaskAssignment(r, true), "self-unassign allowed for %s", r)
	}
	assert.True(t, CanRemoveTaskAssignment(models.RoleOwner, false))
	assert.True(t, CanRemoveTaskAssignment(models.RoleAdmin, false))
	assert.False(t, CanRemoveTaskAssignment(models.RoleMember, false))
}

func TestCanMoveTask(t *testing.T) {
	assert.True(t, CanMoveTask(models.RoleOwner, false))
	assert.True(t, CanMoveTask(models.RoleAdmin, false))
	assert.True(t, CanMoveTask(models.RoleMember, true))
	assert.False(t, CanMoveTask(models.RoleMember, false))
}
