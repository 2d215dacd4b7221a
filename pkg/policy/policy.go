package policy

import "github.com/hsemihaktas/TaskFlow/pkg/models"

// Role-based predicates governing permitted actions. Pure functions over
// the actor's role in one organization; they never error and never touch
// the store. Callers that get false must not issue the mutating request.

// CanInviteMembers reports whether the actor may create invitations.
func CanInviteMembers(actor models.Role) bool {
	return actor == models.RoleOwner || actor == models.RoleAdmin
}

// CanCreateProject reports whether the actor may create projects.
func CanCreateProject(actor models.Role) bool {
	return actor == models.RoleOwner || actor == models.RoleAdmin
}

// CanManageTasks reports whether the actor may create, edit and delete
// tasks. Non-managers may still move a task they are assigned to; see
// CanMoveTask.
func CanManageTasks(actor models.Role) bool {
	return actor == models.RoleOwner || actor == models.RoleAdmin
}

// CanDeleteProject reports whether the actor may delete a project.
func CanDeleteProject(actor models.Role) bool {
	return actor == models.RoleOwner || actor == models.RoleAdmin
}

// CanDeleteTask reports whether the actor may delete a task.
func CanDeleteTask(actor models.Role) bool {
	return actor == models.RoleOwner || actor == models.RoleAdmin
}

// CanDeleteOrganization is the sole predicate restricted to the owner.
func CanDeleteOrganization(actor models.Role) bool {
	return actor == models.RoleOwner
}

// CanUpdateMemberRole reports whether the actor may change the target
// member's role to newRole.
//
// No path through here ever creates a second owner: newRole == owner is
// always denied, as is editing your own role. Admins cannot touch other
// admins or the owner.
func CanUpdateMemberRole(actor, target models.Role, isTargetSelf bool, newRole models.Role) bool {
	if actor != models.RoleOwner && actor != models.RoleAdmin {
		return false
	}
	if isTargetSelf {
		return false
	}
	if newRole == models.RoleOwner {
		return false
	}
	if actor == models.RoleAdmin && (target == models.RoleAdmin || target == models.RoleOwner) {
		return false
	}
	// owner: target must be member/admin, which is everything but owner
	return target != models.RoleOwner
}

// CanRemoveMember reports whether the actor may delete the target's
// membership. Managers remove lower-ranked members, admins cannot remove
// admins or the owner, and any non-owner may remove themselves to leave.
// The owner never leaves; deleting the organization is the exit path.
func CanRemoveMember(actor, target models.Role, isTargetSelf bool) bool {
	if target == models.RoleOwner {
		return false
	}
	if isTargetSelf {
		return true
	}
	if actor == models.RoleOwner {
		return true
	}
	return actor == models.RoleAdmin && target == models.RoleMember
}

// CanRemoveTaskAssignment reports whether the actor may remove an
// assignment. Anyone may unassign themselves; managers may remove anyone.
func CanRemoveTaskAssignment(actor models.Role, isSelf bool) bool {
	if isSelf {
		return true
	}
	return actor == models.RoleOwner || actor == models.RoleAdmin
}

// CanMoveTask reports drag/status-change eligibility: managers always,
// everyone else only while holding an assignment on the task. The caller
// must evaluate this against state re-read from the authoritative store,
// not a cached projection.
func CanMoveTask(actor models.Role, hasAssignment bool) bool {
	return CanManageTasks(actor) || hasAssignment
}
