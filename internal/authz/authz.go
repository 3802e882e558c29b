// Package authz decides whether a circle member may perform an action.
//
// Decisions depend only on the request passed in. Callers resolve entity
// existence and the actor's membership before asking.
package authz

import (
	"circles/internal/models"
)

// Action is an operation guarded by circle roles.
type Action int

const (
	ViewCircle Action = iota + 1
	UpdateCircle
	DeleteCircle
	AddMember
	RemoveMember
	ChangeRole
	CreatePost
	DeletePost
)

var actionNames = map[Action]string{
	ViewCircle:   "view_circle",
	UpdateCircle: "update_circle",
	DeleteCircle: "delete_circle",
	AddMember:    "add_member",
	RemoveMember: "remove_member",
	ChangeRole:   "change_role",
	CreatePost:   "create_post",
	DeletePost:   "delete_post",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

// Denial messages.
const (
	MsgNotMember           = "You are not a member of this circle"
	MsgOwnerUpdateOnly     = "Only the circle owner can update it"
	MsgOwnerDeleteOnly     = "Only the circle owner can delete it"
	MsgAddMemberRole       = "Only circle owners and moderators can add members"
	MsgRemoveOwner         = "Cannot remove the circle owner"
	MsgModeratorRemovesMod = "Moderators cannot remove other moderators"
	MsgRemoveMemberRole    = "Only owners and moderators can remove members"
	MsgOwnerChangesRoles   = "Only the circle owner can change roles"
	MsgChangeOwnerRole     = "Cannot change the circle owner's role"
	MsgAssignableRoles     = "Role can only be set to moderator or member"
	MsgDeletePost          = "You don't have permission to delete this post"
)

// Request describes one authorization question.
type Request struct {
	Action Action
	// Actor is the requester's role in the circle; nil when not a member.
	Actor *models.Role
	// Target is the role of the member being acted on (RemoveMember, ChangeRole).
	Target models.Role
	// NewRole is the requested role for ChangeRole.
	NewRole models.Role
	// IsAuthor is set for DeletePost when the requester wrote the post.
	IsAuthor bool
}

// Decide returns nil when the action is allowed, otherwise a FORBIDDEN
// (or, for an unassignable role, VALIDATION_ERROR) AppError.
func Decide(req Request) error {
	if req.Action == DeletePost {
		if req.IsAuthor || (req.Actor != nil && isManager(*req.Actor)) {
			return nil
		}
		return models.NewForbiddenError(MsgDeletePost)
	}

	if req.Actor == nil || !req.Actor.Valid() {
		return models.NewForbiddenError(MsgNotMember)
	}
	actor := *req.Actor

	switch req.Action {
	case ViewCircle, CreatePost:
		return nil

	case UpdateCircle:
		if actor != models.RoleOwner {
			return models.NewForbiddenError(MsgOwnerUpdateOnly)
		}
		return nil

	case DeleteCircle:
		if actor != models.RoleOwner {
			return models.NewForbiddenError(MsgOwnerDeleteOnly)
		}
		return nil

	case AddMember:
		if !isManager(actor) {
			return models.NewForbiddenError(MsgAddMemberRole)
		}
		return nil

	case RemoveMember:
		if !isManager(actor) {
			return models.NewForbiddenError(MsgRemoveMemberRole)
		}
		if req.Target == models.RoleOwner {
			return models.NewForbiddenError(MsgRemoveOwner)
		}
		if actor == models.RoleModerator && req.Target == models.RoleModerator {
			return models.NewForbiddenError(MsgModeratorRemovesMod)
		}
		return nil

	case ChangeRole:
		if actor != models.RoleOwner {
			return models.NewForbiddenError(MsgOwnerChangesRoles)
		}
		if req.Target == models.RoleOwner {
			return models.NewForbiddenError(MsgChangeOwnerRole)
		}
		if req.NewRole != models.RoleModerator && req.NewRole != models.RoleMember {
			return models.NewValidationError(MsgAssignableRoles)
		}
		return nil
	}

	return models.NewForbiddenError("Action not permitted")
}

// CanManageMembers reports whether role may add members or search for candidates.
func CanManageMembers(role models.Role) bool {
	return isManager(role)
}

func isManager(role models.Role) bool {
	return role == models.RoleOwner || role == models.RoleModerator
}
