package moderation

import "github.com/hilthontt/tourchat/internal/domain"

type Action string

const (
	ActionSendMessage       Action = "send-message"
	ActionDeleteMessage     Action = "delete-message"
	ActionPromoteToAdmin    Action = "promote"
	ActionDemoteAdmin       Action = "demote"
	ActionBanUser           Action = "ban"
	ActionUnbanUser         Action = "unban"
	ActionKickUser          Action = "kick"
	ActionAddMasterAdmin    Action = "add-master"
	ActionRemoveMasterAdmin Action = "remove-master"
)

type actionSpec struct {
	role     domain.Role
	targeted bool
	event    domain.RoomEventType
}

var actions = map[Action]actionSpec{
	ActionSendMessage:       {role: domain.RoleMember},
	ActionDeleteMessage:     {role: domain.RoleAdmin, event: domain.EventMessageDeleted},
	ActionBanUser:           {role: domain.RoleAdmin, targeted: true, event: domain.EventUserBanned},
	ActionUnbanUser:         {role: domain.RoleAdmin, targeted: true, event: domain.EventUserUnbanned},
	ActionKickUser:          {role: domain.RoleAdmin, targeted: true, event: domain.EventUserKicked},
	ActionPromoteToAdmin:    {role: domain.RoleMasterAdmin, targeted: true, event: domain.EventAdminPromoted},
	ActionDemoteAdmin:       {role: domain.RoleMasterAdmin, targeted: true, event: domain.EventAdminDemoted},
	ActionAddMasterAdmin:    {role: domain.RoleMasterAdmin, targeted: true, event: domain.EventMasterAdminAdded},
	ActionRemoveMasterAdmin: {role: domain.RoleMasterAdmin, targeted: true, event: domain.EventMasterAdminRemove},
}

// ParseAction resolves the moderation actions exposed to callers. Sending is not one of them.
func ParseAction(s string) (Action, bool) {
	a := Action(s)
	if _, ok := actions[a]; !ok || a == ActionSendMessage || a == ActionDeleteMessage {
		return "", false
	}
	return a, true
}

// RequiredRole is the minimum effective role the actor must hold.
func (a Action) RequiredRole() domain.Role {
	return actions[a].role
}

func (a Action) Targeted() bool {
	return actions[a].targeted
}

func (a Action) AuditEvent() domain.RoomEventType {
	return actions[a].event
}

func (a Action) Valid() bool {
	_, ok := actions[a]
	return ok
}

func (a Action) String() string {
	return string(a)
}
