// Package moderation decides whether an actor may perform an action on a room and
// computes the resulting room patch. It performs no I/O.
package moderation

import (
	"time"

	"github.com/hilthontt/tourchat/internal/domain"
)

type Request struct {
	Action    Action
	Room      *domain.Room
	Actor     string
	Target    string
	MessageID string
	Now       time.Time
}

type Decision struct {
	Allowed bool
	Reason  domain.Reason
	Patch   domain.Patch
	// DeleteMessageID is set when the store must delete a message.
	DeleteMessageID string
}

// Err returns nil for an allowed decision and the typed denial otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return domain.Denied(d.Reason)
}

func allow(patch domain.Patch) Decision {
	return Decision{Allowed: true, Patch: patch}
}

func deny(reason domain.Reason) Decision {
	return Decision{Reason: reason}
}

type Engine struct {
	kickDuration time.Duration
}

func NewEngine(kickDuration time.Duration) *Engine {
	if kickDuration <= 0 {
		kickDuration = domain.KickDuration
	}
	return &Engine{kickDuration: kickDuration}
}

// Decide evaluates, in order: room presence, actor ban, required role, target presence,
// then the per-action state guards. An unknown action is denied before anything else.
func (e *Engine) Decide(req Request) Decision {
	if !req.Action.Valid() {
		return deny(domain.ReasonUnknownAction)
	}

	room := req.Room
	if room == nil {
		return deny(domain.ReasonRoomNotFound)
	}
	if room.IsBanned(req.Actor) {
		return deny(domain.ReasonActorBanned)
	}

	role := domain.EffectiveRole(room, req.Actor)
	switch required := req.Action.RequiredRole(); {
	case role.AtLeast(required):
	case required == domain.RoleMasterAdmin:
		return deny(domain.ReasonRequiresMasterAdmin)
	default:
		return deny(domain.ReasonRequiresAdmin)
	}

	if req.Action.Targeted() && req.Target == "" {
		return deny(domain.ReasonMissingTarget)
	}

	target := req.Target
	switch req.Action {
	case ActionSendMessage:
		if _, kicked := room.ActiveKick(req.Actor, req.Now); kicked {
			return deny(domain.ReasonActorKicked)
		}
		return allow(nil)

	case ActionDeleteMessage:
		if req.MessageID == "" {
			return deny(domain.ReasonMissingTarget)
		}
		d := allow(nil)
		d.DeleteMessageID = req.MessageID
		return d

	case ActionPromoteToAdmin:
		if room.IsAdmin(target) {
			return deny(domain.ReasonAlreadyAdmin)
		}
		return allow(domain.Patch{}.AddToSet(domain.FieldAdmins, target))

	case ActionDemoteAdmin:
		return allow(domain.Patch{}.Pull(domain.FieldAdmins, target))

	case ActionBanUser:
		if room.IsBanned(target) {
			return deny(domain.ReasonAlreadyBanned)
		}
		return allow(domain.Patch{}.
			AddToSet(domain.FieldBannedUsers, target).
			Pull(domain.FieldAdmins, target))

	case ActionUnbanUser:
		if !room.IsBanned(target) {
			return deny(domain.ReasonNotBanned)
		}
		return allow(domain.Patch{}.Pull(domain.FieldBannedUsers, target))

	case ActionKickUser:
		return allow(domain.Patch{}.PutKick(domain.KickEntry{
			Identity:  target,
			ExpiresAt: req.Now.Add(e.kickDuration),
		}))

	case ActionAddMasterAdmin:
		if room.IsMasterAdmin(target) {
			return deny(domain.ReasonAlreadyMasterAdmin)
		}
		return allow(domain.Patch{}.AddToSet(domain.FieldMasterAdmins, target))

	case ActionRemoveMasterAdmin:
		if !room.IsMasterAdmin(target) {
			return deny(domain.ReasonNotMasterAdmin)
		}
		return allow(domain.Patch{}.Pull(domain.FieldMasterAdmins, target))
	}

	return deny(domain.ReasonUnknownAction)
}
