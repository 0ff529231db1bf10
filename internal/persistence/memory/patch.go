package memory

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/hilthontt/tourchat/internal/domain"
)

// applyPatch mutates room in place. Callers hold the store lock, so the whole patch is atomic.
func applyPatch(room *domain.Room, patch domain.Patch) {
	for _, op := range patch {
		switch op.Kind {
		case domain.OpSetTime:
			if op.Field == domain.FieldLastActivityAt {
				room.LastActivityAt = op.Time
			}
		case domain.OpIncrement:
			if op.Field == domain.FieldMessageCount {
				room.MessageCount += op.Delta
			}
		case domain.OpAddToSet:
			if set := setField(room, op.Field); set != nil {
				*set = union(*set, op.Values)
			}
		case domain.OpPull:
			if set := setField(room, op.Field); set != nil {
				*set = difference(*set, op.Values)
			}
		case domain.OpPutKick:
			room.KickedUsers = slices.DeleteFunc(room.KickedUsers, func(k domain.KickEntry) bool {
				return k.Identity == op.Kick.Identity
			})
			room.KickedUsers = append(room.KickedUsers, op.Kick)
		case domain.OpPruneKicks:
			room.KickedUsers = slices.DeleteFunc(room.KickedUsers, func(k domain.KickEntry) bool {
				return k.Expired(op.Time)
			})
		}
	}
}

func setField(room *domain.Room, field domain.Field) *[]string {
	switch field {
	case domain.FieldAdmins:
		return &room.Admins
	case domain.FieldMasterAdmins:
		return &room.MasterAdmins
	case domain.FieldBannedUsers:
		return &room.BannedUsers
	}
	return nil
}

// union keeps existing order and appends new members, matching $addToSet.
func union(current, values []string) []string {
	seen := mapset.NewThreadUnsafeSet(current...)
	out := slices.Clone(current)
	for _, v := range values {
		if seen.Add(v) {
			out = append(out, v)
		}
	}
	return out
}

func difference(current, values []string) []string {
	drop := mapset.NewThreadUnsafeSet(values...)
	out := make([]string, 0, len(current))
	for _, v := range current {
		if !drop.Contains(v) {
			out = append(out, v)
		}
	}
	return out
}
