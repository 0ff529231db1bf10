package domain

import (
	"fmt"
	"strings"
	"time"
)

// Field names a patchable room attribute.
type Field string

const (
	FieldLastActivityAt Field = "lastActivityAt"
	FieldMessageCount   Field = "messageCount"
	FieldAdmins         Field = "admins"
	FieldMasterAdmins   Field = "masterAdmins"
	FieldBannedUsers    Field = "bannedUsers"
	FieldKickedUsers    Field = "kickedUsers"
)

type PatchOpKind int

const (
	OpSetTime PatchOpKind = iota
	OpIncrement
	OpAddToSet
	OpPull
	OpPutKick
	OpPruneKicks
)

func (k PatchOpKind) String() string {
	switch k {
	case OpSetTime:
		return "set"
	case OpIncrement:
		return "inc"
	case OpAddToSet:
		return "add"
	case OpPull:
		return "pull"
	case OpPutKick:
		return "put_kick"
	case OpPruneKicks:
		return "prune_kicks"
	default:
		return "unknown"
	}
}

type PatchOp struct {
	Kind   PatchOpKind
	Field  Field
	Time   time.Time
	Delta  int64
	Values []string
	Kick   KickEntry
}

// Patch is an ordered list of field operations applied atomically to a single room.
// Set operations are idempotent; a put-kick replaces any entry for the same identity.
type Patch []PatchOp

func (p Patch) SetTime(field Field, t time.Time) Patch {
	return append(p, PatchOp{Kind: OpSetTime, Field: field, Time: t})
}

func (p Patch) Increment(field Field, delta int64) Patch {
	return append(p, PatchOp{Kind: OpIncrement, Field: field, Delta: delta})
}

func (p Patch) AddToSet(field Field, values ...string) Patch {
	return append(p, PatchOp{Kind: OpAddToSet, Field: field, Values: values})
}

func (p Patch) Pull(field Field, values ...string) Patch {
	return append(p, PatchOp{Kind: OpPull, Field: field, Values: values})
}

func (p Patch) PutKick(kick KickEntry) Patch {
	return append(p, PatchOp{Kind: OpPutKick, Field: FieldKickedUsers, Kick: kick})
}

// PruneKicks drops every kick entry that has expired at now.
func (p Patch) PruneKicks(now time.Time) Patch {
	return append(p, PatchOp{Kind: OpPruneKicks, Field: FieldKickedUsers, Time: now})
}

func (p Patch) Empty() bool {
	return len(p) == 0
}

func (p Patch) String() string {
	parts := make([]string, 0, len(p))
	for _, op := range p {
		switch op.Kind {
		case OpSetTime, OpPruneKicks:
			parts = append(parts, fmt.Sprintf("%s(%s=%s)", op.Kind, op.Field, op.Time.Format(time.RFC3339)))
		case OpIncrement:
			parts = append(parts, fmt.Sprintf("%s(%s+%d)", op.Kind, op.Field, op.Delta))
		case OpPutKick:
			parts = append(parts, fmt.Sprintf("%s(%s)", op.Kind, op.Kick.Identity))
		default:
			parts = append(parts, fmt.Sprintf("%s(%s:%s)", op.Kind, op.Field, strings.Join(op.Values, ",")))
		}
	}
	return strings.Join(parts, " ")
}

// TouchPatch bumps lastActivityAt.
func TouchPatch(now time.Time) Patch {
	return Patch{}.SetTime(FieldLastActivityAt, now)
}
