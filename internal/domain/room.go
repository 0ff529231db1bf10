package domain

import (
	"context"
	"slices"
	"time"
)

const (
	MessageTTL          = 48 * time.Hour
	KickDuration        = 10 * time.Minute
	InactivityThreshold = 48 * time.Hour
)

// KickEntry is a temporary restriction embedded in a room.
type KickEntry struct {
	Identity  string    `json:"identity" bson:"identity"`
	ExpiresAt time.Time `json:"expiresAt" bson:"expires_at"`
}

func (k KickEntry) Expired(now time.Time) bool {
	return !now.Before(k.ExpiresAt)
}

// Room is the chat space bound to one destination.
type Room struct {
	AreaID         string      `json:"areaId" bson:"_id"`
	AreaName       string      `json:"areaName" bson:"area_name"`
	CreatedBy      string      `json:"createdBy" bson:"created_by"`
	CreatedAt      time.Time   `json:"createdAt" bson:"created_at"`
	LastActivityAt time.Time   `json:"lastActivityAt" bson:"last_activity_at"`
	MessageCount   int64       `json:"messageCount" bson:"message_count"`
	Admins         []string    `json:"admins" bson:"admins"`
	MasterAdmins   []string    `json:"masterAdmins" bson:"master_admins"`
	BannedUsers    []string    `json:"bannedUsers" bson:"banned_users"`
	KickedUsers    []KickEntry `json:"kickedUsers" bson:"kicked_users"`
}

type RoomRepository interface {
	Get(ctx context.Context, areaID string) (*Room, error)
	Create(ctx context.Context, room *Room) error
	Patch(ctx context.Context, areaID string, patch Patch) error
	Delete(ctx context.Context, areaID string) error
	// DeleteIfInactive deletes the room only while its lastActivityAt is before the given
	// time. It reports false when the room is gone or was touched since.
	DeleteIfInactive(ctx context.Context, areaID string, before time.Time) (bool, error)
	List(ctx context.Context, filter RoomFilter) ([]Room, error)
	// CountByCreator counts rooms by creator with createdAt in [from, until]. A zero bound is open.
	CountByCreator(ctx context.Context, creator string, from, until time.Time) (int64, error)
}

// RoomFilter narrows List. Zero fields do not filter.
type RoomFilter struct {
	InactiveSince time.Time // lastActivityAt strictly before
	CreatedBy     string
	CreatedAfter  time.Time // createdAt at or after
	CreatedBefore time.Time // createdAt at or before
	HasKicks      bool
}

func (f RoomFilter) Matches(r *Room) bool {
	if !f.InactiveSince.IsZero() && !r.LastActivityAt.Before(f.InactiveSince) {
		return false
	}
	if f.CreatedBy != "" && r.CreatedBy != f.CreatedBy {
		return false
	}
	if !f.CreatedAfter.IsZero() && r.CreatedAt.Before(f.CreatedAfter) {
		return false
	}
	if !f.CreatedBefore.IsZero() && r.CreatedAt.After(f.CreatedBefore) {
		return false
	}
	if f.HasKicks && len(r.KickedUsers) == 0 {
		return false
	}
	return true
}

func NewRoom(areaID, areaName string, creator *Identity, now time.Time) *Room {
	return &Room{
		AreaID:         areaID,
		AreaName:       areaName,
		CreatedBy:      creator.ID,
		CreatedAt:      now,
		LastActivityAt: now,
		Admins:         []string{creator.ID},
		MasterAdmins:   []string{},
		BannedUsers:    []string{},
		KickedUsers:    []KickEntry{},
	}
}

func (r *Room) IsAdmin(identity string) bool {
	return r != nil && identity != "" && slices.Contains(r.Admins, identity)
}

func (r *Room) IsMasterAdmin(identity string) bool {
	return r != nil && identity != "" && slices.Contains(r.MasterAdmins, identity)
}

func (r *Room) IsBanned(identity string) bool {
	return r != nil && identity != "" && slices.Contains(r.BannedUsers, identity)
}

// ActiveKick returns the unexpired kick for identity, if any.
func (r *Room) ActiveKick(identity string, now time.Time) (KickEntry, bool) {
	if r == nil {
		return KickEntry{}, false
	}
	for _, k := range r.KickedUsers {
		if k.Identity == identity && !k.Expired(now) {
			return k, true
		}
	}
	return KickEntry{}, false
}

// HasExpiredKicks reports whether a sweep would change kickedUsers.
func (r *Room) HasExpiredKicks(now time.Time) bool {
	for _, k := range r.KickedUsers {
		if k.Expired(now) {
			return true
		}
	}
	return false
}

// Inactive reports whether lastActivityAt is older than the threshold.
func (r *Room) Inactive(now time.Time, threshold time.Duration) bool {
	return r.LastActivityAt.Before(now.Add(-threshold))
}

// MissingFields lists the required fields that are empty. Used by the validation gate.
func (r *Room) MissingFields() []string {
	var missing []string
	if r.AreaID == "" {
		missing = append(missing, "areaId")
	}
	if r.AreaName == "" {
		missing = append(missing, "areaName")
	}
	if r.CreatedBy == "" {
		missing = append(missing, "createdBy")
	}
	if r.CreatedAt.IsZero() {
		missing = append(missing, "createdAt")
	}
	return missing
}

func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Admins = slices.Clone(r.Admins)
	cp.MasterAdmins = slices.Clone(r.MasterAdmins)
	cp.BannedUsers = slices.Clone(r.BannedUsers)
	cp.KickedUsers = slices.Clone(r.KickedUsers)
	return &cp
}
