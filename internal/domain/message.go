package domain

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/hilthontt/tourchat/internal/infrastructure/validate"
)

const (
	MaxMessageLength = 1000
	FeedLimit        = 50
)

// Message is immutable once stored.
type Message struct {
	ID                string    `json:"id" bson:"_id"`
	RoomID            string    `json:"roomId" bson:"room_id"`
	Text              string    `json:"text" bson:"text"`
	AuthorID          string    `json:"authorId" bson:"author_id"`
	AuthorDisplayName string    `json:"authorDisplayName" bson:"author_display_name"`
	AuthorPhotoRef    string    `json:"authorPhotoRef,omitempty" bson:"author_photo_ref,omitempty"`
	CreatedAt         time.Time `json:"createdAt" bson:"created_at"`
	ExpiresAt         time.Time `json:"expiresAt" bson:"expires_at"`
}

func NewMessage(roomID, text string, author *Identity, now time.Time) *Message {
	return &Message{
		RoomID:            roomID,
		Text:              text,
		AuthorID:          author.ID,
		AuthorDisplayName: author.DisplayName,
		AuthorPhotoRef:    author.PhotoRef,
		CreatedAt:         now,
		ExpiresAt:         now.Add(MessageTTL),
	}
}

// Active reports whether the message may still be delivered at now.
func (m *Message) Active(now time.Time) bool {
	return now.Before(m.ExpiresAt)
}

// MessageQuery describes a live feed: only messages active at ActiveAt, at most Limit of them.
type MessageQuery struct {
	ActiveAt time.Time
	Limit    int
}

// Subscription is a live feed handle. Close is idempotent.
type Subscription interface {
	Close()
}

type MessageHandler func(messages []Message)

type MessageRepository interface {
	Add(ctx context.Context, message *Message) (string, error)
	Get(ctx context.Context, roomID, messageID string) (*Message, error)
	Delete(ctx context.Context, roomID, messageID string) error
	DeleteExpired(ctx context.Context, roomID string, now time.Time) (int64, error)
	DeleteByRoom(ctx context.Context, roomID string) (int64, error)
	CountActive(ctx context.Context, roomID string, now time.Time) (int64, error)
	Subscribe(ctx context.Context, roomID string, query MessageQuery, fn MessageHandler) (Subscription, error)
}

var validateMessageText = validate.Field("text",
	validate.Required(),
	validate.MaxLength(MaxMessageLength),
)

func NormalizeMessageText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if err := validateMessageText(text); err != nil {
		return "", NewValidationError("text", err)
	}
	return text, nil
}

// SortFeedOrder sorts by expiresAt ascending, then createdAt descending. Stores use it to
// build a snapshot before applying the limit.
func SortFeedOrder(messages []Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		a, b := messages[i], messages[j]
		if !a.ExpiresAt.Equal(b.ExpiresAt) {
			return a.ExpiresAt.Before(b.ExpiresAt)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}

// Chronological filters out messages expired at now and returns the rest oldest first.
func Chronological(messages []Message, now time.Time) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Active(now) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
