package repository

import (
	"context"
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"github.com/hilthontt/tourchat/internal/domain"
	"github.com/hilthontt/tourchat/internal/infrastructure/logging"
	"github.com/hilthontt/tourchat/internal/persistence/db"
	"github.com/oklog/ulid/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/attribute"
)

type messageRepository struct {
	db     *mongo.Database
	logger logging.Logger

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewMessageRepository(db *mongo.Database, logger logging.Logger) domain.MessageRepository {
	return &messageRepository{
		db:      db,
		logger:  logger,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

func (r *messageRepository) collection() *mongo.Collection {
	return r.db.Collection(db.MessagesCollection)
}

func (r *messageRepository) newID(at time.Time) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), r.entropy).String()
}

func (r *messageRepository) Add(ctx context.Context, message *domain.Message) (id string, err error) {
	if message == nil || message.RoomID == "" {
		return "", domain.ErrInvalidInput
	}
	ctx, done := instrument(ctx, "messages.add", attribute.String("room_id", message.RoomID))
	defer func() { done(err) }()

	stored := *message
	stored.ID = r.newID(message.CreatedAt)
	if _, err = r.collection().InsertOne(ctx, stored); err != nil {
		return "", storeErr("add message", err)
	}
	return stored.ID, nil
}

func (r *messageRepository) Get(ctx context.Context, roomID, messageID string) (msg *domain.Message, err error) {
	ctx, done := instrument(ctx, "messages.get", attribute.String("room_id", roomID))
	defer func() { done(err) }()

	msg = &domain.Message{}
	err = r.collection().FindOne(ctx, bson.M{"_id": messageID, "room_id": roomID}).Decode(msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrMessageNotFound
	}
	if err != nil {
		return nil, storeErr("get message", err)
	}
	return msg, nil
}

func (r *messageRepository) Delete(ctx context.Context, roomID, messageID string) (err error) {
	ctx, done := instrument(ctx, "messages.delete", attribute.String("room_id", roomID))
	defer func() { done(err) }()

	res, err := r.collection().DeleteOne(ctx, bson.M{"_id": messageID, "room_id": roomID})
	if err != nil {
		return storeErr("delete message", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

// DeleteExpired removes messages whose expiresAt is at or before now.
func (r *messageRepository) DeleteExpired(ctx context.Context, roomID string, now time.Time) (n int64, err error) {
	ctx, done := instrument(ctx, "messages.delete_expired", attribute.String("room_id", roomID))
	defer func() { done(err) }()

	res, err := r.collection().DeleteMany(ctx, bson.M{
		"room_id":    roomID,
		"expires_at": bson.M{"$lte": now},
	})
	if err != nil {
		return 0, storeErr("delete expired messages", err)
	}
	return res.DeletedCount, nil
}

func (r *messageRepository) DeleteByRoom(ctx context.Context, roomID string) (n int64, err error) {
	ctx, done := instrument(ctx, "messages.delete_by_room", attribute.String("room_id", roomID))
	defer func() { done(err) }()

	res, err := r.collection().DeleteMany(ctx, bson.M{"room_id": roomID})
	if err != nil {
		return 0, storeErr("delete room messages", err)
	}
	return res.DeletedCount, nil
}

func (r *messageRepository) CountActive(ctx context.Context, roomID string, now time.Time) (n int64, err error) {
	ctx, done := instrument(ctx, "messages.count_active", attribute.String("room_id", roomID))
	defer func() { done(err) }()

	n, err = r.collection().CountDocuments(ctx, activeQuery(roomID, now))
	return n, storeErr("count messages", err)
}

func (r *messageRepository) snapshot(ctx context.Context, roomID string, query domain.MessageQuery) (msgs []domain.Message, err error) {
	ctx, done := instrument(ctx, "messages.snapshot", attribute.String("room_id", roomID))
	defer func() { done(err) }()

	opts := options.Find().SetSort(bson.D{
		{Key: "expires_at", Value: 1},
		{Key: "created_at", Value: -1},
	})
	if query.Limit > 0 {
		opts.SetLimit(int64(query.Limit))
	}

	cursor, err := r.collection().Find(ctx, activeQuery(roomID, query.ActiveAt), opts)
	if err != nil {
		return nil, storeErr("query messages", err)
	}
	defer cursor.Close(ctx)

	msgs = []domain.Message{}
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, storeErr("query messages", err)
	}
	return msgs, nil
}

// Subscribe delivers the current snapshot, then re-queries on every change to the room's
// messages. Change events for deletes carry no room, so any delete triggers a re-query.
func (r *messageRepository) Subscribe(ctx context.Context, roomID string, query domain.MessageQuery, fn domain.MessageHandler) (domain.Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$or": bson.A{
			bson.M{"fullDocument.room_id": roomID},
			bson.M{"operationType": "delete"},
		}}}},
	}
	stream, err := r.collection().Watch(subCtx, pipeline)
	if err != nil {
		cancel()
		return nil, storeErr("watch messages", err)
	}

	initial, err := r.snapshot(subCtx, roomID, query)
	if err != nil {
		cancel()
		_ = stream.Close(context.Background())
		return nil, err
	}
	fn(initial)

	go func() {
		defer stream.Close(context.Background())
		for stream.Next(subCtx) {
			msgs, err := r.snapshot(subCtx, roomID, query)
			if err != nil {
				if subCtx.Err() != nil {
					return
				}
				r.logger.Warn(logging.MongoDB, logging.Subscription, "message feed re-query failed", map[logging.ExtraKey]any{
					logging.AreaID:       roomID,
					logging.ErrorMessage: err.Error(),
				})
				continue
			}
			fn(msgs)
		}
		if err := stream.Err(); err != nil && subCtx.Err() == nil {
			r.logger.Error(logging.MongoDB, logging.Subscription, "message change stream ended", map[logging.ExtraKey]any{
				logging.AreaID:       roomID,
				logging.ErrorMessage: err.Error(),
			})
		}
	}()

	return subscription(cancel), nil
}

// subscription only cancels; it never waits for an in-flight delivery to return.
type subscription context.CancelFunc

func (s subscription) Close() {
	s()
}

func (r *messageRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "room_id", Value: 1},
				{Key: "expires_at", Value: 1},
				{Key: "created_at", Value: -1},
			},
		},
	}

	_, err := r.collection().Indexes().CreateMany(ctx, indexes)
	return err
}

func activeQuery(roomID string, at time.Time) bson.M {
	q := bson.M{"room_id": roomID}
	if !at.IsZero() {
		q["expires_at"] = bson.M{"$gt": at}
	}
	return q
}
