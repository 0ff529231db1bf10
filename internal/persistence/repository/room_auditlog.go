package repository

import (
	"context"
	"time"

	"github.com/hilthontt/tourchat/internal/domain"
	"github.com/hilthontt/tourchat/internal/persistence/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/attribute"
)

const auditRetention = 90 * 24 * time.Hour

type roomAuditLogRepository struct {
	db *mongo.Database
}

func NewRoomAuditLogRepository(db *mongo.Database) domain.RoomAuditRepository {
	return &roomAuditLogRepository{
		db: db,
	}
}

func (r *roomAuditLogRepository) DeleteOlderThan(ctx context.Context, before time.Time) (err error) {
	ctx, done := instrument(ctx, "audit.delete_older_than")
	defer func() { done(err) }()

	collection := r.db.Collection(db.RoomAuditLogsCollection)
	_, err = collection.DeleteMany(ctx, bson.M{"timestamp": bson.M{"$lt": before}})
	return storeErr("delete audit logs", err)
}

// GetByRoomID returns the newest entries first.
func (r *roomAuditLogRepository) GetByRoomID(ctx context.Context, roomID string, limit int) (logs []domain.RoomAuditLog, err error) {
	ctx, done := instrument(ctx, "audit.get_by_room", attribute.String("room_id", roomID))
	defer func() { done(err) }()

	collection := r.db.Collection(db.RoomAuditLogsCollection)
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := collection.Find(ctx, bson.M{"room_id": roomID}, opts)
	if err != nil {
		return nil, storeErr("get audit logs", err)
	}
	defer cursor.Close(ctx)

	logs = []domain.RoomAuditLog{}
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, storeErr("get audit logs", err)
	}
	return logs, nil
}

func (r *roomAuditLogRepository) Log(ctx context.Context, log *domain.RoomAuditLog) (err error) {
	ctx, done := instrument(ctx, "audit.log",
		attribute.String("room_id", log.RoomID),
		attribute.String("event_type", string(log.EventType)),
	)
	defer func() { done(err) }()

	_, err = r.db.Collection(db.RoomAuditLogsCollection).InsertOne(ctx, log)
	return storeErr("write audit log", err)
}

func (r *roomAuditLogRepository) EnsureIndexes(ctx context.Context) error {
	collection := r.db.Collection(db.RoomAuditLogsCollection)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "room_id", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "event_type", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
		{
			Keys:    bson.D{{Key: "timestamp", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(auditRetention.Seconds())),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
