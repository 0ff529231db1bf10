package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hilthontt/tourchat/internal/domain"
	"github.com/hilthontt/tourchat/internal/persistence/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/attribute"
)

var roomFields = map[domain.Field]string{
	domain.FieldLastActivityAt: "last_activity_at",
	domain.FieldMessageCount:   "message_count",
	domain.FieldAdmins:         "admins",
	domain.FieldMasterAdmins:   "master_admins",
	domain.FieldBannedUsers:    "banned_users",
	domain.FieldKickedUsers:    "kicked_users",
}

type roomRepository struct {
	db *mongo.Database
}

func NewRoomRepository(db *mongo.Database) domain.RoomRepository {
	return &roomRepository{
		db: db,
	}
}

func (r *roomRepository) collection() *mongo.Collection {
	return r.db.Collection(db.RoomsCollection)
}

func (r *roomRepository) Get(ctx context.Context, areaID string) (room *domain.Room, err error) {
	ctx, done := instrument(ctx, "rooms.get", attribute.String("area_id", areaID))
	defer func() { done(err) }()

	room = &domain.Room{}
	err = r.collection().FindOne(ctx, bson.M{"_id": areaID}).Decode(room)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, storeErr("get room", err)
	}
	return room, nil
}

func (r *roomRepository) Create(ctx context.Context, room *domain.Room) (err error) {
	ctx, done := instrument(ctx, "rooms.create", attribute.String("area_id", room.AreaID))
	defer func() { done(err) }()

	_, err = r.collection().InsertOne(ctx, room)
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrRoomAlreadyExists
	}
	return storeErr("create room", err)
}

// Patch applies every operation in one pipeline update so that the room document changes
// atomically.
func (r *roomRepository) Patch(ctx context.Context, areaID string, patch domain.Patch) (err error) {
	if patch.Empty() {
		return nil
	}
	ctx, done := instrument(ctx, "rooms.patch",
		attribute.String("area_id", areaID),
		attribute.String("patch", patch.String()),
	)
	defer func() { done(err) }()

	pipeline, err := patchPipeline(patch)
	if err != nil {
		return err
	}

	res, err := r.collection().UpdateOne(ctx, bson.M{"_id": areaID}, pipeline)
	if err != nil {
		return storeErr("patch room", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

func (r *roomRepository) Delete(ctx context.Context, areaID string) (err error) {
	ctx, done := instrument(ctx, "rooms.delete", attribute.String("area_id", areaID))
	defer func() { done(err) }()

	res, err := r.collection().DeleteOne(ctx, bson.M{"_id": areaID})
	if err != nil {
		return storeErr("delete room", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

func (r *roomRepository) DeleteIfInactive(ctx context.Context, areaID string, before time.Time) (deleted bool, err error) {
	ctx, done := instrument(ctx, "rooms.delete_if_inactive", attribute.String("area_id", areaID))
	defer func() { done(err) }()

	res, err := r.collection().DeleteOne(ctx, bson.M{
		"_id":              areaID,
		"last_activity_at": bson.M{"$lt": before},
	})
	if err != nil {
		return false, storeErr("delete inactive room", err)
	}
	return res.DeletedCount > 0, nil
}

func (r *roomRepository) List(ctx context.Context, filter domain.RoomFilter) (rooms []domain.Room, err error) {
	ctx, done := instrument(ctx, "rooms.list")
	defer func() { done(err) }()

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.collection().Find(ctx, roomQuery(filter), opts)
	if err != nil {
		return nil, storeErr("list rooms", err)
	}
	defer cursor.Close(ctx)

	rooms = []domain.Room{}
	if err := cursor.All(ctx, &rooms); err != nil {
		return nil, storeErr("list rooms", err)
	}
	return rooms, nil
}

func (r *roomRepository) CountByCreator(ctx context.Context, creator string, from, until time.Time) (n int64, err error) {
	ctx, done := instrument(ctx, "rooms.count_by_creator")
	defer func() { done(err) }()

	n, err = r.collection().CountDocuments(ctx, roomQuery(domain.RoomFilter{CreatedBy: creator, CreatedAfter: from, CreatedBefore: until}))
	return n, storeErr("count rooms", err)
}

func (r *roomRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "created_by", Value: 1},
				{Key: "created_at", Value: -1},
			},
		},
		{
			Keys: bson.D{{Key: "last_activity_at", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "kicked_users.expires_at", Value: 1}},
		},
	}

	_, err := r.collection().Indexes().CreateMany(ctx, indexes)
	return err
}

func roomQuery(f domain.RoomFilter) bson.M {
	q := bson.M{}
	if !f.InactiveSince.IsZero() {
		q["last_activity_at"] = bson.M{"$lt": f.InactiveSince}
	}
	if f.CreatedBy != "" {
		q["created_by"] = f.CreatedBy
	}
	if !f.CreatedAfter.IsZero() || !f.CreatedBefore.IsZero() {
		created := bson.M{}
		if !f.CreatedAfter.IsZero() {
			created["$gte"] = f.CreatedAfter
		}
		if !f.CreatedBefore.IsZero() {
			created["$lte"] = f.CreatedBefore
		}
		q["created_at"] = created
	}
	if f.HasKicks {
		q["kicked_users.0"] = bson.M{"$exists": true}
	}
	return q
}

// patchPipeline renders a patch as an update pipeline, one $set stage per operation so
// that later operations observe earlier ones. User supplied values always go through
// $literal so that a leading '$' is never read as a field path.
func patchPipeline(patch domain.Patch) (mongo.Pipeline, error) {
	pipeline := make(mongo.Pipeline, 0, len(patch))
	for _, op := range patch {
		field, ok := roomFields[op.Field]
		if !ok {
			return nil, fmt.Errorf("unknown room field %q", op.Field)
		}
		current := "$" + field

		var expr any
		switch op.Kind {
		case domain.OpSetTime:
			expr = bson.M{"$literal": op.Time}
		case domain.OpIncrement:
			expr = bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{current, 0}}, op.Delta}}
		case domain.OpAddToSet:
			expr = bson.M{"$setUnion": bson.A{
				bson.M{"$ifNull": bson.A{current, bson.A{}}},
				bson.M{"$literal": op.Values},
			}}
		case domain.OpPull:
			expr = bson.M{"$setDifference": bson.A{
				bson.M{"$ifNull": bson.A{current, bson.A{}}},
				bson.M{"$literal": op.Values},
			}}
		case domain.OpPutKick:
			expr = bson.M{"$concatArrays": bson.A{
				bson.M{"$filter": bson.M{
					"input": bson.M{"$ifNull": bson.A{current, bson.A{}}},
					"as":    "k",
					"cond":  bson.M{"$ne": bson.A{"$$k.identity", bson.M{"$literal": op.Kick.Identity}}},
				}},
				bson.M{"$literal": bson.A{op.Kick}},
			}}
		case domain.OpPruneKicks:
			expr = bson.M{"$filter": bson.M{
				"input": bson.M{"$ifNull": bson.A{current, bson.A{}}},
				"as":    "k",
				"cond":  bson.M{"$gt": bson.A{"$$k.expires_at", op.Time}},
			}}
		default:
			return nil, fmt.Errorf("unsupported patch operation %s", op.Kind)
		}

		pipeline = append(pipeline, bson.D{{Key: "$set", Value: bson.D{{Key: field, Value: expr}}}})
	}
	return pipeline, nil
}
