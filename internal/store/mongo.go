package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/SHISHIR1507/quiet-hours-scheduler/internal/domain"
)

const mongoCollection = "time_blocks"

// MongoRepo implements Repo on a MongoDB collection. Claims use
// FindOneAndUpdate, which is atomic on a single document.
type MongoRepo struct {
	client *mongo.Client
	col    *mongo.Collection
}

var _ Repo = (*MongoRepo)(nil)

type blockModel struct {
	ID           string     `bson:"_id"`
	OwnerContact string     `bson:"owner_contact"`
	StartAt      time.Time  `bson:"start_at"`
	EndAt        *time.Time `bson:"end_at,omitempty"`
	ReminderSent bool       `bson:"reminder_sent"`
	CreatedAt    time.Time  `bson:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at"`
}

func toBlockModel(b *domain.TimeBlock) blockModel {
	return blockModel{
		ID:           b.ID,
		OwnerContact: b.OwnerContact,
		StartAt:      b.StartAt.UTC(),
		EndAt:        nullTime(b.EndAt),
		ReminderSent: b.ReminderSent,
		CreatedAt:    b.CreatedAt.UTC(),
		UpdatedAt:    b.UpdatedAt.UTC(),
	}
}

func fromBlockModel(m *blockModel) domain.TimeBlock {
	b := domain.TimeBlock{
		ID:           m.ID,
		OwnerContact: m.OwnerContact,
		StartAt:      m.StartAt.UTC(),
		ReminderSent: m.ReminderSent,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
	if m.EndAt != nil {
		b.EndAt = m.EndAt.UTC()
	}
	return b
}

// OpenMongo connects with retries, ensures the due index exists and returns a repository.
func OpenMongo(ctx context.Context, uri, database string, retryAttempts int, retryInterval time.Duration) (*MongoRepo, error) {
	if retryAttempts <= 0 {
		retryAttempts = 1
	}

	var (
		client *mongo.Client
		err    error
	)
	for i := range retryAttempts {
		client, err = mongo.Connect(options.Client().ApplyURI(uri).SetRetryWrites(true))
		if err == nil {
			if err = client.Ping(ctx, nil); err == nil {
				break
			}
			_ = client.Disconnect(ctx)
			client = nil
		}
		if i+1 == retryAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(err, ctx.Err())
		case <-time.After(retryInterval):
		}
	}
	if client == nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}

	col := client.Database(database).Collection(mongoCollection)
	_, err = col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "reminder_sent", Value: 1}, {Key: "start_at", Value: 1}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo: create index: %w", err)
	}
	return &MongoRepo{client: client, col: col}, nil
}

func (r *MongoRepo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

func (r *MongoRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, nil)
}

func (r *MongoRepo) InsertBlock(ctx context.Context, b *domain.TimeBlock) error {
	if b == nil {
		return ErrNilBlock
	}
	m := toBlockModel(b)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = m.CreatedAt
	}
	if _, err := r.col.InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("mongo: insert block: %w", err)
	}
	return nil
}

func (r *MongoRepo) GetBlock(ctx context.Context, id string) (*domain.TimeBlock, error) {
	var m blockModel
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: get block: %w", err)
	}
	b := fromBlockModel(&m)
	return &b, nil
}

func (r *MongoRepo) FindDueCandidates(ctx context.Context, from, to time.Time) ([]domain.TimeBlock, error) {
	filter := bson.M{
		"reminder_sent": false,
		"start_at":      bson.M{"$gte": from.UTC(), "$lte": to.UTC()},
	}
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "start_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo: find due: %w", err)
	}
	defer cur.Close(ctx)

	var res []domain.TimeBlock
	for cur.Next(ctx) {
		var m blockModel
		if err := cur.Decode(&m); err != nil {
			return nil, fmt.Errorf("mongo: decode due: %w", err)
		}
		res = append(res, fromBlockModel(&m))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongo: find due: %w", err)
	}
	return res, nil
}

func (r *MongoRepo) TryClaim(ctx context.Context, id string) (domain.TimeBlock, bool, error) {
	filter := bson.M{"_id": id, "reminder_sent": false}
	update := bson.M{"$set": bson.M{"reminder_sent": true, "updated_at": time.Now().UTC()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var m blockModel
	err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.TimeBlock{}, false, nil
	}
	if err != nil {
		return domain.TimeBlock{}, false, fmt.Errorf("mongo: try claim: %w", err)
	}
	return fromBlockModel(&m), true, nil
}

func (r *MongoRepo) Unclaim(ctx context.Context, id string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"reminder_sent": false, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("mongo: unclaim: %w", err)
	}
	return nil
}
