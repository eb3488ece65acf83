package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/satriahrh/parley/domain/entities"
	"github.com/satriahrh/parley/domain/repositories"
)

const sessionsCollection = "sessions"

// SessionRepository stores ended sessions in the sessions collection
type SessionRepository struct {
	collection *mongo.Collection
}

var _ repositories.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository creates a new MongoDB session repository
func NewSessionRepository(db *mongo.Database) *SessionRepository {
	return &SessionRepository{collection: db.Collection(sessionsCollection)}
}

// EnsureIndexes creates the index behind ListByDevice
func (r *SessionRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, deviceHistoryIndex())
	if err != nil {
		return fmt.Errorf("failed to create session indexes: %w", err)
	}
	return nil
}

func deviceHistoryIndex() mongo.IndexModel {
	return mongo.IndexModel{
		Keys: bson.D{
			{Key: "device_id", Value: 1},
			{Key: "ended_at", Value: -1},
		},
	}
}

// Save implements repositories.SessionRepository. Saving the same ID twice replaces it.
func (r *SessionRepository) Save(ctx context.Context, record *entities.SessionRecord) error {
	if record == nil || record.ID == "" {
		return errors.New("session record with an ID is required")
	}

	_, err := r.collection.ReplaceOne(ctx,
		bson.M{"_id": record.ID},
		record,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", record.ID, err)
	}
	return nil
}

// ListByDevice implements repositories.SessionRepository
func (r *SessionRepository) ListByDevice(ctx context.Context, deviceID string, limit int) ([]*entities.SessionRecord, error) {
	if deviceID == "" {
		return nil, errors.New("device ID cannot be empty")
	}

	cursor, err := r.collection.Find(ctx, bson.M{"device_id": deviceID}, historyOptions(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions for device %s: %w", deviceID, err)
	}
	defer cursor.Close(ctx)

	var records []*entities.SessionRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode sessions for device %s: %w", deviceID, err)
	}
	return records, nil
}

func historyOptions(limit int) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{{Key: "ended_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return opts
}
