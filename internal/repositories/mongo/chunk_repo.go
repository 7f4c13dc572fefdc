package mongo

import (
	"context"
	"time"

	"github.com/yoockh/oscesim/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ChunkRepository interface {
	Insert(ctx context.Context, c *models.AudioChunk) error
	ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.AudioChunk, error)
}

type chunkRepo struct {
	col *mongo.Collection
}

func NewChunkRepo(db *mongo.Database) ChunkRepository {
	return &chunkRepo{col: db.Collection("audio_chunks")}
}

func (r *chunkRepo) Insert(ctx context.Context, c *models.AudioChunk) error {
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, c)
	return err
}

func (r *chunkRepo) ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.AudioChunk, error) {
	if limit <= 0 {
		limit = 200
	}

	cur, err := r.col.Find(ctx,
		bson.M{"session_id": sessionID},
		options.Find().
			SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "chunk_index", Value: 1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.AudioChunk
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
