package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/yoockh/oscesim/internal/models"
	"github.com/yoockh/oscesim/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SessionRepository interface {
	Create(ctx context.Context, s *models.EncounterSession) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.EncounterSession, error)
	FindActive(ctx context.Context, userID, caseID string) (*models.EncounterSession, error)
	AppendTranscript(ctx context.Context, sessionID string, entries ...models.TranscriptEntry) error
	SetStage(ctx context.Context, sessionID, stage string) error
	ApplyState(ctx context.Context, sessionID string, revealed []string, dd models.DynamicData) error
	Reset(ctx context.Context, sessionID, stage string) error
}

type sessionRepo struct {
	col *mongo.Collection
}

func NewSessionRepo(db *mongo.Database) SessionRepository {
	return &sessionRepo{col: db.Collection("encounter_sessions")}
}

func (r *sessionRepo) Create(ctx context.Context, s *models.EncounterSession) error {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	_, err := r.col.InsertOne(ctx, s)
	return err
}

func (r *sessionRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.EncounterSession, error) {
	var s models.EncounterSession
	err := r.col.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	return &s, err
}

// FindActive returns the most recently touched active session for (user, case).
func (r *sessionRepo) FindActive(ctx context.Context, userID, caseID string) (*models.EncounterSession, error) {
	var s models.EncounterSession
	err := r.col.FindOne(ctx,
		bson.M{"user_id": userID, "case_id": caseID, "status": models.SessionActive},
		options.FindOne().SetSort(bson.D{{Key: "updated_at", Value: -1}}),
	).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	return &s, err
}

func (r *sessionRepo) update(ctx context.Context, sessionID string, upd bson.M) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"session_id": sessionID}, upd)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *sessionRepo) AppendTranscript(ctx context.Context, sessionID string, entries ...models.TranscriptEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.update(ctx, sessionID, bson.M{
		"$push": bson.M{"transcript": bson.M{"$each": entries}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
}

func (r *sessionRepo) SetStage(ctx context.Context, sessionID, stage string) error {
	return r.update(ctx, sessionID, bson.M{
		"$set": bson.M{"stage": stage, "updated_at": time.Now().UTC()},
	})
}

func (r *sessionRepo) ApplyState(ctx context.Context, sessionID string, revealed []string, dd models.DynamicData) error {
	upd := bson.M{"$set": bson.M{"dynamic_data": dd, "updated_at": time.Now().UTC()}}
	if len(revealed) > 0 {
		upd["$addToSet"] = bson.M{"revealed_facts": bson.M{"$each": revealed}}
	}
	return r.update(ctx, sessionID, upd)
}

func (r *sessionRepo) Reset(ctx context.Context, sessionID, stage string) error {
	return r.update(ctx, sessionID, bson.M{
		"$set": bson.M{
			"stage":          stage,
			"status":         models.SessionActive,
			"revealed_facts": []string{},
			"dynamic_data":   models.DynamicData{},
			"transcript":     []models.TranscriptEntry{},
			"updated_at":     time.Now().UTC(),
		},
	})
}
