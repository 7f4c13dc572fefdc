package config

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureMongoIndexes creates the encounter indexes in dbName. Existing indexes are left alone.
func EnsureMongoIndexes(dbName string) error {
	if MongoClient == nil {
		return errors.New("MongoClient is nil; call InitMongo() first")
	}
	db := MongoClient.Database(dbName)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sessions := db.Collection("encounter_sessions")
	if _, err := sessions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetName("uniq_session_id").SetUnique(true),
		},
		// FindActive: newest active session per (user, case)
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "case_id", Value: 1},
				{Key: "status", Value: 1},
				{Key: "updated_at", Value: -1},
			},
			Options: options.Index().SetName("by_user_case_status"),
		},
	}); err != nil {
		return err
	}

	cases := db.Collection("cases")
	if _, err := cases.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "case_id", Value: 1}},
		Options: options.Index().SetName("uniq_case_id").SetUnique(true),
	}); err != nil {
		return err
	}

	chunks := db.Collection("audio_chunks")
	_, err := chunks.Indexes().CreateMany(ctx, []mongo.IndexModel{
		// TTL: expire at ExpiresAt (must be Date)
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("ttl_expires_at").SetExpireAfterSeconds(0),
		},
		{
			Keys: bson.D{
				{Key: "session_id", Value: 1},
				{Key: "timestamp", Value: 1},
				{Key: "chunk_index", Value: 1},
			},
			Options: options.Index().SetName("by_session_ts"),
		},
	})
	return err
}
