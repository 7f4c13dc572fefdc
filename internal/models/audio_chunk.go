package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AudioChunk indexes one archived synthesis result. Records expire via a TTL index.
type AudioChunk struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	SessionID  string             `bson:"session_id" json:"session_id"`
	TurnID     string             `bson:"turn_id" json:"turn_id"`
	ChunkIndex int                `bson:"chunk_index" json:"chunk_index"`

	VoiceID    string `bson:"voice_id" json:"voice_id"`
	Text       string `bson:"text" json:"text"`
	ObjectPath string `bson:"object_path" json:"object_path"`
	URL        string `bson:"-" json:"url,omitempty"` // signed on read
	Bytes      int    `bson:"bytes" json:"bytes"`
	DurationMS int64  `bson:"duration_ms,omitempty" json:"duration_ms,omitempty"`
	CacheHit   bool   `bson:"cache_hit" json:"cache_hit"`

	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	ExpiresAt time.Time `bson:"expires_at" json:"-"`
}
