package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// TranscriptLog is the archived, queryable copy of one transcript line.
type TranscriptLog struct {
	ID        string           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID    string           `gorm:"column:user_id;type:text;index" json:"user_id"`
	SessionID string           `gorm:"column:session_id;type:uuid;index" json:"session_id"`
	CaseID    string           `gorm:"column:case_id;type:text;index" json:"case_id"`
	Role      string           `gorm:"column:role;type:text" json:"role"` // user|patient|nurse
	Content   string           `gorm:"column:content;type:text" json:"content"`
	Intent    string           `gorm:"column:intent;type:text" json:"intent,omitempty"`
	Tags      pq.StringArray   `gorm:"column:tags;type:text[]" json:"tags,omitempty"`
	Embedding *pgvector.Vector `gorm:"column:embedding;type:vector(768)" json:"-"`
	Timestamp time.Time        `gorm:"column:timestamp;type:timestamptz;index" json:"timestamp"`
	Metadata  datatypes.JSON   `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
}

func (TranscriptLog) TableName() string { return "transcript_logs" }

// TranscriptEvent is one transcript line travelling from the live session to the archive.
type TranscriptEvent struct {
	UserID    string         `json:"user_id"`
	SessionID string         `json:"session_id"`
	CaseID    string         `json:"case_id"`
	Role      string         `json:"role"`
	Text      string         `json:"text"`
	Intent    string         `json:"intent,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Embedding []float32      `json:"embedding,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
