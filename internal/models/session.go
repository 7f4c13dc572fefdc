package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RolePatient = "patient"
	RoleNurse   = "nurse"
	RoleUser    = "user"

	SessionActive = "active"
)

// EncounterSession is one trainee working through one case.
type EncounterSession struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	SessionID string             `bson:"session_id" json:"session_id"` // uuid v4
	UserID    string             `bson:"user_id" json:"user_id"`
	CaseID    string             `bson:"case_id" json:"case_id"`

	Stage         string            `bson:"stage" json:"stage"`
	Status        string            `bson:"status" json:"status"`
	RevealedFacts []string          `bson:"revealed_facts" json:"revealed_facts"`
	DynamicData   DynamicData       `bson:"dynamic_data" json:"dynamic_data"`
	Transcript    []TranscriptEntry `bson:"transcript" json:"transcript"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

type TranscriptEntry struct {
	Role      string    `bson:"role" json:"role"` // user|patient|nurse
	Text      string    `bson:"text" json:"text"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// DynamicData is the clinical state revealed so far in the encounter.
type DynamicData struct {
	Vitals         *Vitals               `bson:"vitals,omitempty" json:"vitals,omitempty"`
	Findings       []Finding             `bson:"findings,omitempty" json:"findings,omitempty"`
	Investigations []InvestigationResult `bson:"investigations,omitempty" json:"investigations,omitempty"`
}

type Finding struct {
	System  string    `bson:"system" json:"system"` // general|cvs|resp|abd|neuro
	Finding string    `bson:"finding" json:"finding"`
	At      time.Time `bson:"at" json:"at"`
}

type InvestigationResult struct {
	Name   string    `bson:"name" json:"name"`
	Result string    `bson:"result" json:"result"`
	At     time.Time `bson:"at" json:"at"`
}

// StateSnapshot is what clients receive in state-update frames.
type StateSnapshot struct {
	SessionID     string      `json:"session_id"`
	Stage         string      `json:"stage"`
	RevealedFacts []string    `json:"revealed_facts"`
	DynamicData   DynamicData `json:"dynamic_data"`
}

func (s *EncounterSession) Snapshot() StateSnapshot {
	facts := s.RevealedFacts
	if facts == nil {
		facts = []string{}
	}
	return StateSnapshot{
		SessionID:     s.SessionID,
		Stage:         s.Stage,
		RevealedFacts: facts,
		DynamicData:   s.DynamicData,
	}
}
