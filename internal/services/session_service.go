package services

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/oscesim/internal/gate"
	"github.com/yoockh/oscesim/internal/models"
	mongorepo "github.com/yoockh/oscesim/internal/repositories/mongo"
	"github.com/yoockh/oscesim/internal/utils"
)

// TranscriptPublisher hands transcript lines to the archive pipeline.
type TranscriptPublisher interface {
	Publish(ctx context.Context, ev models.TranscriptEvent) error
}

// TranscriptLine is one utterance plus the annotations that go to the archive only.
type TranscriptLine struct {
	Role     string
	Text     string
	Intent   string
	Tags     []string
	Metadata map[string]any
}

type SessionService interface {
	LoadOrCreate(ctx context.Context, userID, caseID, sessionID string) (*models.EncounterSession, error)
	Get(ctx context.Context, sessionID string) (*models.EncounterSession, error)
	AppendTranscript(ctx context.Context, sess *models.EncounterSession, lines ...TranscriptLine) error
	SetStage(ctx context.Context, sess *models.EncounterSession, stage gate.Stage) error
	ApplyState(ctx context.Context, sess *models.EncounterSession, revealed []string, dd models.DynamicData) error
	Reset(ctx context.Context, sess *models.EncounterSession) error
}

type sessionService struct {
	sessions  mongorepo.SessionRepository
	publisher TranscriptPublisher
	log       *logrus.Logger
}

// NewSessionService wires the session store. publisher may be nil when no archive runs.
func NewSessionService(sessions mongorepo.SessionRepository, publisher TranscriptPublisher, log *logrus.Logger) SessionService {
	if log == nil {
		log = logrus.New()
	}
	return &sessionService{sessions: sessions, publisher: publisher, log: log}
}

func (s *sessionService) LoadOrCreate(ctx context.Context, userID, caseID, sessionID string) (*models.EncounterSession, error) {
	const op = "SessionService.LoadOrCreate"

	if userID == "" || caseID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id and case_id are required", nil)
	}

	var (
		existing *models.EncounterSession
		err      error
	)
	if sessionID != "" {
		existing, err = s.sessions.GetBySessionID(ctx, sessionID)
	} else {
		existing, err = s.sessions.FindActive(ctx, userID, caseID)
	}

	switch {
	case err == nil:
		if existing.UserID != userID {
			return nil, utils.E(utils.CodeForbidden, op, "session belongs to another user", nil)
		}
		if existing.CaseID != caseID {
			return nil, utils.E(utils.CodeConflict, op, "session is bound to a different case", nil)
		}
		return existing, nil
	case !errors.Is(err, utils.ErrNotFound):
		return nil, utils.E(utils.CodeInternal, op, "failed to load session", err)
	}

	id := sessionID
	if _, perr := uuid.Parse(id); perr != nil {
		id = uuid.NewString()
	}

	now := time.Now().UTC()
	sess := &models.EncounterSession{
		SessionID:     id,
		UserID:        userID,
		CaseID:        caseID,
		Stage:         string(gate.History),
		Status:        models.SessionActive,
		RevealedFacts: []string{},
		Transcript:    []models.TranscriptEntry{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create session", err)
	}

	s.log.WithFields(logrus.Fields{
		"session_id": sess.SessionID,
		"user_id":    userID,
		"case_id":    caseID,
	}).Info("encounter session created")
	return sess, nil
}

func (s *sessionService) Get(ctx context.Context, sessionID string) (*models.EncounterSession, error) {
	const op = "SessionService.Get"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}

	out, err := s.sessions.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get session", err)
	}
	return out, nil
}

func (s *sessionService) AppendTranscript(ctx context.Context, sess *models.EncounterSession, lines ...TranscriptLine) error {
	const op = "SessionService.AppendTranscript"

	if sess == nil || sess.SessionID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session is required", nil)
	}

	now := time.Now().UTC()
	entries := make([]models.TranscriptEntry, 0, len(lines))
	for _, l := range lines {
		if l.Text == "" || l.Role == "" {
			continue
		}
		entries = append(entries, models.TranscriptEntry{Role: l.Role, Text: l.Text, Timestamp: now})
	}
	if len(entries) == 0 {
		return nil
	}

	if err := s.sessions.AppendTranscript(ctx, sess.SessionID, entries...); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to append transcript", err)
	}
	sess.Transcript = append(sess.Transcript, entries...)
	sess.UpdatedAt = now

	if s.publisher == nil {
		return nil
	}
	for _, l := range lines {
		if l.Text == "" || l.Role == "" {
			continue
		}
		ev := models.TranscriptEvent{
			UserID:    sess.UserID,
			SessionID: sess.SessionID,
			CaseID:    sess.CaseID,
			Role:      l.Role,
			Text:      l.Text,
			Intent:    l.Intent,
			Tags:      l.Tags,
			Metadata:  l.Metadata,
			Timestamp: now,
		}
		if err := s.publisher.Publish(ctx, ev); err != nil {
			// the live transcript is already stored; the archive copy is best effort
			s.log.WithError(err).WithField("session_id", sess.SessionID).Warn("transcript publish failed")
		}
	}
	return nil
}

func (s *sessionService) SetStage(ctx context.Context, sess *models.EncounterSession, stage gate.Stage) error {
	const op = "SessionService.SetStage"

	if sess == nil || sess.SessionID == "" || stage == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session and stage are required", nil)
	}
	if sess.Stage == string(stage) {
		return nil
	}
	if err := s.sessions.SetStage(ctx, sess.SessionID, string(stage)); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to set stage", err)
	}
	sess.Stage = string(stage)
	return nil
}

// ApplyState merges newly revealed facts and replaces the dynamic data.
func (s *sessionService) ApplyState(ctx context.Context, sess *models.EncounterSession, revealed []string, dd models.DynamicData) error {
	const op = "SessionService.ApplyState"

	if sess == nil || sess.SessionID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session is required", nil)
	}

	var fresh []string
	for _, f := range revealed {
		if f != "" && !slices.Contains(sess.RevealedFacts, f) && !slices.Contains(fresh, f) {
			fresh = append(fresh, f)
		}
	}

	if err := s.sessions.ApplyState(ctx, sess.SessionID, fresh, dd); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to apply session state", err)
	}
	sess.RevealedFacts = append(sess.RevealedFacts, fresh...)
	sess.DynamicData = dd
	return nil
}

func (s *sessionService) Reset(ctx context.Context, sess *models.EncounterSession) error {
	const op = "SessionService.Reset"

	if sess == nil || sess.SessionID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session is required", nil)
	}
	if err := s.sessions.Reset(ctx, sess.SessionID, string(gate.History)); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to reset session", err)
	}

	sess.Stage = string(gate.History)
	sess.Status = models.SessionActive
	sess.RevealedFacts = []string{}
	sess.DynamicData = models.DynamicData{}
	sess.Transcript = []models.TranscriptEntry{}
	sess.UpdatedAt = time.Now().UTC()
	return nil
}
