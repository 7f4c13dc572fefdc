package dispatcher

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/yoockh/oscesim/internal/engine"
	"github.com/yoockh/oscesim/internal/models"
	"github.com/yoockh/oscesim/internal/providers/tts"
	"github.com/yoockh/oscesim/internal/utils"
)

// recorder collects emitted events; it is written from two goroutines.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Emit(ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

func (r *recorder) ofType(typ string) []Event {
	var out []Event
	for _, ev := range r.all() {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) types() []string {
	var out []string
	for _, ev := range r.all() {
		out = append(out, ev.Type)
	}
	return out
}

// fakeSynth returns "audio:<text>" and fails for any text containing failOn.
type fakeSynth struct {
	mu     sync.Mutex
	failOn string
	delay  time.Duration
	reqs   []tts.Request
}

func (f *fakeSynth) Synthesize(ctx context.Context, req tts.Request) ([]byte, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.failOn != "" && strings.Contains(req.Text, f.failOn) {
		return nil, errors.New("tts down")
	}
	return []byte("audio:" + req.Text), nil
}

func (f *fakeSynth) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, r := range f.reqs {
		out = append(out, r.Text)
	}
	return out
}

// scriptedRunner streams fixed deltas. When gate is set it blocks after OnStart until closed.
type scriptedRunner struct {
	speaker string
	deltas  []string
	err     error
	gate    chan struct{}
	started chan struct{}
}

func (s *scriptedRunner) ProcessTurn(ctx context.Context, req engine.TurnRequest, h engine.Hooks) (*engine.TurnResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	speaker := s.speaker
	if speaker == "" {
		speaker = models.RolePatient
	}
	h.OnStart(engine.TurnInfo{TurnID: req.TurnID, Speaker: speaker, SessionID: "sess-1"})
	if s.started != nil {
		close(s.started)
	}
	if s.gate != nil {
		<-s.gate
	}
	for _, d := range s.deltas {
		h.OnText(d)
	}
	snap := &models.StateSnapshot{SessionID: "sess-1", Stage: "History"}
	return &engine.TurnResult{
		SessionID: "sess-1",
		Text:      strings.Join(s.deltas, ""),
		Meta:      engine.TurnMeta{TurnID: req.TurnID, Speaker: speaker},
		State:     snap,
	}, nil
}

func (s *scriptedRunner) Join(_ context.Context, userID, sessionID string) (*models.EncounterSession, error) {
	if userID != "u1" {
		return nil, utils.E(utils.CodeForbidden, "scriptedRunner.Join", "session belongs to another user", nil)
	}
	return &models.EncounterSession{
		SessionID:  sessionID,
		UserID:     userID,
		Stage:      "Examination",
		Transcript: []models.TranscriptEntry{{Role: models.RoleUser, Text: "hello"}},
	}, nil
}

func (s *scriptedRunner) Reset(_ context.Context, _, sessionID string) (*models.StateSnapshot, error) {
	return &models.StateSnapshot{SessionID: sessionID, Stage: "History", RevealedFacts: []string{}}, nil
}

type caseStore map[string]*models.Case

func (s caseStore) Get(_ context.Context, id string) (*models.Case, error) {
	c, ok := s[id]
	if !ok {
		return nil, utils.E(utils.CodeNotFound, "caseStore.Get", "case not found", utils.ErrNotFound)
	}
	return c, nil
}

func (s caseStore) Upsert(_ context.Context, c *models.Case) error {
	s[c.CaseID] = c
	return nil
}

func (s caseStore) List(context.Context, int64) ([]models.Case, error) { return nil, nil }

type sessionRepo struct {
	mu   sync.Mutex
	byID map[string]models.EncounterSession
}

func newSessionRepo() *sessionRepo { return &sessionRepo{byID: map[string]models.EncounterSession{}} }

func (r *sessionRepo) Create(_ context.Context, s *models.EncounterSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[s.SessionID] = *s
	return nil
}

func (r *sessionRepo) get(match func(models.EncounterSession) bool) (*models.EncounterSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byID {
		if match(s) {
			s.Transcript = slices.Clone(s.Transcript)
			s.RevealedFacts = slices.Clone(s.RevealedFacts)
			return &s, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (r *sessionRepo) GetBySessionID(_ context.Context, id string) (*models.EncounterSession, error) {
	return r.get(func(s models.EncounterSession) bool { return s.SessionID == id })
}

func (r *sessionRepo) FindActive(_ context.Context, userID, caseID string) (*models.EncounterSession, error) {
	return r.get(func(s models.EncounterSession) bool {
		return s.UserID == userID && s.CaseID == caseID && s.Status == models.SessionActive
	})
}

func (r *sessionRepo) mutate(id string, fn func(*models.EncounterSession)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return utils.ErrNotFound
	}
	fn(&s)
	r.byID[id] = s
	return nil
}

func (r *sessionRepo) AppendTranscript(_ context.Context, id string, entries ...models.TranscriptEntry) error {
	return r.mutate(id, func(s *models.EncounterSession) {
		s.Transcript = append(slices.Clone(s.Transcript), entries...)
	})
}

func (r *sessionRepo) SetStage(_ context.Context, id, stage string) error {
	return r.mutate(id, func(s *models.EncounterSession) { s.Stage = stage })
}

func (r *sessionRepo) ApplyState(_ context.Context, id string, revealed []string, dd models.DynamicData) error {
	return r.mutate(id, func(s *models.EncounterSession) {
		for _, f := range revealed {
			if !slices.Contains(s.RevealedFacts, f) {
				s.RevealedFacts = append(slices.Clone(s.RevealedFacts), f)
			}
		}
		s.DynamicData = dd
	})
}

func (r *sessionRepo) Reset(_ context.Context, id, stage string) error {
	return r.mutate(id, func(s *models.EncounterSession) {
		s.Stage = stage
		s.RevealedFacts = []string{}
		s.DynamicData = models.DynamicData{}
		s.Transcript = []models.TranscriptEntry{}
	})
}

// lockingRunner holds one lock for the whole generation and for Reset, the way
// the engine serialises work on a session. Generation runs until ctx ends.
type lockingRunner struct {
	scriptedRunner
	mu sync.Mutex
}

func (l *lockingRunner) ProcessTurn(ctx context.Context, req engine.TurnRequest, h engine.Hooks) (*engine.TurnResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	h.OnStart(engine.TurnInfo{TurnID: req.TurnID, Speaker: models.RolePatient, SessionID: "sess-1"})
	close(l.started)
	<-ctx.Done()
	return nil, ctx.Err()
}

func (l *lockingRunner) Reset(ctx context.Context, userID, sessionID string) (*models.StateSnapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.scriptedRunner.Reset(ctx, userID, sessionID)
}
