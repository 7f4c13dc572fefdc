package engine

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/yoockh/oscesim/internal/models"
	"github.com/yoockh/oscesim/internal/providers/llm"
	"github.com/yoockh/oscesim/internal/utils"
)

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

// sessionRepo is an in-memory mongo repository double.
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

func (r *sessionRepo) GetBySessionID(_ context.Context, id string) (*models.EncounterSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	s.Transcript = slices.Clone(s.Transcript)
	s.RevealedFacts = slices.Clone(s.RevealedFacts)
	return &s, nil
}

func (r *sessionRepo) FindActive(_ context.Context, userID, caseID string) (*models.EncounterSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byID {
		if s.UserID == userID && s.CaseID == caseID && s.Status == models.SessionActive {
			s.Transcript = slices.Clone(s.Transcript)
			s.RevealedFacts = slices.Clone(s.RevealedFacts)
			return &s, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (r *sessionRepo) mutate(id string, fn func(*models.EncounterSession)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return utils.ErrNotFound
	}
	fn(&s)
	s.UpdatedAt = time.Now().UTC()
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
		facts := slices.Clone(s.RevealedFacts)
		for _, f := range revealed {
			if !slices.Contains(facts, f) {
				facts = append(facts, f)
			}
		}
		s.RevealedFacts = facts
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

func (r *sessionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// scriptedLLM replays fixed deltas and an optional terminal error.
type scriptedLLM struct {
	mu     sync.Mutex
	deltas []string
	err    error
	calls  []llm.Request
}

func (s *scriptedLLM) StreamAnswer(_ context.Context, req llm.Request) (<-chan string, <-chan error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()

	out := make(chan string, len(s.deltas))
	errs := make(chan error, 1)
	for _, d := range s.deltas {
		out <- d
	}
	close(out)
	if s.err != nil {
		errs <- s.err
	}
	close(errs)
	return out, errs
}

func (s *scriptedLLM) Close() error { return nil }

func (s *scriptedLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}
