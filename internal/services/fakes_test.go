package services

import (
	"context"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/yoockh/oscesim/internal/models"
	"github.com/yoockh/oscesim/internal/utils"
)

type memSessions struct {
	mu   sync.Mutex
	byID map[string]models.EncounterSession
}

func newMemSessions() *memSessions {
	return &memSessions{byID: map[string]models.EncounterSession{}}
}

func (m *memSessions) Create(_ context.Context, s *models.EncounterSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[s.SessionID] = *s
	return nil
}

func (m *memSessions) GetBySessionID(_ context.Context, id string) (*models.EncounterSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return &s, nil
}

func (m *memSessions) FindActive(_ context.Context, userID, caseID string) (*models.EncounterSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *models.EncounterSession
	for _, s := range m.byID {
		if s.UserID == userID && s.CaseID == caseID && s.Status == models.SessionActive {
			if best == nil || s.UpdatedAt.After(best.UpdatedAt) {
				cp := s
				best = &cp
			}
		}
	}
	if best == nil {
		return nil, utils.ErrNotFound
	}
	return best, nil
}

func (m *memSessions) mutate(id string, fn func(*models.EncounterSession)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return utils.ErrNotFound
	}
	fn(&s)
	s.UpdatedAt = time.Now().UTC()
	m.byID[id] = s
	return nil
}

func (m *memSessions) AppendTranscript(_ context.Context, id string, entries ...models.TranscriptEntry) error {
	return m.mutate(id, func(s *models.EncounterSession) { s.Transcript = append(s.Transcript, entries...) })
}

func (m *memSessions) SetStage(_ context.Context, id, stage string) error {
	return m.mutate(id, func(s *models.EncounterSession) { s.Stage = stage })
}

func (m *memSessions) ApplyState(_ context.Context, id string, revealed []string, dd models.DynamicData) error {
	return m.mutate(id, func(s *models.EncounterSession) {
		for _, f := range revealed {
			if !slices.Contains(s.RevealedFacts, f) {
				s.RevealedFacts = append(s.RevealedFacts, f)
			}
		}
		s.DynamicData = dd
	})
}

func (m *memSessions) Reset(_ context.Context, id, stage string) error {
	return m.mutate(id, func(s *models.EncounterSession) {
		s.Stage = stage
		s.Status = models.SessionActive
		s.RevealedFacts = []string{}
		s.DynamicData = models.DynamicData{}
		s.Transcript = []models.TranscriptEntry{}
	})
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.TranscriptEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev models.TranscriptEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

type memCases struct {
	mu    sync.Mutex
	byID  map[string]models.Case
	reads int
}

func (m *memCases) GetByCaseID(_ context.Context, id string) (*models.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	c, ok := m.byID[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return &c, nil
}

func (m *memCases) Upsert(_ context.Context, c *models.Case) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[c.CaseID] = *c
	return nil
}

func (m *memCases) List(_ context.Context, _ int64) ([]models.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Case, 0, len(m.byID))
	for _, c := range m.byID {
		out = append(out, c)
	}
	return out, nil
}

type memTranscripts struct {
	rows []models.TranscriptLog
}

func (m *memTranscripts) Insert(_ context.Context, row *models.TranscriptLog) error {
	m.rows = append(m.rows, *row)
	return nil
}

func (m *memTranscripts) ListBySession(_ context.Context, userID, sessionID string, _ int) ([]models.TranscriptLog, error) {
	var out []models.TranscriptLog
	for _, r := range m.rows {
		if r.UserID == userID && r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

type memChunks struct {
	rows []models.AudioChunk
}

func (m *memChunks) Insert(_ context.Context, c *models.AudioChunk) error {
	m.rows = append(m.rows, *c)
	return nil
}

func (m *memChunks) ListBySession(_ context.Context, sessionID string, _ int64) ([]models.AudioChunk, error) {
	var out []models.AudioChunk
	for _, r := range m.rows {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

type memBucket struct {
	objects map[string][]byte
}

func (b *memBucket) Upload(_ context.Context, name, _ string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	b.objects[name] = data
	return "gs://audio/" + name, nil
}

func (b *memBucket) SignedGetURL(_ context.Context, name string, _ time.Duration) (string, error) {
	return "https://signed.example/" + strings.TrimPrefix(name, "/"), nil
}

type memCache struct {
	mu   sync.Mutex
	data map[string]any
}

func newMemCache() *memCache { return &memCache{data: map[string]any{}} }

func (c *memCache) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return false, nil
	}
	if cp, ok := dst.(*models.Case); ok {
		*cp = *(v.(*models.Case))
	}
	return true, nil
}

func (c *memCache) SetJSON(_ context.Context, key string, val any, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = val
	return nil
}

func (c *memCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *memCache) DelPrefix(_ context.Context, prefix string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
			n++
		}
	}
	return n, nil
}
