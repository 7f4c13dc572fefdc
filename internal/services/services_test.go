package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/oscesim/internal/gate"
	"github.com/yoockh/oscesim/internal/models"
	"github.com/yoockh/oscesim/internal/utils"
)

func TestLoadOrCreateReusesActiveSession(t *testing.T) {
	ctx := context.Background()
	svc := NewSessionService(newMemSessions(), nil, nil)

	first, err := svc.LoadOrCreate(ctx, "u1", "mi-01", "")
	require.NoError(t, err)
	assert.Equal(t, string(gate.History), first.Stage)
	_, err = uuid.Parse(first.SessionID)
	require.NoError(t, err)

	again, err := svc.LoadOrCreate(ctx, "u1", "mi-01", "")
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, again.SessionID)

	other, err := svc.LoadOrCreate(ctx, "u1", "asthma-02", "")
	require.NoError(t, err)
	assert.NotEqual(t, first.SessionID, other.SessionID)
}

func TestLoadOrCreateKeepsClientSessionID(t *testing.T) {
	ctx := context.Background()
	svc := NewSessionService(newMemSessions(), nil, nil)

	id := uuid.NewString()
	s, err := svc.LoadOrCreate(ctx, "u1", "mi-01", id)
	require.NoError(t, err)
	assert.Equal(t, id, s.SessionID)

	s, err = svc.LoadOrCreate(ctx, "u1", "mi-01", "not-a-uuid")
	require.NoError(t, err)
	assert.NotEqual(t, "not-a-uuid", s.SessionID)
}

func TestLoadOrCreateRejectsForeignSession(t *testing.T) {
	ctx := context.Background()
	svc := NewSessionService(newMemSessions(), nil, nil)

	s, err := svc.LoadOrCreate(ctx, "u1", "mi-01", "")
	require.NoError(t, err)

	_, err = svc.LoadOrCreate(ctx, "u2", "mi-01", s.SessionID)
	assert.True(t, utils.IsCode(err, utils.CodeForbidden))

	_, err = svc.LoadOrCreate(ctx, "u1", "asthma-02", s.SessionID)
	assert.True(t, utils.IsCode(err, utils.CodeConflict))

	_, err = svc.LoadOrCreate(ctx, "", "mi-01", "")
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

func TestAppendTranscriptPublishesAnnotatedLines(t *testing.T) {
	ctx := context.Background()
	repo := newMemSessions()
	pub := &recordingPublisher{}
	svc := NewSessionService(repo, pub, nil)

	s, err := svc.LoadOrCreate(ctx, "u1", "mi-01", "")
	require.NoError(t, err)

	err = svc.AppendTranscript(ctx, s,
		TranscriptLine{Role: models.RoleUser, Text: "Do you have allergies?", Intent: "ASK_ALLERGIES"},
		TranscriptLine{Role: models.RolePatient, Text: "", Intent: "ASK_ALLERGIES"},
		TranscriptLine{Role: models.RolePatient, Text: "No allergies.", Tags: []string{"sigh"}},
	)
	require.NoError(t, err)
	require.Len(t, s.Transcript, 2)

	stored, err := svc.Get(ctx, s.SessionID)
	require.NoError(t, err)
	require.Len(t, stored.Transcript, 2)
	assert.Equal(t, "No allergies.", stored.Transcript[1].Text)

	require.Len(t, pub.events, 2)
	assert.Equal(t, "ASK_ALLERGIES", pub.events[0].Intent)
	assert.Equal(t, []string{"sigh"}, pub.events[1].Tags)
	assert.Equal(t, "mi-01", pub.events[1].CaseID)
	assert.Equal(t, "u1", pub.events[1].UserID)
}

func TestApplyStateAccumulatesDistinctFacts(t *testing.T) {
	ctx := context.Background()
	svc := NewSessionService(newMemSessions(), nil, nil)

	s, err := svc.LoadOrCreate(ctx, "u1", "mi-01", "")
	require.NoError(t, err)

	require.NoError(t, svc.ApplyState(ctx, s, []string{"ASK_ALLERGIES", "CHECK_VITALS"}, models.DynamicData{}))
	dd := models.DynamicData{Findings: []models.Finding{{System: "cvs", Finding: "Normal heart sounds."}}}
	require.NoError(t, svc.ApplyState(ctx, s, []string{"CHECK_VITALS", "PERFORM_EXAM_CARDIO", "PERFORM_EXAM_CARDIO"}, dd))

	assert.Equal(t, []string{"ASK_ALLERGIES", "CHECK_VITALS", "PERFORM_EXAM_CARDIO"}, s.RevealedFacts)

	stored, err := svc.Get(ctx, s.SessionID)
	require.NoError(t, err)
	assert.Equal(t, s.RevealedFacts, stored.RevealedFacts)
	assert.Equal(t, "cvs", stored.DynamicData.Findings[0].System)
}

func TestSetStageAndReset(t *testing.T) {
	ctx := context.Background()
	svc := NewSessionService(newMemSessions(), nil, nil)

	s, err := svc.LoadOrCreate(ctx, "u1", "mi-01", "")
	require.NoError(t, err)
	require.NoError(t, svc.SetStage(ctx, s, gate.Examination))
	require.NoError(t, svc.AppendTranscript(ctx, s, TranscriptLine{Role: models.RoleUser, Text: "hello"}))
	require.NoError(t, svc.ApplyState(ctx, s, []string{"GREETING"}, models.DynamicData{}))

	require.NoError(t, svc.Reset(ctx, s))
	assert.Equal(t, string(gate.History), s.Stage)
	assert.Empty(t, s.Transcript)
	assert.Empty(t, s.RevealedFacts)

	stored, err := svc.Get(ctx, s.SessionID)
	require.NoError(t, err)
	assert.Equal(t, string(gate.History), stored.Stage)
	assert.Empty(t, stored.Transcript)

	_, err = svc.Get(ctx, uuid.NewString())
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestCaseServiceReadsThrough(t *testing.T) {
	ctx := context.Background()
	repo := &memCases{byID: map[string]models.Case{
		"mi-01": {CaseID: "mi-01", Truth: models.CaseTruth{ChiefComplaint: "Chest pain."}},
	}}
	shared := newMemCache()
	svc := NewCaseService(repo, shared, CaseServiceConfig{}, nil)

	c, err := svc.Get(ctx, "mi-01")
	require.NoError(t, err)
	assert.Equal(t, "Chest pain.", c.Truth.ChiefComplaint)

	_, err = svc.Get(ctx, "mi-01")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.reads)

	// a second process only sees the shared level
	other := NewCaseService(repo, shared, CaseServiceConfig{}, nil)
	_, err = other.Get(ctx, "mi-01")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.reads)

	_, err = svc.Get(ctx, "missing")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestCaseServiceUpsertInvalidates(t *testing.T) {
	ctx := context.Background()
	repo := &memCases{byID: map[string]models.Case{
		"mi-01": {CaseID: "mi-01", Truth: models.CaseTruth{ChiefComplaint: "Chest pain."}},
	}}
	svc := NewCaseService(repo, newMemCache(), CaseServiceConfig{}, nil)

	_, err := svc.Get(ctx, "mi-01")
	require.NoError(t, err)

	require.NoError(t, svc.Upsert(ctx, &models.Case{CaseID: "mi-01", Truth: models.CaseTruth{ChiefComplaint: "Worse chest pain."}}))
	c, err := svc.Get(ctx, "mi-01")
	require.NoError(t, err)
	assert.Equal(t, "Worse chest pain.", c.Truth.ChiefComplaint)

	err = svc.Upsert(ctx, &models.Case{CaseID: "broken"})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidCase))
}

func TestTranscriptServiceAppend(t *testing.T) {
	ctx := context.Background()
	repo := &memTranscripts{}
	svc := NewTranscriptService(repo)

	row, err := svc.Append(ctx, models.TranscriptEvent{
		UserID:    "u1",
		SessionID: uuid.NewString(),
		CaseID:    "mi-01",
		Role:      models.RolePatient,
		Text:      "It hurts.",
		Intent:    "ASK_SEVERITY",
		Tags:      []string{"groan"},
		Metadata:  map[string]any{"voice_id": "steve"},
		Embedding: []float32{0.1, 0.2},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"voice_id":"steve"}`, string(row.Metadata))
	require.NotNil(t, row.Embedding)
	assert.Equal(t, []float32{0.1, 0.2}, row.Embedding.Slice())
	assert.False(t, row.Timestamp.IsZero())

	rows, err := svc.ListBySession(ctx, "u1", row.SessionID, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = svc.Append(ctx, models.TranscriptEvent{UserID: "u1"})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

func TestArchiveServiceStoresAndSigns(t *testing.T) {
	ctx := context.Background()
	bucket := &memBucket{objects: map[string][]byte{}}
	chunks := &memChunks{}
	svc := NewArchiveService(chunks, bucket, bucket, 0, nil)

	c := &models.AudioChunk{SessionID: "s1", TurnID: "t1", ChunkIndex: 2, VoiceID: "steve", Text: "hello"}
	require.NoError(t, svc.Archive(ctx, c, []byte("RIFF")))

	assert.Equal(t, []byte("RIFF"), bucket.objects["sessions/s1/t1/0002.wav"])
	assert.Equal(t, "gs://audio/sessions/s1/t1/0002.wav", c.ObjectPath)
	assert.True(t, c.ExpiresAt.After(c.Timestamp))

	out, err := svc.ListBySession(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "https://signed.example/sessions/s1/t1/0002.wav", out[0].URL)

	err = svc.Archive(ctx, &models.AudioChunk{SessionID: "s1", TurnID: "t1"}, []byte("x"))
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}
