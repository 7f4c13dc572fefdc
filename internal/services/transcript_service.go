package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"

	"github.com/yoockh/oscesim/internal/models"
	pgrepo "github.com/yoockh/oscesim/internal/repositories/postgres"
	"github.com/yoockh/oscesim/internal/utils"
)

type TranscriptService interface {
	Append(ctx context.Context, ev models.TranscriptEvent) (*models.TranscriptLog, error)
	ListBySession(ctx context.Context, userID, sessionID string, limit int) ([]models.TranscriptLog, error)
}

type transcriptService struct {
	logs pgrepo.TranscriptRepo
}

func NewTranscriptService(logs pgrepo.TranscriptRepo) TranscriptService {
	return &transcriptService{logs: logs}
}

func (s *transcriptService) Append(ctx context.Context, ev models.TranscriptEvent) (*models.TranscriptLog, error) {
	const op = "TranscriptService.Append"

	if ev.UserID == "" || ev.SessionID == "" || ev.Role == "" || ev.Text == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id, session_id, role, and text are required", nil)
	}

	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	row := &models.TranscriptLog{
		ID:        uuid.NewString(),
		UserID:    ev.UserID,
		SessionID: ev.SessionID,
		CaseID:    ev.CaseID,
		Role:      ev.Role,
		Content:   ev.Text,
		Intent:    ev.Intent,
		Tags:      ev.Tags,
		Timestamp: ts,
	}

	if len(ev.Metadata) > 0 {
		b, err := json.Marshal(ev.Metadata)
		if err != nil {
			return nil, utils.E(utils.CodeInvalidArgument, op, "metadata is not valid json", err)
		}
		row.Metadata = datatypes.JSON(b)
	}
	if len(ev.Embedding) > 0 {
		v := pgvector.NewVector(ev.Embedding)
		row.Embedding = &v
	}

	if err := s.logs.Insert(ctx, row); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to insert transcript log", err)
	}
	return row, nil
}

func (s *transcriptService) ListBySession(ctx context.Context, userID, sessionID string, limit int) ([]models.TranscriptLog, error) {
	const op = "TranscriptService.ListBySession"

	if userID == "" || sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id and session_id are required", nil)
	}

	rows, err := s.logs.ListBySession(ctx, userID, sessionID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list transcript", err)
	}
	return rows, nil
}
