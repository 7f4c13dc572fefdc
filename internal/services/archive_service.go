package services

import (
	"bytes"
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/oscesim/internal/models"
	mongorepo "github.com/yoockh/oscesim/internal/repositories/mongo"
	"github.com/yoockh/oscesim/internal/storage"
	"github.com/yoockh/oscesim/internal/utils"
)

// ArchiveService keeps synthesised chunk audio for later review.
type ArchiveService interface {
	Archive(ctx context.Context, chunk *models.AudioChunk, audio []byte) error
	ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.AudioChunk, error)
}

type archiveService struct {
	chunks   mongorepo.ChunkRepository
	uploader storage.Uploader
	signer   storage.Signer
	ttl      time.Duration
	urlTTL   time.Duration
	log      *logrus.Logger
}

// NewArchiveService stores audio through uploader and indexes it in Mongo for ttl.
// signer may be nil, in which case listed chunks carry no URL.
func NewArchiveService(chunks mongorepo.ChunkRepository, uploader storage.Uploader, signer storage.Signer, ttl time.Duration, log *logrus.Logger) ArchiveService {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	if log == nil {
		log = logrus.New()
	}
	return &archiveService{
		chunks:   chunks,
		uploader: uploader,
		signer:   signer,
		ttl:      ttl,
		urlTTL:   15 * time.Minute,
		log:      log,
	}
}

func (s *archiveService) Archive(ctx context.Context, chunk *models.AudioChunk, audio []byte) error {
	const op = "ArchiveService.Archive"

	if chunk == nil || chunk.SessionID == "" || chunk.TurnID == "" || chunk.ChunkIndex <= 0 {
		return utils.E(utils.CodeInvalidArgument, op, "session_id, turn_id and chunk_index (>0) are required", nil)
	}
	if len(audio) == 0 {
		return utils.E(utils.CodeInvalidArgument, op, "audio is empty", nil)
	}

	stored, err := s.uploader.Upload(ctx, storage.ChunkObject(chunk.SessionID, chunk.TurnID, chunk.ChunkIndex), storage.ContentTypeWAV, bytes.NewReader(audio))
	if err != nil {
		return utils.E(utils.CodeUnavailable, op, "failed to upload chunk audio", err)
	}

	now := time.Now().UTC()
	chunk.ObjectPath = stored
	chunk.Bytes = len(audio)
	chunk.Timestamp = now
	chunk.ExpiresAt = now.Add(s.ttl)

	if err := s.chunks.Insert(ctx, chunk); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to index chunk audio", err)
	}
	return nil
}

func (s *archiveService) ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.AudioChunk, error) {
	const op = "ArchiveService.ListBySession"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	out, err := s.chunks.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list chunk audio", err)
	}
	if s.signer == nil {
		return out, nil
	}

	for i := range out {
		name := storage.ObjectName(out[i].ObjectPath)
		url, err := s.signer.SignedGetURL(ctx, name, s.urlTTL)
		if err != nil {
			s.log.WithError(err).WithField("object", name).Warn("sign chunk url failed")
			continue
		}
		out[i].URL = url
	}
	return out, nil
}
