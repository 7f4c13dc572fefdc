package workers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/oscesim/internal/models"
	"github.com/yoockh/oscesim/internal/providers/llm"
	"github.com/yoockh/oscesim/internal/services"
	"github.com/yoockh/oscesim/internal/utils"
)

const (
	DefaultTranscriptStream = "transcript:stream"
	DefaultTranscriptGroup  = "transcript-archivers"

	// DefaultReclaimIdle is how long an entry sits unacknowledged before another
	// pass may claim it.
	DefaultReclaimIdle  = 30 * time.Second
	DefaultReclaimEvery = 30 * time.Second
)

// StreamClient is the part of the Redis client the archive workers use.
type StreamClient interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAutoClaim(ctx context.Context, a *redis.XAutoClaimArgs) *redis.XAutoClaimCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
}

// RedisStreamPublisher appends transcript events to a Redis stream for the archive workers.
type RedisStreamPublisher struct {
	Redis  *redis.Client
	Stream string
	MaxLen int64
}

func (p *RedisStreamPublisher) Publish(ctx context.Context, ev models.TranscriptEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	stream := p.Stream
	if stream == "" {
		stream = DefaultTranscriptStream
	}
	return p.Redis.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: p.MaxLen,
		Approx: p.MaxLen > 0,
		Values: map[string]any{
			"session_id": ev.SessionID,
			"event":      string(b),
		},
	}).Err()
}

// TranscriptWorkerPool drains the transcript stream into the Postgres archive.
// Entries whose archive write failed stay pending and are reclaimed with
// XAUTOCLAIM once they have been idle for ReclaimIdle.
type TranscriptWorkerPool struct {
	Redis       StreamClient
	Transcripts services.TranscriptService
	NumWorkers  int

	// Embedder, when set, vectorises trainee and patient lines before they are archived.
	Embedder llm.Embedder

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string

	ReclaimIdle  time.Duration
	ReclaimEvery time.Duration
}

func (p *TranscriptWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Transcripts == nil {
		return errors.New("TranscriptWorkerPool missing dependency: Redis/Transcripts must be set")
	}
	p.defaults()

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	p.Logger.WithFields(logrus.Fields{
		"stream":  p.Stream,
		"group":   p.Group,
		"workers": p.NumWorkers,
	}).Info("transcript workers started")
	return nil
}

func (p *TranscriptWorkerPool) defaults() {
	if p.Stream == "" {
		p.Stream = DefaultTranscriptStream
	}
	if p.Group == "" {
		p.Group = DefaultTranscriptGroup
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 2
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}
	if p.ReclaimIdle <= 0 {
		p.ReclaimIdle = DefaultReclaimIdle
	}
	if p.ReclaimEvery <= 0 {
		p.ReclaimEvery = DefaultReclaimEvery
	}
}

func (p *TranscriptWorkerPool) runConsumer(ctx context.Context, consumer string) {
	// the first pass picks up whatever a previous process left pending
	nextReclaim := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !time.Now().Before(nextReclaim) {
			p.reclaim(ctx, consumer)
			nextReclaim = time.Now().Add(p.ReclaimEvery)
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    20,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			p.Logger.WithError(err).WithField("consumer", consumer).Warn("xreadgroup failed")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.process(ctx, msg)
			}
		}
	}
}

func (p *TranscriptWorkerPool) process(ctx context.Context, msg redis.XMessage) bool {
	if !p.handleMsg(ctx, msg) {
		return false
	}
	if err := p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err(); err != nil {
		p.Logger.WithError(err).WithField("redis_id", msg.ID).Warn("xack failed")
	}
	return true
}

// reclaim takes over entries left pending longer than ReclaimIdle, by this or any
// other consumer, and retries them. It returns how many were archived.
func (p *TranscriptWorkerPool) reclaim(ctx context.Context, consumer string) int {
	archived := 0
	start := "0-0"
	for {
		msgs, next, err := p.Redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   p.Stream,
			Group:    p.Group,
			Consumer: consumer,
			MinIdle:  p.ReclaimIdle,
			Start:    start,
			Count:    20,
		}).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				p.Logger.WithError(err).WithField("consumer", consumer).Warn("xautoclaim failed")
			}
			return archived
		}

		for _, msg := range msgs {
			if p.process(ctx, msg) {
				archived++
			}
		}
		if next == "" || next == "0-0" || next == start {
			break
		}
		start = next
	}

	if archived > 0 {
		p.Logger.WithFields(logrus.Fields{"consumer": consumer, "archived": archived}).Info("reclaimed pending transcript entries")
	}
	return archived
}

// handleMsg archives one entry and reports whether it may be acknowledged.
// Malformed entries are acknowledged so they do not block the group; storage
// failures are left pending for reclaim.
func (p *TranscriptWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) bool {
	log := p.Logger.WithField("redis_id", msg.ID)

	raw, _ := msg.Values["event"].(string)
	if raw == "" {
		log.Warn("transcript entry without event")
		return true
	}

	var ev models.TranscriptEvent
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		log.WithError(err).Warn("transcript event decode failed")
		return true
	}

	p.embed(ctx, &ev)

	if _, err := p.Transcripts.Append(ctx, ev); err != nil {
		if utils.IsCode(err, utils.CodeInvalidArgument) {
			log.WithError(err).Warn("transcript event rejected")
			return true
		}
		log.WithError(err).WithField("session_id", ev.SessionID).Error("transcript archive failed")
		return false
	}
	return true
}

// embed fills ev.Embedding. A failed call only costs the vector, never the line.
func (p *TranscriptWorkerPool) embed(ctx context.Context, ev *models.TranscriptEvent) {
	if p.Embedder == nil || len(ev.Embedding) > 0 || strings.TrimSpace(ev.Text) == "" {
		return
	}
	if ev.Role != models.RoleUser && ev.Role != models.RolePatient {
		return
	}

	vec, err := p.Embedder.Embed(ctx, ev.Text)
	if err != nil {
		p.Logger.WithError(err).WithFields(logrus.Fields{
			"session_id": ev.SessionID,
			"role":       ev.Role,
		}).Warn("transcript embedding failed; archiving without vector")
		return
	}
	ev.Embedding = vec
}
