package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const DefaultEndpoint = "https://api.deepinfra.com/v1/inference/ResembleAI/chatterbox-turbo"

type ChatterboxConfig struct {
	Endpoint string
	APIKey   string
	// RatePerSecond limits outbound calls; zero disables limiting.
	RatePerSecond float64
	Burst         int
	Timeout       time.Duration
	MaxTries      uint
	// RetryInitial is the first backoff interval; zero keeps the library default.
	RetryInitial time.Duration
}

// Chatterbox calls the DeepInfra Chatterbox inference endpoint, which answers
// with raw audio bytes.
type Chatterbox struct {
	cfg     ChatterboxConfig
	http    *http.Client
	limiter *rate.Limiter
	log     logrus.FieldLogger
}

func NewChatterbox(cfg ChatterboxConfig, log logrus.FieldLogger) *Chatterbox {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxTries == 0 {
		cfg.MaxTries = 3
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	return &Chatterbox{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, cfg.Burst),
		log:     log,
	}
}

type chatterboxRequest struct {
	Text              string  `json:"text"`
	VoiceID           string  `json:"voice_id,omitempty"`
	Exaggeration      float64 `json:"exaggeration"`
	Temperature       float64 `json:"temperature"`
	CFG               float64 `json:"cfg"`
	TopP              float64 `json:"top_p"`
	MinP              float64 `json:"min_p"`
	RepetitionPenalty float64 `json:"repetition_penalty"`
	TopK              int     `json:"top_k"`
	ResponseFormat    string  `json:"response_format"`
}

// StatusError is a non-2xx answer from the provider.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chatterbox: status %d: %s", e.StatusCode, e.Body)
}

func (c *Chatterbox) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	format := req.Format
	if format == "" {
		format = FormatWAV
	}
	body, err := json.Marshal(chatterboxRequest{
		Text:              req.Text,
		VoiceID:           req.VoiceID,
		Exaggeration:      req.Params.Exaggeration,
		Temperature:       req.Params.Temperature,
		CFG:               req.Params.CFG,
		TopP:              req.Params.TopP,
		MinP:              req.Params.MinP,
		RepetitionPenalty: req.Params.RepetitionPenalty,
		TopK:              req.Params.TopK,
		ResponseFormat:    format,
	})
	if err != nil {
		return nil, err
	}

	bo := backoff.NewExponentialBackOff()
	if c.cfg.RetryInitial > 0 {
		bo.InitialInterval = c.cfg.RetryInitial
	}

	start := time.Now()
	audio, err := backoff.Retry(ctx, func() ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
		return c.do(ctx, body)
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(c.cfg.MaxTries),
	)
	if err != nil {
		return nil, err
	}

	if c.log != nil {
		c.log.WithFields(logrus.Fields{
			"voice_id":    req.VoiceID,
			"chars":       len(req.Text),
			"bytes":       len(audio),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("tts synthesized")
	}
	return audio, nil
}

func (c *Chatterbox) do(ctx context.Context, body []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		serr := &StatusError{StatusCode: resp.StatusCode, Body: string(msg)}
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			if secs, convErr := strconv.Atoi(resp.Header.Get("Retry-After")); convErr == nil && secs > 0 {
				return nil, backoff.RetryAfter(secs)
			}
			return nil, serr
		case resp.StatusCode >= 500:
			return nil, serr
		default:
			return nil, backoff.Permanent(serr)
		}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, backoff.Permanent(fmt.Errorf("chatterbox: empty audio"))
	}
	return audio, nil
}
