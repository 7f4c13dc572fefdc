package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// App holds the simulator settings read from the environment.
type App struct {
	Port        string
	MongoDB     string
	DefaultMode string // gated|natural

	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	AllowedOrigins []string

	ChunkSize       int
	CacheMaxEntries int
	CacheSharedTTL  time.Duration
	CaseCacheTTL    time.Duration
	Prewarm         bool

	VertexProject      string
	VertexLocation     string
	VertexModel        string
	ClassifierTimeout  time.Duration
	GenerationTimeout  time.Duration
	HistoryTurns       int
	UseLLMClassifier   bool
	SpeechEncoding     string
	SpeechSampleRateHz int
	SpeechLanguage     string

	TTSEndpoint string
	TTSAPIKey   string
	TTSRate     float64
	TTSBurst    int
	TTSTimeout  time.Duration

	GCSBucket string
	AudioTTL  time.Duration

	TranscriptWorkers   int
	TranscriptStreamLen int64
	EmbeddingModel      string
	EmbedTranscripts    bool
	ReclaimIdle         time.Duration
}

type envReader struct {
	errs []error
}

func (r *envReader) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *envReader) int(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (r *envReader) float(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (r *envReader) bool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (r *envReader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (r *envReader) list(key string) []string {
	var out []string
	for _, s := range strings.Split(os.Getenv(key), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// LoadApp reads App from the environment. Malformed values are reported together.
func LoadApp() (App, error) {
	r := &envReader{}
	a := App{
		Port:        r.str("PORT", "8080"),
		MongoDB:     r.str("MONGO_DB", "oscesim"),
		DefaultMode: strings.ToLower(r.str("SIMULATION_MODE", "gated")),

		JWTSecret:      r.str("JWT_SECRET", ""),
		JWTIssuer:      r.str("JWT_ISSUER", ""),
		JWTAudience:    r.str("JWT_AUDIENCE", ""),
		AllowedOrigins: r.list("WS_ALLOWED_ORIGINS"),

		ChunkSize:       r.int("TTS_CHUNK_SIZE", 125),
		CacheMaxEntries: r.int("TTS_CACHE_MAX_ENTRIES", 100),
		CacheSharedTTL:  r.duration("TTS_CACHE_SHARED_TTL", 24*time.Hour),
		CaseCacheTTL:    r.duration("CASE_CACHE_TTL", time.Hour),
		Prewarm:         r.bool("TTS_PREWARM", true),

		VertexProject:      r.str("VERTEX_PROJECT_ID", os.Getenv("GOOGLE_CLOUD_PROJECT")),
		VertexLocation:     r.str("VERTEX_LOCATION", "us-central1"),
		VertexModel:        r.str("VERTEX_MODEL", "gemini-2.0-flash"),
		ClassifierTimeout:  r.duration("INTENT_CLASSIFIER_TIMEOUT", 4*time.Second),
		GenerationTimeout:  r.duration("GENERATION_TIMEOUT", 30*time.Second),
		HistoryTurns:       r.int("HISTORY_TURNS", 12),
		UseLLMClassifier:   r.bool("INTENT_LLM_FALLBACK", true),
		SpeechEncoding:     r.str("STT_ENCODING", "WEBM_OPUS"),
		SpeechSampleRateHz: r.int("STT_SAMPLE_RATE_HZ", 48000),
		SpeechLanguage:     r.str("STT_LANGUAGE", "en-US"),

		TTSEndpoint: r.str("TTS_ENDPOINT", ""),
		TTSAPIKey:   r.str("DEEPINFRA_API_KEY", ""),
		TTSRate:     r.float("TTS_RATE_PER_SECOND", 4),
		TTSBurst:    r.int("TTS_BURST", 2),
		TTSTimeout:  r.duration("TTS_TIMEOUT", 30*time.Second),

		GCSBucket: r.str("GCS_AUDIO_BUCKET", ""),
		AudioTTL:  r.duration("AUDIO_ARCHIVE_TTL", 7*24*time.Hour),

		TranscriptWorkers:   r.int("TRANSCRIPT_WORKERS", 2),
		TranscriptStreamLen: int64(r.int("TRANSCRIPT_STREAM_MAXLEN", 100000)),
		EmbeddingModel:      r.str("VERTEX_EMBEDDING_MODEL", "text-embedding-004"),
		EmbedTranscripts:    r.bool("TRANSCRIPT_EMBEDDINGS", true),
		ReclaimIdle:         r.duration("TRANSCRIPT_RECLAIM_IDLE", 30*time.Second),
	}

	if a.DefaultMode != "gated" && a.DefaultMode != "natural" {
		r.errs = append(r.errs, fmt.Errorf("SIMULATION_MODE: want gated or natural, got %q", a.DefaultMode))
	}
	if a.ChunkSize < 1 {
		r.errs = append(r.errs, errors.New("TTS_CHUNK_SIZE must be positive"))
	}
	return a, errors.Join(r.errs...)
}
