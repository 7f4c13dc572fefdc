package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yoockh/oscesim/internal/utils"
)

const (
	DefaultMaxEntries = 100
	// MaxCacheableLen is the trimmed length below which callers route text through the cache.
	MaxCacheableLen = 50

	sharedPrefix   = "tts:"
	prewarmWorkers = 4
)

// CommonPhrases are short patient lines worth synthesising ahead of the first turn.
var CommonPhrases = []string{
	"Hello",
	"Hi doctor",
	"Good morning",
	"It hurts",
	"I don't know",
	"Yes",
	"No",
	"Maybe",
	"I'm not sure",
	"Can you repeat that?",
	"Since yesterday",
	"Since this morning",
	"A few days ago",
	"About a week",
	"It comes and goes",
	"It's constant",
	"Right here",
	"In my chest",
	"I feel dizzy",
	"I can't breathe well",
}

// Cacheable reports whether text is short enough to be worth caching.
func Cacheable(text string) bool {
	t := strings.TrimSpace(text)
	return t != "" && len([]rune(t)) < MaxCacheableLen
}

type SynthFunc func(ctx context.Context) ([]byte, error)

type entryKey struct {
	text  string
	voice string
}

func keyFor(text, voiceID string) entryKey {
	// only whitespace is normalised; case and punctuation change the audio
	return entryKey{text: strings.TrimSpace(text), voice: voiceID}
}

type Stats struct {
	Size    int   `json:"size"`
	MaxSize int   `json:"max_size"`
	Phrases int   `json:"phrases"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// SynthesisCache memoises waveforms per (trimmed text, voice). Entries are written
// once and never evicted; once the cap is reached further inserts are skipped.
// An optional shared level lets several processes reuse each other's audio.
type SynthesisCache struct {
	mu      sync.RWMutex
	entries map[entryKey][]byte
	maxSize int

	shared    Cache
	sharedTTL time.Duration

	hits   atomic.Int64
	misses atomic.Int64

	log logrus.FieldLogger
}

type Option func(*SynthesisCache)

// WithShared adds a second level looked up on local misses.
func WithShared(c Cache, ttl time.Duration) Option {
	return func(s *SynthesisCache) {
		s.shared = c
		s.sharedTTL = ttl
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *SynthesisCache) { s.log = l }
}

func NewSynthesisCache(maxSize int, opts ...Option) *SynthesisCache {
	if maxSize <= 0 {
		maxSize = DefaultMaxEntries
	}
	s := &SynthesisCache{entries: map[entryKey][]byte{}, maxSize: maxSize}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		s.log = l
	}
	return s
}

func sharedKey(k entryKey) string {
	return sharedPrefix + k.voice + ":" + utils.Digest(k.text)
}

func (s *SynthesisCache) lookup(k entryKey) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.entries[k]
	return b, ok
}

// store inserts k if it is absent and there is room. It reports whether k is now held.
func (s *SynthesisCache) store(k entryKey, audio []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[k]; ok {
		return false
	}
	if len(s.entries) >= s.maxSize {
		return false
	}
	s.entries[k] = audio
	return true
}

// Get returns cached audio or runs synth exactly once on a miss.
func (s *SynthesisCache) Get(ctx context.Context, text, voiceID string, synth SynthFunc) ([]byte, bool, error) {
	const op = "SynthesisCache.Get"
	k := keyFor(text, voiceID)

	if b, ok := s.lookup(k); ok {
		s.hits.Add(1)
		return b, true, nil
	}

	if s.shared != nil {
		var b []byte
		hit, err := s.shared.GetJSON(ctx, sharedKey(k), &b)
		if err != nil {
			s.log.WithError(err).Warn("shared synthesis cache read failed")
		} else if hit && len(b) > 0 {
			s.store(k, b)
			s.hits.Add(1)
			return b, true, nil
		}
	}

	s.misses.Add(1)
	audio, err := synth(ctx)
	if err != nil {
		return nil, false, utils.E(utils.CodeUnavailable, op, "synthesis failed", err)
	}
	s.Set(ctx, text, voiceID, audio)
	return audio, false, nil
}

// Set inserts audio when the key is new and the cache has room.
func (s *SynthesisCache) Set(ctx context.Context, text, voiceID string, audio []byte) bool {
	k := keyFor(text, voiceID)
	if len(audio) == 0 {
		return false
	}
	if !s.store(k, audio) {
		s.log.WithFields(logrus.Fields{"voice_id": voiceID, "size": s.Len()}).Debug("synthesis cache insert skipped")
		return false
	}
	if s.shared != nil {
		if err := s.shared.SetJSON(ctx, sharedKey(k), audio, s.sharedTTL); err != nil {
			s.log.WithError(err).Warn("shared synthesis cache write failed")
		}
	}
	return true
}

// Prewarm synthesises CommonPhrases for a voice. Individual failures are logged
// and skipped; the number of phrases now cached is returned.
func (s *SynthesisCache) Prewarm(ctx context.Context, voiceID string, synth func(ctx context.Context, text string) ([]byte, error)) int {
	start := time.Now()
	var warmed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(prewarmWorkers)
	for _, phrase := range CommonPhrases {
		g.Go(func() error {
			_, _, err := s.Get(gctx, phrase, voiceID, func(c context.Context) ([]byte, error) {
				return synth(c, phrase)
			})
			if err != nil {
				s.log.WithError(err).WithField("phrase", phrase).Warn("prewarm phrase failed")
				return nil
			}
			warmed.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	s.log.WithFields(logrus.Fields{
		"voice_id":    voiceID,
		"warmed":      warmed.Load(),
		"size":        s.Len(),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("synthesis cache prewarmed")
	return int(warmed.Load())
}

// Clear drops entries for one voice, or everything when voiceID is empty.
func (s *SynthesisCache) Clear(ctx context.Context, voiceID string) int {
	s.mu.Lock()
	removed := 0
	if voiceID == "" {
		removed = len(s.entries)
		s.entries = map[entryKey][]byte{}
	} else {
		for k := range s.entries {
			if k.voice == voiceID {
				delete(s.entries, k)
				removed++
			}
		}
	}
	s.mu.Unlock()

	if s.shared != nil {
		prefix := sharedPrefix
		if voiceID != "" {
			prefix += voiceID + ":"
		}
		if _, err := s.shared.DelPrefix(ctx, prefix); err != nil {
			s.log.WithError(err).Warn("shared synthesis cache clear failed")
		}
	}
	return removed
}

func (s *SynthesisCache) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *SynthesisCache) Stats() Stats {
	return Stats{
		Size:    s.Len(),
		MaxSize: s.maxSize,
		Phrases: len(CommonPhrases),
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
	}
}
