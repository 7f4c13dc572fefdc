package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/oscesim/internal/voice"
)

func newTestClient(url string) *Chatterbox {
	return NewChatterbox(ChatterboxConfig{
		Endpoint:     url,
		APIKey:       "secret",
		MaxTries:     3,
		RetryInitial: time.Millisecond,
		Timeout:      2 * time.Second,
	}, nil)
}

func TestChatterboxSendsParameters(t *testing.T) {
	var got chatterboxRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte("RIFF-audio"))
	}))
	defer srv.Close()

	params := voice.Adjust(voice.NurseVoice, "", "")
	audioBytes, err := newTestClient(srv.URL).Synthesize(context.Background(), Request{
		Text:    "Yes, doctor.",
		VoiceID: voice.NurseVoice.ProviderVoice(),
		Params:  params,
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFF-audio"), audioBytes)

	assert.Equal(t, "Yes, doctor.", got.Text)
	assert.Equal(t, voice.NurseVoice.ProviderVoice(), got.VoiceID)
	assert.Equal(t, FormatWAV, got.ResponseFormat)
	assert.Equal(t, params.Exaggeration, got.Exaggeration)
	assert.Equal(t, params.TopK, got.TopK)
	assert.Equal(t, params.RepetitionPenalty, got.RepetitionPenalty)
}

func TestChatterboxSendsProviderVoiceID(t *testing.T) {
	var got chatterboxRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte("RIFF-audio"))
	}))
	defer srv.Close()

	persona := voice.DefaultCatalog().Default()
	_, err := newTestClient(srv.URL).Synthesize(context.Background(), Request{
		Text:    "Hello doctor.",
		VoiceID: persona.ProviderVoice(),
		Params:  voice.Adjust(persona, "", ""),
	})
	require.NoError(t, err)
	assert.Equal(t, "s81gfv15gmkv7ads8yzo", got.VoiceID)
	assert.NotEqual(t, persona.ID, got.VoiceID)
}

func TestChatterboxRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	b, err := newTestClient(srv.URL).Synthesize(context.Background(), Request{Text: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), b)
	assert.EqualValues(t, 2, calls.Load())
}

func TestChatterboxDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad voice", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Synthesize(context.Background(), Request{Text: "Hello"})
	require.Error(t, err)
	var serr *StatusError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, http.StatusBadRequest, serr.StatusCode)
	assert.EqualValues(t, 1, calls.Load())
}

func TestChatterboxGivesUpAfterMaxTries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Synthesize(context.Background(), Request{Text: "Hello"})
	require.Error(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestInspectWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "half-second.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, 16000, 16, 1, 1)
	buf := &audio.IntBuffer{Format: &audio.Format{NumChannels: 1, SampleRate: 16000}, Data: make([]int, 8000)}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)

	info, err := InspectWAV(b)
	require.NoError(t, err)
	assert.Equal(t, 16000, info.SampleRate)
	assert.Equal(t, 1, info.Channels)
	assert.Equal(t, 500*time.Millisecond, info.Duration)

	_, err = InspectWAV([]byte("RIFF-audio"))
	assert.ErrorIs(t, err, ErrNotWAV)
}
