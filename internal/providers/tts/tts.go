package tts

import (
	"context"

	"github.com/yoockh/oscesim/internal/voice"
)

const FormatWAV = "wav"

type Request struct {
	Text    string
	VoiceID string
	Params  voice.Params
	Format  string
}

// Synthesizer turns text into one complete waveform.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}
