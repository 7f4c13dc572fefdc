package tts

import (
	"bytes"
	"errors"
	"time"

	"github.com/go-audio/wav"
)

type AudioInfo struct {
	Duration   time.Duration `json:"duration"`
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"`
}

var ErrNotWAV = errors.New("not a wav payload")

// InspectWAV reads the header of a WAV payload and derives its length from the PCM chunk.
func InspectWAV(b []byte) (AudioInfo, error) {
	d := wav.NewDecoder(bytes.NewReader(b))
	if !d.IsValidFile() {
		return AudioInfo{}, ErrNotWAV
	}
	if err := d.FwdToPCM(); err != nil {
		return AudioInfo{}, err
	}
	info := AudioInfo{SampleRate: int(d.SampleRate), Channels: int(d.NumChans)}
	bytesPerSec := int64(d.SampleRate) * int64(d.NumChans) * int64(d.BitDepth) / 8
	if bytesPerSec > 0 {
		info.Duration = time.Duration(d.PCMLen() * int64(time.Second) / bytesPerSec)
	}
	return info, nil
}
