package stt

import "context"

type Provider interface {
	Transcribe(ctx context.Context, audio []byte, language string) (text string, confidence float64, err error)
	Close() error
}

// Alternative is one recognition hypothesis.
type Alternative struct {
	Text       string
	Confidence float64
}

// Best picks the highest-confidence non-empty hypothesis; later ties win.
func Best(alts []Alternative) (Alternative, bool) {
	var (
		best Alternative
		ok   bool
	)
	for _, a := range alts {
		if a.Text != "" && (!ok || a.Confidence >= best.Confidence) {
			best, ok = a, true
		}
	}
	return best, ok
}
