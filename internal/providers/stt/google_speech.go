package stt

import (
	"context"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
)

// clinicalPhrases bias recognition toward what trainees say at the bedside.
var clinicalPhrases = []string{
	"chest pain", "shortness of breath", "palpitations", "radiate", "radiation",
	"ECG", "troponin", "blood pressure", "oxygen saturation", "past medical history",
	"allergies", "medications", "on a scale of one to ten", "nurse", "observations",
}

type GoogleSpeech struct {
	c *speech.Client

	Encoding     speechpb.RecognitionConfig_AudioEncoding
	SampleRateHz int32
}

// ParseEncoding maps a config name such as "LINEAR16" or "webm_opus" onto the API enum.
// Unknown names fall back to LINEAR16.
func ParseEncoding(name string) speechpb.RecognitionConfig_AudioEncoding {
	if v, ok := speechpb.RecognitionConfig_AudioEncoding_value[strings.ToUpper(strings.TrimSpace(name))]; ok {
		return speechpb.RecognitionConfig_AudioEncoding(v)
	}
	return speechpb.RecognitionConfig_LINEAR16
}

func NewGoogleSpeech(ctx context.Context, encoding string, sampleRateHz int32) (*GoogleSpeech, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	if sampleRateHz <= 0 {
		sampleRateHz = 16000
	}
	return &GoogleSpeech{
		c:            c,
		Encoding:     ParseEncoding(encoding),
		SampleRateHz: sampleRateHz,
	}, nil
}

func (g *GoogleSpeech) Close() error { return g.c.Close() }

func (g *GoogleSpeech) config(language string) *speechpb.RecognitionConfig {
	if language == "" {
		language = "en-US"
	}
	cfg := &speechpb.RecognitionConfig{
		Encoding:                   g.Encoding,
		LanguageCode:               language,
		EnableAutomaticPunctuation: true,
		MaxAlternatives:            3,
		SpeechContexts:             []*speechpb.SpeechContext{{Phrases: clinicalPhrases, Boost: 10}},
	}
	// container formats carry their own rate
	if g.Encoding == speechpb.RecognitionConfig_LINEAR16 || g.Encoding == speechpb.RecognitionConfig_MULAW {
		cfg.SampleRateHertz = g.SampleRateHz
	}
	return cfg
}

// language example: "en-US", "en-GB"
func (g *GoogleSpeech) Transcribe(ctx context.Context, audio []byte, language string) (string, float64, error) {
	resp, err := g.c.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: g.config(language),
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return "", 0, err
	}

	// results are consecutive segments; join the best hypothesis of each
	var (
		parts []string
		conf  float64
	)
	for _, r := range resp.Results {
		alts := make([]Alternative, 0, len(r.Alternatives))
		for _, a := range r.Alternatives {
			alts = append(alts, Alternative{Text: strings.TrimSpace(a.Transcript), Confidence: float64(a.Confidence)})
		}
		if best, ok := Best(alts); ok {
			parts = append(parts, best.Text)
			conf += best.Confidence
		}
	}
	if len(parts) == 0 {
		return "", 0, nil
	}
	return strings.Join(parts, " "), conf / float64(len(parts)), nil
}
