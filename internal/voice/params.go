package voice

import (
	"math"
	"strings"
)

// Params are the synthesis knobs sent with every request. They are recomputed
// per turn and passed by value.
type Params struct {
	Exaggeration      float64 `json:"exaggeration"`
	Temperature       float64 `json:"temperature"`
	CFG               float64 `json:"cfg"`
	TopP              float64 `json:"top_p"`
	MinP              float64 `json:"min_p"`
	RepetitionPenalty float64 `json:"repetition_penalty"`
	TopK              int     `json:"top_k"`
}

func baseParams(p Persona) Params {
	return Params{
		Exaggeration:      p.BaseExaggeration,
		Temperature:       p.BaseTemperature,
		CFG:               0.5,
		TopP:              0.95,
		MinP:              0,
		RepetitionPenalty: 1.2,
		TopK:              1000,
	}
}

// Adjust tunes a persona's base parameters for one condition and emotional state.
// Buckets are checked in priority order and only the first match applies:
// pain, anxiety, anger, sadness/fatigue, confusion, respiratory.
func Adjust(p Persona, condition, emotion string) Params {
	out := baseParams(p)
	cond := strings.ToLower(condition)
	emo := strings.ToLower(emotion)

	switch {
	case has(cond, "pain", "hurt", "ache", "agony"):
		out.Exaggeration = math.Min(0.5, out.Exaggeration+0.2)
		out.Temperature = math.Min(0.95, out.Temperature+0.15)
		out.TopP = 0.9

	case has(cond, "anxi", "panic") || has(emo, "fear", "scared", "anxi", "panic", "nervous"):
		out.Exaggeration = math.Min(0.6, out.Exaggeration+0.25)
		out.Temperature = math.Min(1.0, out.Temperature+0.2)
		out.TopP = 0.98
		out.RepetitionPenalty = 1.1

	case has(emo, "angr", "mad", "frustrat"):
		out.Exaggeration = math.Min(0.5, out.Exaggeration+0.15)
		out.Temperature = 0.8
		out.RepetitionPenalty = 1.3

	case has(emo, "sad", "depress") || has(cond, "fatigue", "tired"):
		out.Exaggeration = math.Max(0.1, out.Exaggeration-0.1)
		out.Temperature = math.Max(0.4, out.Temperature-0.2)
		out.TopP = 0.8

	case has(cond, "confus", "dizzy", "deliri"):
		out.Exaggeration = math.Max(0.2, out.Exaggeration+0.05)
		out.Temperature = math.Min(1.1, out.Temperature+0.3)
		out.TopP = 0.99
		out.RepetitionPenalty = 1.05

	case has(cond, "breath", "dyspn", "asthma", "respiratory"):
		out.Exaggeration = math.Min(0.4, out.Exaggeration+0.1)
		out.Temperature = math.Min(0.85, out.Temperature+0.1)
	}
	return out
}

// NurseParams are fixed; the nurse does not react to the patient's condition.
func NurseParams() Params { return baseParams(NurseVoice) }

func has(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
