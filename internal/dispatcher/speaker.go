package dispatcher

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/oscesim/internal/cache"
	"github.com/yoockh/oscesim/internal/models"
	"github.com/yoockh/oscesim/internal/profile"
	"github.com/yoockh/oscesim/internal/providers/tts"
	"github.com/yoockh/oscesim/internal/tags"
	"github.com/yoockh/oscesim/internal/utils"
	"github.com/yoockh/oscesim/internal/voice"
)

var ErrEmptyText = errors.New("nothing to speak")

// VoicePlan is fixed once per turn so every chunk of a reply sounds the same.
type VoicePlan struct {
	Speaker    string
	Persona    voice.Persona
	Params     voice.Params
	TagContext tags.Context
	AutoTags   bool
}

// Speech is one synthesised chunk.
type Speech struct {
	Text     string
	Audio    []byte
	Tags     []tags.Tag
	CacheHit bool
	Duration int64 // ms, zero when the payload is not WAV
}

// Speaker turns text into audio for a voice plan: tag processing, cache, synthesis.
type Speaker struct {
	catalog *voice.Catalog
	tagger  *tags.Engine
	cache   *cache.SynthesisCache
	synth   tts.Synthesizer
	log     logrus.FieldLogger
}

// NewSpeaker wires the voice pipeline. cache may be nil.
func NewSpeaker(catalog *voice.Catalog, tagger *tags.Engine, c *cache.SynthesisCache, synth tts.Synthesizer, log logrus.FieldLogger) *Speaker {
	if catalog == nil {
		catalog = voice.DefaultCatalog()
	}
	if tagger == nil {
		tagger = tags.New(nil)
	}
	if log == nil {
		log = logrus.New()
	}
	return &Speaker{catalog: catalog, tagger: tagger, cache: c, synth: synth, log: log}
}

// Plan resolves the voice for one turn. The nurse has a constant voice and is never tagged.
func (s *Speaker) Plan(speaker string, c *models.Case) VoicePlan {
	if speaker == models.RoleNurse {
		return VoicePlan{Speaker: speaker, Persona: voice.NurseVoice, Params: voice.NurseParams()}
	}

	p := profile.Extract(c)
	voiceID := ""
	if c != nil {
		voiceID = c.Truth.VoiceID
	}
	persona := s.catalog.SelectWithOverride(voice.CriteriaFrom(p), voiceID)
	return VoicePlan{
		Speaker: models.RolePatient,
		Persona: persona,
		Params:  voice.Adjust(persona, p.PrimaryCondition(), p.EmotionalState),
		TagContext: tags.Context{
			Conditions:     p.Conditions,
			EmotionalState: p.EmotionalState,
			Age:            p.Age,
		},
		AutoTags: true,
	}
}

// prepare applies the tag rules: stripped for the nurse, generator tags kept
// as written, otherwise inserted from the plan's context. Short phrases are left
// untagged so a repeated phrase always maps to the same cache entry.
func (s *Speaker) prepare(plan VoicePlan, text string) string {
	switch {
	case !plan.AutoTags:
		return tags.Strip(text)
	case tags.HasEmbedded(text):
		return text
	case s.cache != nil && cache.Cacheable(text):
		return text
	default:
		return s.tagger.Insert(text, plan.TagContext)
	}
}

// Speak synthesises one chunk. Short texts go through the synthesis cache, keyed
// on the persona id; the provider only ever sees its own voice id.
func (s *Speaker) Speak(ctx context.Context, plan VoicePlan, text string) (*Speech, error) {
	const op = "Speaker.Speak"
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if s.synth == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "speech synthesis not configured", nil)
	}

	spoken := s.prepare(plan, text)
	if strings.TrimSpace(spoken) == "" {
		return nil, ErrEmptyText
	}

	synth := func(ctx context.Context) ([]byte, error) {
		return s.synth.Synthesize(ctx, tts.Request{
			Text:    spoken,
			VoiceID: plan.Persona.ProviderVoice(),
			Params:  plan.Params,
			Format:  tts.FormatWAV,
		})
	}

	out := &Speech{Text: spoken, Tags: tags.Embedded(spoken)}
	var err error
	if s.cache != nil && cache.Cacheable(spoken) {
		out.Audio, out.CacheHit, err = s.cache.Get(ctx, spoken, plan.Persona.ID, synth)
	} else {
		out.Audio, err = synth(ctx)
		if err != nil {
			err = utils.E(utils.CodeUnavailable, op, "synthesis failed", err)
		}
	}
	if err != nil {
		return nil, err
	}
	if len(out.Audio) == 0 {
		return nil, utils.E(utils.CodeUnavailable, op, "synthesis returned no audio", nil)
	}

	if info, ierr := tts.InspectWAV(out.Audio); ierr == nil {
		out.Duration = info.Duration.Milliseconds()
	}
	return out, nil
}

// Prewarm fills the synthesis cache with common phrases for the nurse and every catalog voice.
func (s *Speaker) Prewarm(ctx context.Context) int {
	if s.cache == nil || s.synth == nil {
		return 0
	}
	personas := append([]voice.Persona{voice.NurseVoice}, s.catalog.All()...)

	total := 0
	for _, p := range personas {
		params := voice.Adjust(p, "", "")
		if p.ID == voice.NurseVoice.ID {
			params = voice.NurseParams()
		}
		total += s.cache.Prewarm(ctx, p.ID, func(ctx context.Context, text string) ([]byte, error) {
			return s.synth.Synthesize(ctx, tts.Request{Text: text, VoiceID: p.ProviderVoice(), Params: params, Format: tts.FormatWAV})
		})
	}
	return total
}
