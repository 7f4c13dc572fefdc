package profile

import (
	"slices"
	"strings"

	"github.com/yoockh/oscesim/internal/models"
)

// Defaults applied when the case omits demographics.
const (
	DefaultAge     = 35
	DefaultSex     = "female"
	DefaultEmotion = "neutral"
)

type Tag string

const (
	TagPain        Tag = "pain"
	TagRespiratory Tag = "respiratory"
	TagCardiac     Tag = "cardiac"
	TagAnxiety     Tag = "anxiety"
	TagElderly     Tag = "elderly"
	TagPediatric   Tag = "pediatric"
	TagDistress    Tag = "distress"
	TagSadness     Tag = "sadness"
)

// Profile is the normalized view of the patient that voice components consume.
type Profile struct {
	Age            int      `json:"age"`
	Sex            string   `json:"sex"`
	Conditions     []string `json:"conditions"`
	EmotionalState string   `json:"emotional_state"`
	Tags           []Tag    `json:"tags"`
}

func (p Profile) Has(t Tag) bool { return slices.Contains(p.Tags, t) }

var keywords = []struct {
	tag   Tag
	words []string
}{
	{TagPain, []string{"pain", "hurt", "ache", "discomfort"}},
	{TagRespiratory, []string{"breath", "wheeze", "asthma", "cough", "lung", "respiratory"}},
	{TagCardiac, []string{"chest", "heart", "cardiac", "pressure"}},
	{TagAnxiety, []string{"anxious", "nervous", "worry", "fear", "anxiety"}},
}

var emotionTags = []struct {
	tag   Tag
	words []string
}{
	{TagAnxiety, []string{"anxious", "nervous"}},
	{TagDistress, []string{"distress", "panic", "fear"}},
	{TagSadness, []string{"sad", "upset", "crying", "depressed"}},
}

// Extract projects a case onto a Profile. A nil case yields the documented defaults.
func Extract(c *models.Case) Profile {
	p := Profile{Age: DefaultAge, Sex: DefaultSex, EmotionalState: DefaultEmotion, Conditions: []string{}}
	if c == nil {
		p.Tags = deriveTags(p)
		return p
	}
	t := c.Truth

	if t.Demographics.Age > 0 {
		p.Age = t.Demographics.Age
	}
	p.Sex = NormalizeSex(t.Demographics.Sex)
	if e := strings.TrimSpace(t.EmotionalState); e != "" {
		p.EmotionalState = strings.ToLower(e)
	}

	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		for _, existing := range p.Conditions {
			if strings.EqualFold(existing, s) {
				return
			}
		}
		p.Conditions = append(p.Conditions, s)
	}
	add(t.ChiefComplaintText())
	for _, s := range t.Symptoms {
		add(s.Text())
	}
	if t.History.PresentIllness != nil {
		for _, s := range t.History.PresentIllness.Symptoms {
			add(s.Text())
		}
	}

	p.Tags = deriveTags(p)
	return p
}

// NormalizeSex folds the case's free-text sex into "male" or "female".
func NormalizeSex(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "m", "man", "boy":
		return "male"
	case "female", "f", "woman", "girl":
		return "female"
	default:
		return DefaultSex
	}
}

func deriveTags(p Profile) []Tag {
	text := strings.ToLower(strings.Join(p.Conditions, " "))
	emotion := strings.ToLower(p.EmotionalState)

	var tags []Tag
	add := func(t Tag) {
		if !slices.Contains(tags, t) {
			tags = append(tags, t)
		}
	}
	for _, k := range keywords {
		if containsAny(text, k.words) {
			add(k.tag)
		}
	}
	for _, k := range emotionTags {
		if containsAny(emotion, k.words) {
			add(k.tag)
		}
	}
	switch {
	case p.Age > 65:
		add(TagElderly)
	case p.Age < 18:
		add(TagPediatric)
	}
	if tags == nil {
		tags = []Tag{}
	}
	return tags
}

// PrimaryCondition is the single condition label used for voice selection and tuning.
func (p Profile) PrimaryCondition() string {
	switch {
	case p.Has(TagRespiratory) && p.Has(TagDistress):
		return "respiratory distress"
	case p.Has(TagCardiac) && p.Has(TagPain):
		return "chest pain"
	case p.Has(TagPain):
		return "pain"
	case p.Has(TagRespiratory):
		return "respiratory"
	case p.Has(TagAnxiety):
		return "anxiety"
	case len(p.Conditions) > 0:
		return p.Conditions[0]
	case p.EmotionalState != "":
		return p.EmotionalState
	default:
		return DefaultEmotion
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
