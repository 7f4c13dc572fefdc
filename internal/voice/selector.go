package voice

import (
	"strings"

	"github.com/yoockh/oscesim/internal/profile"
)

// Criteria are the patient attributes voice selection depends on.
type Criteria struct {
	Age            int
	Sex            string
	Language       string
	Condition      string
	EmotionalState string
}

// CriteriaFrom builds selection criteria from a profile and its primary condition.
func CriteriaFrom(p profile.Profile) Criteria {
	return Criteria{
		Age:            p.Age,
		Sex:            p.Sex,
		Language:       "en",
		Condition:      p.PrimaryCondition(),
		EmotionalState: p.EmotionalState,
	}
}

// Select picks a persona for the criteria. The same criteria always yield the
// same persona, and the persona's sex matches the normalized input sex whenever
// the catalog has a voice of that sex.
func (c *Catalog) Select(cr Criteria) Persona {
	sex := profile.NormalizeSex(cr.Sex)
	lang := strings.ToLower(strings.TrimSpace(cr.Language))
	if lang == "" {
		lang = "en"
	}
	band := BandFor(cr.Age)

	filters := []func(Persona) bool{
		func(v Persona) bool { return v.Sex == sex && v.Language == lang && Adjacent(band, v.AgeBand) },
		func(v Persona) bool { return v.Sex == sex && v.Language == lang },
		func(v Persona) bool { return v.Sex == sex },
	}
	for _, keep := range filters {
		var candidates []Persona
		for _, v := range c.voices {
			if keep(v) {
				candidates = append(candidates, v)
			}
		}
		if len(candidates) > 0 {
			return best(candidates, cr)
		}
	}
	return c.Default()
}

// SelectWithOverride honours a case-pinned voice id when it exists and matches the patient's sex.
func (c *Catalog) SelectWithOverride(cr Criteria, voiceID string) Persona {
	if voiceID != "" {
		if v, ok := c.Get(voiceID); ok && v.Sex == profile.NormalizeSex(cr.Sex) {
			return v
		}
	}
	return c.Select(cr)
}

func best(candidates []Persona, cr Criteria) Persona {
	winner, top := candidates[0], score(candidates[0], cr)
	for _, v := range candidates[1:] {
		// strictly greater keeps catalog order on ties
		if s := score(v, cr); s > top {
			winner, top = v, s
		}
	}
	return winner
}

func score(v Persona, cr Criteria) int {
	cond := strings.ToLower(cr.Condition + " " + cr.EmotionalState)
	s := 0
	if v.HasTrait(TraitDeep) {
		if cr.Age > 50 {
			s += 20
		}
		if strings.Contains(cond, "pain") || strings.Contains(cond, "chest") {
			s += 10
		}
	}
	if v.HasTrait(TraitClear) {
		if cr.Age <= 50 {
			s += 20
		}
		if strings.Contains(cond, "anxi") || strings.Contains(cond, "nervous") {
			s += 10
		}
	}
	return s
}
