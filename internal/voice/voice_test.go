package voice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/oscesim/internal/profile"
)

func TestBandFor(t *testing.T) {
	assert.Equal(t, BandChild, BandFor(12))
	assert.Equal(t, BandYoung, BandFor(13))
	assert.Equal(t, BandYoung, BandFor(24))
	assert.Equal(t, BandAdult, BandFor(25))
	assert.Equal(t, BandMiddleAged, BandFor(45))
	assert.Equal(t, BandMiddleAged, BandFor(64))
	assert.Equal(t, BandElderly, BandFor(65))

	assert.True(t, Adjacent(BandAdult, BandYoung))
	assert.True(t, Adjacent(BandAdult, BandAdult))
	assert.False(t, Adjacent(BandChild, BandAdult))
	assert.False(t, Adjacent("unknown", BandAdult))
}

func TestSelectPrefersDeepVoiceForOlderPatientInPain(t *testing.T) {
	c := DefaultCatalog()
	v := c.Select(Criteria{Age: 68, Sex: "male", Condition: "chest pain"})
	assert.Equal(t, "Tarkos", v.ID)
}

func TestSelectPrefersClearVoiceForYoungerMale(t *testing.T) {
	c := DefaultCatalog()
	assert.Equal(t, "Steve", c.Select(Criteria{Age: 30, Sex: "male", Condition: "anxiety"}).ID)
	assert.Equal(t, "Steve", c.Select(Criteria{Age: 8, Sex: "male"}).ID)
}

func TestSelectFemaleUsesFemaleVoice(t *testing.T) {
	c := DefaultCatalog()
	assert.Equal(t, "Britney", c.Select(Criteria{Age: 80, Sex: "female", Condition: "chest pain"}).ID)
	assert.Equal(t, "Britney", c.Select(Criteria{Age: 20, Sex: "F", Language: "fr"}).ID)
}

func TestSelectNeverMismatchesSex(t *testing.T) {
	c := DefaultCatalog()
	conditions := []string{"", "chest pain", "anxiety", "shortness of breath", "confusion", "low mood"}
	for age := 0; age <= 100; age += 3 {
		for _, sex := range []string{"male", "female"} {
			for _, cond := range conditions {
				cr := Criteria{Age: age, Sex: sex, Condition: cond, EmotionalState: "neutral"}
				first := c.Select(cr)
				assert.Equal(t, sex, first.Sex, "%+v", cr)
				assert.Equal(t, first, c.Select(cr), "selection must be deterministic")
			}
		}
	}
}

func TestSelectTiesKeepCatalogOrder(t *testing.T) {
	c := NewCatalog([]Persona{
		{ID: "first", Sex: "male", AgeBand: BandAdult, Language: "en"},
		{ID: "second", Sex: "male", AgeBand: BandAdult, Language: "en"},
	}, "first")
	assert.Equal(t, "first", c.Select(Criteria{Age: 40, Sex: "male"}).ID)
}

func TestSelectFallsBackToDefaultWhenSexMissing(t *testing.T) {
	c := NewCatalog([]Persona{{ID: "only", Sex: "female", AgeBand: BandAdult, Language: "en"}}, "only")
	assert.Equal(t, "only", c.Select(Criteria{Age: 40, Sex: "male"}).ID)
}

func TestSelectWithOverride(t *testing.T) {
	c := DefaultCatalog()
	cr := Criteria{Age: 30, Sex: "male"}
	assert.Equal(t, "Tarkos", c.SelectWithOverride(cr, "tarkos").ID)
	assert.Equal(t, "Steve", c.SelectWithOverride(cr, "Britney").ID, "override of the wrong sex is ignored")
	assert.Equal(t, "Steve", c.SelectWithOverride(cr, "missing").ID)
}

func TestCriteriaFromProfile(t *testing.T) {
	cr := CriteriaFrom(profile.Profile{Age: 70, Sex: "male", Conditions: []string{"crushing chest pain"}, Tags: []profile.Tag{profile.TagCardiac, profile.TagPain}})
	assert.Equal(t, "chest pain", cr.Condition)
	assert.Equal(t, "en", cr.Language)
}

func TestCatalogLookups(t *testing.T) {
	c := DefaultCatalog()
	v, ok := c.Get("STEVE")
	require.True(t, ok)
	assert.Equal(t, "Steve", v.ID)
	assert.Equal(t, "Britney", c.Default().ID)
	assert.Equal(t, "Tarkos", c.DefaultFor("male").ID)
	assert.Len(t, c.All(), 3)

	byProvider, ok := c.Get("wdki0osc9z5j77snyw08")
	require.True(t, ok)
	assert.Equal(t, "Tarkos", byProvider.ID)
}

func TestProviderVoice(t *testing.T) {
	want := map[string]string{
		"Britney": "s81gfv15gmkv7ads8yzo",
		"Tarkos":  "wdki0osc9z5j77snyw08",
		"Steve":   "ztwqaauovmrne4zmhocy",
	}
	for _, p := range DefaultCatalog().All() {
		assert.Equal(t, want[p.ID], p.ProviderVoice(), p.ID)
	}
	assert.Equal(t, "af_jessica", NurseVoice.ProviderVoice())
	assert.Equal(t, "custom", Persona{ID: "custom"}.ProviderVoice())
}

func TestAdjustBuckets(t *testing.T) {
	steve, _ := DefaultCatalog().Get("Steve")

	neutral := Adjust(steve, "rash", "neutral")
	assert.Equal(t, Params{Exaggeration: 0.15, Temperature: 0.7, CFG: 0.5, TopP: 0.95, MinP: 0, RepetitionPenalty: 1.2, TopK: 1000}, neutral)

	pain := Adjust(steve, "chest pain", "angry")
	assert.InDelta(t, 0.35, pain.Exaggeration, 1e-9)
	assert.InDelta(t, 0.85, pain.Temperature, 1e-9)
	assert.Equal(t, 0.9, pain.TopP)
	assert.Equal(t, 1.2, pain.RepetitionPenalty, "only the first bucket applies")

	anxious := Adjust(steve, "palpitations", "scared")
	assert.InDelta(t, 0.4, anxious.Exaggeration, 1e-9)
	assert.InDelta(t, 0.9, anxious.Temperature, 1e-9)
	assert.Equal(t, 0.98, anxious.TopP)
	assert.Equal(t, 1.1, anxious.RepetitionPenalty)

	angry := Adjust(steve, "rash", "frustrated")
	assert.Equal(t, 0.8, angry.Temperature)
	assert.Equal(t, 1.3, angry.RepetitionPenalty)

	sad := Adjust(steve, "tired all the time", "flat")
	assert.InDelta(t, 0.1, sad.Exaggeration, 1e-9)
	assert.InDelta(t, 0.5, sad.Temperature, 1e-9)
	assert.Equal(t, 0.8, sad.TopP)

	confused := Adjust(steve, "acute confusion", "neutral")
	assert.InDelta(t, 0.2, confused.Exaggeration, 1e-9)
	assert.InDelta(t, 1.0, confused.Temperature, 1e-9)
	assert.Equal(t, 1.05, confused.RepetitionPenalty)

	breathless := Adjust(steve, "shortness of breath", "neutral")
	assert.InDelta(t, 0.25, breathless.Exaggeration, 1e-9)
	assert.InDelta(t, 0.8, breathless.Temperature, 1e-9)
}

func TestAdjustClampsAndDoesNotShareState(t *testing.T) {
	loud := Persona{ID: "loud", BaseExaggeration: 0.45, BaseTemperature: 0.9}
	p := Adjust(loud, "agony", "")
	assert.Equal(t, 0.5, p.Exaggeration)
	assert.Equal(t, 0.95, p.Temperature)

	p.Exaggeration = 99
	assert.Equal(t, 0.5, Adjust(loud, "agony", "").Exaggeration)
}

func TestNurseParams(t *testing.T) {
	p := NurseParams()
	assert.Equal(t, 0.3, p.Exaggeration)
	assert.Equal(t, 0.78, p.Temperature)
}
