package voice

import "strings"

type AgeBand string

const (
	BandChild      AgeBand = "child"
	BandYoung      AgeBand = "young"
	BandAdult      AgeBand = "adult"
	BandMiddleAged AgeBand = "middle-aged"
	BandElderly    AgeBand = "elderly"
)

var bandOrder = []AgeBand{BandChild, BandYoung, BandAdult, BandMiddleAged, BandElderly}

// BandFor buckets an age: child <13, young <25, adult <45, middle-aged <65, elderly otherwise.
func BandFor(age int) AgeBand {
	switch {
	case age < 13:
		return BandChild
	case age < 25:
		return BandYoung
	case age < 45:
		return BandAdult
	case age < 65:
		return BandMiddleAged
	default:
		return BandElderly
	}
}

// Adjacent reports whether a and b are the same band or neighbours.
func Adjacent(a, b AgeBand) bool {
	ia, ib := -1, -1
	for i, x := range bandOrder {
		if x == a {
			ia = i
		}
		if x == b {
			ib = i
		}
	}
	if ia < 0 || ib < 0 {
		return false
	}
	d := ia - ib
	return d >= -1 && d <= 1
}

type Trait string

const (
	TraitBright Trait = "bright"
	// TraitClear voices stay intelligible under anxiety.
	TraitClear Trait = "clear"
	// TraitDeep voices carry older patients and pain well.
	TraitDeep Trait = "deep"
)

// Persona is an immutable catalog entry. ID names the voice inside this service
// (cache keys, voice info, case overrides); ProviderID is what the synthesis
// provider knows it by.
type Persona struct {
	ID               string  `json:"id"`
	ProviderID       string  `json:"provider_id,omitempty"`
	DisplayName      string  `json:"display_name"`
	Sex              string  `json:"sex"`
	AgeBand          AgeBand `json:"age_band"`
	Language         string  `json:"language"`
	BaseExaggeration float64 `json:"base_exaggeration"`
	BaseTemperature  float64 `json:"base_temperature"`
	Traits           []Trait `json:"traits,omitempty"`
}

// ProviderVoice is the voice id to send to the synthesizer.
func (p Persona) ProviderVoice() string {
	if p.ProviderID != "" {
		return p.ProviderID
	}
	return p.ID
}

func (p Persona) HasTrait(t Trait) bool {
	for _, x := range p.Traits {
		if x == t {
			return true
		}
	}
	return false
}

// Catalog is a read-only, ordered set of personas. Order breaks selection ties.
type Catalog struct {
	voices   []Persona
	defaults map[string]string // sex -> voice id
	fallback string
}

// NewCatalog copies voices. fallback must name one of them.
func NewCatalog(voices []Persona, fallback string) *Catalog {
	c := &Catalog{voices: append([]Persona(nil), voices...), defaults: map[string]string{}, fallback: fallback}
	for _, v := range c.voices {
		if _, ok := c.defaults[v.Sex]; !ok {
			c.defaults[v.Sex] = v.ID
		}
	}
	return c
}

// DefaultCatalog is the production persona table for the Chatterbox voices.
func DefaultCatalog() *Catalog {
	return NewCatalog([]Persona{
		{ID: "Britney", ProviderID: "s81gfv15gmkv7ads8yzo", DisplayName: "Britney", Sex: "female", AgeBand: BandYoung, Language: "en", BaseExaggeration: 0.2, BaseTemperature: 0.75, Traits: []Trait{TraitBright}},
		{ID: "Tarkos", ProviderID: "wdki0osc9z5j77snyw08", DisplayName: "Tarkos", Sex: "male", AgeBand: BandAdult, Language: "en", BaseExaggeration: 0.15, BaseTemperature: 0.7, Traits: []Trait{TraitDeep}},
		{ID: "Steve", ProviderID: "ztwqaauovmrne4zmhocy", DisplayName: "Steve", Sex: "male", AgeBand: BandAdult, Language: "en", BaseExaggeration: 0.15, BaseTemperature: 0.7, Traits: []Trait{TraitClear}},
	}, "Britney")
}

// NurseVoice is the constant voice of the ward nurse. It is never tagged.
// af_jessica is a provider preset, so the two ids coincide.
var NurseVoice = Persona{
	ID: "af_jessica", ProviderID: "af_jessica", DisplayName: "Nurse Sarah", Sex: "female", AgeBand: BandAdult, Language: "en",
	BaseExaggeration: 0.3, BaseTemperature: 0.78,
}

func (c *Catalog) All() []Persona { return append([]Persona(nil), c.voices...) }

// Get finds a persona by its id or its provider id.
func (c *Catalog) Get(id string) (Persona, bool) {
	for _, v := range c.voices {
		if strings.EqualFold(v.ID, id) || (v.ProviderID != "" && v.ProviderID == id) {
			return v, true
		}
	}
	return Persona{}, false
}

// Default is the designated fallback voice.
func (c *Catalog) Default() Persona {
	if v, ok := c.Get(c.fallback); ok {
		return v
	}
	if len(c.voices) > 0 {
		return c.voices[0]
	}
	return Persona{}
}

// DefaultFor is the first voice of the given sex, or the designated default.
func (c *Catalog) DefaultFor(sex string) Persona {
	if id, ok := c.defaults[sex]; ok {
		if v, ok := c.Get(id); ok {
			return v
		}
	}
	return c.Default()
}
