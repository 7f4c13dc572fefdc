package models

import (
	"encoding/json"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Case is the authored content of one encounter. Only Truth is consumed by the
// simulator; scoring material is kept opaque.
type Case struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	CaseID string             `bson:"case_id" json:"case_id"`
	Title  string             `bson:"title,omitempty" json:"title,omitempty"`
	Truth  CaseTruth          `bson:"truth" json:"truth"`
}

type CaseTruth struct {
	Demographics   Demographics `bson:"demographics" json:"demographics"`
	FinalDiagnosis string       `bson:"final_diagnosis,omitempty" json:"final_diagnosis,omitempty"`
	EmotionalState string       `bson:"emotional_state,omitempty" json:"emotional_state,omitempty"`
	// VoiceID pins a catalog voice for this case.
	VoiceID string `bson:"voice_id,omitempty" json:"voice_id,omitempty"`

	ChiefComplaint string    `bson:"chief_complaint,omitempty" json:"chief_complaint,omitempty"`
	Symptoms       []Symptom `bson:"symptoms,omitempty" json:"symptoms,omitempty"`
	History        History   `bson:"history" json:"history"`

	PastMedicalHistory string `bson:"past_medical_history,omitempty" json:"past_medical_history,omitempty"`
	Medications        string `bson:"medications,omitempty" json:"medications,omitempty"`
	Allergies          string `bson:"allergies,omitempty" json:"allergies,omitempty"`
	SocialHistory      string `bson:"social_history,omitempty" json:"social_history,omitempty"`
	FamilyHistory      string `bson:"family_history,omitempty" json:"family_history,omitempty"`
	Diet               string `bson:"diet,omitempty" json:"diet,omitempty"`
	Lifestyle          string `bson:"lifestyle,omitempty" json:"lifestyle,omitempty"`

	ICE             ICE             `bson:"ice,omitempty" json:"ice,omitempty"`
	PhysicalExam    PhysicalExam    `bson:"physical_exam,omitempty" json:"physical_exam,omitempty"`
	Vitals          *Vitals         `bson:"vitals,omitempty" json:"vitals,omitempty"`
	Investigations  Investigations  `bson:"investigations,omitempty" json:"investigations,omitempty"`
	MentalStateExam MentalStateExam `bson:"mental_state_exam,omitempty" json:"mental_state_exam,omitempty"`
}

type Demographics struct {
	Age        int    `bson:"age,omitempty" json:"age,omitempty"`
	Sex        string `bson:"sex,omitempty" json:"sex,omitempty"`
	Occupation string `bson:"occupation,omitempty" json:"occupation,omitempty"`
}

type History struct {
	ChiefComplaint      string          `bson:"chief_complaint,omitempty" json:"chief_complaint,omitempty"`
	Onset               string          `bson:"onset,omitempty" json:"onset,omitempty"`
	Duration            string          `bson:"duration,omitempty" json:"duration,omitempty"`
	Character           string          `bson:"character,omitempty" json:"character,omitempty"`
	Radiation           string          `bson:"radiation,omitempty" json:"radiation,omitempty"`
	ExacerbatingFactors string          `bson:"exacerbating_factors,omitempty" json:"exacerbating_factors,omitempty"`
	RelievingFactors    string          `bson:"relieving_factors,omitempty" json:"relieving_factors,omitempty"`
	Severity            string          `bson:"severity,omitempty" json:"severity,omitempty"`
	Description         string          `bson:"description,omitempty" json:"description,omitempty"`
	AssociatedSymptoms  []string        `bson:"associated_symptoms,omitempty" json:"associated_symptoms,omitempty"`
	RiskFactors         []string        `bson:"risk_factors,omitempty" json:"risk_factors,omitempty"`
	PresentIllness      *PresentIllness `bson:"present_illness,omitempty" json:"present_illness,omitempty"`
}

type PresentIllness struct {
	Symptoms []Symptom `bson:"symptoms,omitempty" json:"symptoms,omitempty"`
}

// Symptom is stored either as a bare string or as {name, description}.
// Both shapes decode into the same struct.
type Symptom struct {
	Name        string `bson:"name,omitempty" json:"name,omitempty"`
	Description string `bson:"description,omitempty" json:"description,omitempty"`
}

// Text is the most specific wording available for the symptom.
func (s Symptom) Text() string {
	if d := strings.TrimSpace(s.Description); d != "" {
		return d
	}
	return strings.TrimSpace(s.Name)
}

func (s *Symptom) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	rv := bson.RawValue{Type: t, Value: data}
	if str, ok := rv.StringValueOK(); ok {
		*s = Symptom{Name: str}
		return nil
	}
	type plain Symptom
	var p plain
	if err := rv.Unmarshal(&p); err != nil {
		return err
	}
	*s = Symptom(p)
	return nil
}

func (s *Symptom) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = Symptom{Name: str}
		return nil
	}
	type plain Symptom
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*s = Symptom(p)
	return nil
}

type ICE struct {
	Ideas        string `bson:"ideas,omitempty" json:"ideas,omitempty"`
	Concerns     string `bson:"concerns,omitempty" json:"concerns,omitempty"`
	Expectations string `bson:"expectations,omitempty" json:"expectations,omitempty"`
}

type PhysicalExam struct {
	General        string `bson:"general,omitempty" json:"general,omitempty"`
	Cardiovascular string `bson:"cardiovascular,omitempty" json:"cardiovascular,omitempty"`
	Respiratory    string `bson:"respiratory,omitempty" json:"respiratory,omitempty"`
	Abdomen        string `bson:"abdomen,omitempty" json:"abdomen,omitempty"`
	Neurological   string `bson:"neurological,omitempty" json:"neurological,omitempty"`
}

type Vitals struct {
	HeartRate       int     `bson:"hr" json:"hr"`
	BloodPressure   string  `bson:"bp" json:"bp"`
	RespiratoryRate int     `bson:"rr" json:"rr"`
	SpO2            int     `bson:"spo2" json:"spo2"`
	Temperature     float64 `bson:"temp" json:"temp"`
}

// Investigations maps test name to result text, e.g. {"ecg": "ST elevation in II, III, aVF"}.
type Investigations struct {
	Bedside      map[string]string `bson:"bedside,omitempty" json:"bedside,omitempty"`
	Confirmatory map[string]string `bson:"confirmatory,omitempty" json:"confirmatory,omitempty"`
}

// Lookup finds the first result whose name contains one of the keywords.
// Bedside results win over confirmatory ones.
func (inv Investigations) Lookup(keywords ...string) (string, bool) {
	for _, set := range []map[string]string{inv.Bedside, inv.Confirmatory} {
		for name, result := range set {
			n := strings.ToLower(name)
			for _, k := range keywords {
				if strings.Contains(n, k) && strings.TrimSpace(result) != "" {
					return result, true
				}
			}
		}
	}
	return "", false
}

type MentalStateExam struct {
	Mood       string `bson:"mood,omitempty" json:"mood,omitempty"`
	Perception string `bson:"perception,omitempty" json:"perception,omitempty"`
	Thought    string `bson:"thought,omitempty" json:"thought,omitempty"`
	Cognition  string `bson:"cognition,omitempty" json:"cognition,omitempty"`
	Insight    string `bson:"insight,omitempty" json:"insight,omitempty"`
}

// ChiefComplaintText prefers the history entry and falls back to the top-level field.
func (t CaseTruth) ChiefComplaintText() string {
	if cc := strings.TrimSpace(t.History.ChiefComplaint); cc != "" {
		return cc
	}
	return strings.TrimSpace(t.ChiefComplaint)
}

// Validate reports the first missing required field, or "" when the case is usable.
func (c *Case) Validate() string {
	switch {
	case c == nil:
		return "case"
	case strings.TrimSpace(c.CaseID) == "":
		return "case_id"
	case c.Truth.ChiefComplaintText() == "":
		return "truth.history.chief_complaint"
	}
	return ""
}
