package formatter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yoockh/oscesim/internal/intent"
	"github.com/yoockh/oscesim/internal/models"
	"github.com/yoockh/oscesim/internal/profile"
)

// Fact is the case content answering one intent.
type Fact struct {
	Code  intent.Code `json:"code"`
	Text  string      `json:"text"`
	Path  string      `json:"path,omitempty"`
	Found bool        `json:"found"`
	// Subject names the exam system or investigation the fact belongs to.
	Subject string `json:"subject,omitempty"`
}

// DefaultVitals are reported when the case does not author its own.
var DefaultVitals = models.Vitals{
	HeartRate:       80,
	BloodPressure:   "120/80",
	RespiratoryRate: 16,
	SpO2:            98,
	Temperature:     37.0,
}

// VitalsOf returns the case vitals or DefaultVitals.
func VitalsOf(c *models.Case) models.Vitals {
	if c != nil && c.Truth.Vitals != nil {
		return *c.Truth.Vitals
	}
	return DefaultVitals
}

func VitalsText(v models.Vitals) string {
	return fmt.Sprintf("Vitals are: HR %d, BP %s, RR %d, SpO2 %d%%, Temp %s.",
		v.HeartRate, v.BloodPressure, v.RespiratoryRate, v.SpO2, strconv.FormatFloat(v.Temperature, 'f', 1, 64))
}

func or(v, def string) string {
	if s := strings.TrimSpace(v); s != "" {
		return s
	}
	return def
}

func list(items []string, def string) string {
	var out []string
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return def
	}
	return strings.Join(out, ", ")
}

func found(code intent.Code, path, text string) Fact {
	return Fact{Code: code, Text: text, Path: path, Found: true}
}

func exam(code intent.Code, system, path, text string) Fact {
	return Fact{Code: code, Text: text, Path: path, Found: true, Subject: system}
}

func investigation(code intent.Code, name, path, text string) Fact {
	return Fact{Code: code, Text: text, Path: path, Found: true, Subject: name}
}

// Lookup maps an intent onto the case. Fields the case leaves empty fall back to a
// neutral in-character default; UNKNOWN and a nil case are reported as not found.
func Lookup(code intent.Code, c *models.Case) Fact {
	if c == nil {
		return Fact{Code: code, Text: NotSure}
	}
	t := c.Truth
	h := t.History

	switch code {
	case intent.Greeting:
		return found(code, "truth.demographics", "Hello doctor.")

	case intent.AskChiefComplaint:
		return found(code, "truth.history.chief_complaint", t.ChiefComplaintText())
	case intent.AskOnset:
		return found(code, "truth.history.onset", or(h.Onset, "It came on a little while ago."))
	case intent.AskDuration:
		return found(code, "truth.history.duration", or(h.Duration, "A few days now."))
	case intent.AskCharacter:
		return found(code, "truth.history.character", or(h.Character, "I can't really describe it."))
	case intent.AskRadiation:
		return found(code, "truth.history.radiation", or(h.Radiation, "It stays in one place."))
	case intent.AskAssociatedSymptoms:
		return found(code, "truth.history.associated_symptoms", list(h.AssociatedSymptoms, "None."))
	case intent.AskExacerbatingFactors:
		return found(code, "truth.history.exacerbating_factors", or(h.ExacerbatingFactors, "Nothing makes it worse."))
	case intent.AskRelievingFactors:
		return found(code, "truth.history.relieving_factors", or(h.RelievingFactors, "Nothing really helps."))
	case intent.AskSeverity:
		return found(code, "truth.history.severity", or(h.Severity, "It's quite bad."))

	case intent.AskPastMedicalHistory:
		return found(code, "truth.past_medical_history", or(t.PastMedicalHistory, "No major medical history."))
	case intent.AskMedications:
		return found(code, "truth.medications", or(t.Medications, "I'm not taking any medications."))
	case intent.AskAllergies:
		return found(code, "truth.allergies", or(t.Allergies, "No allergies."))
	case intent.AskSocialHistory:
		return found(code, "truth.social_history", or(t.SocialHistory, "Nothing significant."))
	case intent.AskFamilyHistory:
		return found(code, "truth.family_history", or(t.FamilyHistory, "Everyone in my family is healthy."))
	case intent.AskDemographics:
		age := t.Demographics.Age
		if age <= 0 {
			age = profile.DefaultAge
		}
		return found(code, "truth.demographics.age", fmt.Sprintf("I am %d years old.", age))
	case intent.AskDiet:
		return found(code, "truth.diet", or(t.Diet, "I eat normally."))
	case intent.AskLifestyle:
		return found(code, "truth.lifestyle", or(t.Lifestyle, "I try to stay active."))

	case intent.AskIdeas:
		return found(code, "truth.ice.ideas", or(t.ICE.Ideas, "I'm not sure, maybe it's just stress? But it feels deeper."))
	case intent.AskConcerns:
		return found(code, "truth.ice.concerns", or(t.ICE.Concerns, "I'm worried I can't do my job anymore."))
	case intent.AskExpectations:
		return found(code, "truth.ice.expectations", or(t.ICE.Expectations, "I just want to feel like myself again."))

	case intent.ExamGeneral:
		return exam(code, "general", "truth.physical_exam.general", or(t.PhysicalExam.General, "Patient appears comfortable."))
	case intent.ExamCardio:
		return exam(code, "cvs", "truth.physical_exam.cardiovascular", or(t.PhysicalExam.Cardiovascular, "Normal heart sounds."))
	case intent.ExamResp:
		return exam(code, "resp", "truth.physical_exam.respiratory", or(t.PhysicalExam.Respiratory, "Clear breath sounds."))
	case intent.ExamAbdo:
		return exam(code, "abd", "truth.physical_exam.abdomen", or(t.PhysicalExam.Abdomen, "Soft, non-tender."))
	case intent.ExamNeuro:
		return exam(code, "neuro", "truth.physical_exam.neurological", or(t.PhysicalExam.Neurological, "Grossly intact."))
	case intent.CheckVitals:
		return exam(code, "vitals", "truth.vitals", VitalsText(VitalsOf(c)))

	case intent.MSEMood:
		return found(code, "truth.mental_state_exam.mood", or(t.MentalStateExam.Mood, "I feel empty."))
	case intent.MSEPerception:
		return found(code, "truth.mental_state_exam.perception", or(t.MentalStateExam.Perception, "No, I don't see or hear things that aren't there."))
	case intent.MSEThought:
		text := or(t.MentalStateExam.Thought, "No, I haven't had thoughts like that.")
		if len(h.RiskFactors) > 0 {
			text += " (" + strings.Join(h.RiskFactors, ", ") + ")"
		}
		return found(code, "truth.mental_state_exam.thought", text)
	case intent.MSECognition:
		return found(code, "truth.mental_state_exam.cognition", or(t.MentalStateExam.Cognition, "I can focus okay."))
	case intent.MSEInsight:
		return found(code, "truth.mental_state_exam.insight", or(t.MentalStateExam.Insight, "I know I need help."))

	case intent.RequestECG:
		res, _ := t.Investigations.Lookup("ecg", "ekg")
		return investigation(code, "ecg", "truth.investigations.ecg", or(res, "ECG shows normal sinus rhythm."))
	case intent.RequestTroponin:
		res, _ := t.Investigations.Lookup("troponin")
		return investigation(code, "troponin", "truth.investigations.troponin", or(res, "Troponin is within normal limits."))
	case intent.RequestLabs:
		res, _ := t.Investigations.Lookup("blood", "fbc", "lab", "crp", "electrolyte")
		return investigation(code, "labs", "truth.investigations.labs", or(res, "Blood results are within normal limits."))
	case intent.RequestImaging:
		res, _ := t.Investigations.Lookup("x-ray", "xray", "cxr", "ct scan", "mri", "ultrasound", "imaging")
		return investigation(code, "imaging", "truth.investigations.imaging", or(res, "Imaging shows no acute abnormality."))
	}
	return Fact{Code: code, Text: NotSure}
}
