package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yoockh/oscesim/internal/formatter"
	"github.com/yoockh/oscesim/internal/gate"
	"github.com/yoockh/oscesim/internal/models"
	"github.com/yoockh/oscesim/internal/profile"
	"github.com/yoockh/oscesim/internal/voice"
)

const nurseSystemPrompt = `You are Nurse Sarah, a calm and efficient ward nurse helping a medical student during an OSCE station.
- When the student gives an order (take bloods, measure vitals, attach monitoring), confirm it briefly and say you are doing it.
- You never diagnose and never suggest a management plan. The student makes the decisions.
- If asked for an opinion you may mention something you can observe, such as the patient looking pale.
- Keep replies to one or two short sentences and do not use bracketed sound effects.`

const paralinguisticRules = `Only these six sound tags may appear, in square brackets: [cough] [laugh] [sigh] [chuckle] [gasp] [groan].
Never invent other tags such as [sniffle] or [clears throat]; the voice engine cannot perform them.
Example: "It's my chest... [groan] ...like something heavy sitting on it."`

// distressed reports whether the patient should speak in short, strained fragments.
func distressed(v models.Vitals, emotion string) bool {
	e := strings.ToLower(emotion)
	return v.RespiratoryRate > 22 || v.HeartRate > 110 ||
		strings.Contains(e, "pain") || strings.Contains(e, "distress")
}

func ageTraits(age int) string {
	switch {
	case age > 65:
		return "You are older, take a moment to recall details and sometimes mention how things used to be."
	case age < 25:
		return "You are young, a little impatient, and use casual everyday language."
	default:
		return "You are a working-age adult with responsibilities, practical and matter-of-fact about symptoms."
	}
}

func emotionTraits(emotion string) string {
	e := strings.ToLower(emotion)
	switch {
	case containsAny(e, "anxious", "scared", "worried", "panic"):
		return "You talk quickly, interrupt yourself and ask whether it is serious. You want reassurance but stay skeptical."
	case containsAny(e, "pain", "agony", "hurt"):
		return "You are short, breathless and strained, impatient with questions that do not help the pain."
	case containsAny(e, "depress", "sad", "hopeless"):
		return "You speak slowly and quietly with flat affect and few words."
	case containsAny(e, "angry", "frustrated", "upset"):
		return "You are sharp and direct, irritated by waiting and by previous doctors."
	default:
		return "You are cooperative but cautious. Answer what is asked without volunteering extra information."
	}
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

type memory struct {
	Demographics       models.Demographics `json:"demographics"`
	History            models.History      `json:"history"`
	ChiefComplaint     string              `json:"chief_complaint,omitempty"`
	PastMedicalHistory string              `json:"past_medical_history,omitempty"`
	Medications        string              `json:"medications,omitempty"`
	Allergies          string              `json:"allergies,omitempty"`
	SocialHistory      string              `json:"social_history,omitempty"`
	FamilyHistory      string              `json:"family_history,omitempty"`
	ICE                models.ICE          `json:"ice"`
	Vitals             models.Vitals       `json:"vitals"`
	EmotionalState     string              `json:"emotional_state"`
	Stage              gate.Stage          `json:"current_stage"`
}

// PatientPrompt builds the system instruction for the patient persona.
func PatientPrompt(c *models.Case, p profile.Profile, persona voice.Persona, stage gate.Stage) string {
	t := c.Truth
	vitals := formatter.VitalsOf(c)

	occupation := strings.TrimSpace(t.Demographics.Occupation)
	if occupation == "" {
		occupation = "patient"
	}

	mem := memory{
		Demographics:       t.Demographics,
		History:            t.History,
		ChiefComplaint:     t.ChiefComplaintText(),
		PastMedicalHistory: t.PastMedicalHistory,
		Medications:        t.Medications,
		Allergies:          t.Allergies,
		SocialHistory:      t.SocialHistory,
		FamilyHistory:      t.FamilyHistory,
		ICE:                t.ICE,
		Vitals:             vitals,
		EmotionalState:     p.EmotionalState,
		Stage:              stage,
	}
	truth, _ := json.MarshalIndent(mem, "", "  ")

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a %d-year-old %s %s in a clinical skills examination.\n\n", persona.DisplayName, p.Age, p.Sex, occupation)

	b.WriteString("How you speak:\n")
	b.WriteString("- " + ageTraits(p.Age) + "\n")
	b.WriteString("- " + emotionTraits(p.EmotionalState) + "\n")
	if distressed(vitals, p.EmotionalState) {
		b.WriteString("- You are unwell and short of energy. Use 5 to 15 words in blunt fragments.\n")
	} else {
		b.WriteString("- You are stable and fairly talkative. Use 30 to 50 words and some personal context.\n")
	}

	b.WriteString("\nRules:\n")
	b.WriteString("- You are the patient, not a helper. Never offer assistance or ask if there is anything else.\n")
	b.WriteString("- Use lay words only. Say \"heart attack\" or \"heart test\", never clinical jargon or abbreviations.\n")
	b.WriteString("- Only state facts found in your medical memory below. If asked something it does not cover, say you are not sure.\n")
	b.WriteString("- Filler words and the odd \"...\" pause are fine.\n")
	b.WriteString("- Output only what you say aloud, without quotes or stage directions.\n")
	b.WriteString("\n" + paralinguisticRules + "\n")

	b.WriteString("\nYour medical memory:\n")
	b.Write(truth)
	b.WriteString("\n")
	return b.String()
}

// NursePrompt builds the nurse instruction plus the bedside context visible to the nurse.
func NursePrompt(c *models.Case, stage gate.Stage) string {
	var b strings.Builder
	b.WriteString(nurseSystemPrompt)
	fmt.Fprintf(&b, "\n\nCurrent stage: %s.\n", stage)
	if c != nil {
		fmt.Fprintf(&b, "The patient presented with: %s\n", c.Truth.ChiefComplaintText())
		b.WriteString(formatter.VitalsText(formatter.VitalsOf(c)) + "\n")
	}
	return b.String()
}
