package intent

import "slices"

// Code is the closed set of clinical purposes an utterance can be classified into.
type Code string

const (
	Greeting Code = "GREETING"
	Unknown  Code = "UNKNOWN"

	AskChiefComplaint      Code = "ASK_CHIEF_COMPLAINT"
	AskOnset               Code = "ASK_ONSET"
	AskDuration            Code = "ASK_DURATION"
	AskCharacter           Code = "ASK_CHARACTER"
	AskRadiation           Code = "ASK_RADIATION"
	AskAssociatedSymptoms  Code = "ASK_ASSOCIATED_SYMPTOMS"
	AskExacerbatingFactors Code = "ASK_EXACERBATING_FACTORS"
	AskRelievingFactors    Code = "ASK_RELIEVING_FACTORS"
	AskSeverity            Code = "ASK_SEVERITY"

	AskPastMedicalHistory Code = "ASK_PAST_MEDICAL_HISTORY"
	AskMedications        Code = "ASK_MEDICATIONS"
	AskAllergies          Code = "ASK_ALLERGIES"
	AskSocialHistory      Code = "ASK_SOCIAL_HISTORY"
	AskFamilyHistory      Code = "ASK_FAMILY_HISTORY"
	AskDemographics       Code = "ASK_DEMOGRAPHICS"
	AskDiet               Code = "ASK_DIET"
	AskLifestyle          Code = "ASK_LIFESTYLE"

	AskIdeas        Code = "ASK_IDEAS"
	AskConcerns     Code = "ASK_CONCERNS"
	AskExpectations Code = "ASK_EXPECTATIONS"

	ExamGeneral Code = "PERFORM_EXAM_GENERAL"
	ExamCardio  Code = "PERFORM_EXAM_CARDIO"
	ExamResp    Code = "PERFORM_EXAM_RESP"
	ExamAbdo    Code = "PERFORM_EXAM_ABDO"
	ExamNeuro   Code = "PERFORM_EXAM_NEURO"
	CheckVitals Code = "CHECK_VITALS"

	MSEMood       Code = "PERFORM_MSE_MOOD"
	MSEPerception Code = "PERFORM_MSE_PERCEPTION"
	MSEThought    Code = "PERFORM_MSE_THOUGHT"
	MSECognition  Code = "PERFORM_MSE_COGNITION"
	MSEInsight    Code = "PERFORM_MSE_INSIGHT"

	RequestECG      Code = "REQUEST_ECG"
	RequestLabs     Code = "REQUEST_LABS"
	RequestImaging  Code = "REQUEST_IMAGING"
	RequestTroponin Code = "REQUEST_TROPONIN"
)

var historyCodes = []Code{
	AskChiefComplaint, AskOnset, AskDuration, AskCharacter, AskRadiation,
	AskAssociatedSymptoms, AskExacerbatingFactors, AskRelievingFactors, AskSeverity,
	AskPastMedicalHistory, AskMedications, AskAllergies, AskSocialHistory, AskFamilyHistory,
}

var examCodes = []Code{ExamGeneral, ExamCardio, ExamResp, ExamAbdo, ExamNeuro, CheckVitals}

var investigationCodes = []Code{RequestECG, RequestLabs, RequestImaging, RequestTroponin}

var otherCodes = []Code{
	Greeting, Unknown,
	AskDemographics, AskDiet, AskLifestyle,
	AskIdeas, AskConcerns, AskExpectations,
	MSEMood, MSEPerception, MSEThought, MSECognition, MSEInsight,
}

var known = func() map[Code]struct{} {
	m := map[Code]struct{}{}
	for _, set := range [][]Code{historyCodes, examCodes, investigationCodes, otherCodes} {
		for _, c := range set {
			m[c] = struct{}{}
		}
	}
	return m
}()

// All returns every code in a stable order.
func All() []Code {
	out := make([]Code, 0, len(known))
	for _, set := range [][]Code{otherCodes[:2], historyCodes, otherCodes[2:], examCodes, investigationCodes} {
		out = append(out, set...)
	}
	return out
}

func (c Code) Valid() bool {
	_, ok := known[c]
	return ok
}

func (c Code) IsHistory() bool       { return slices.Contains(historyCodes, c) }
func (c Code) IsExam() bool          { return slices.Contains(examCodes, c) }
func (c Code) IsInvestigation() bool { return slices.Contains(investigationCodes, c) }

// Reveals reports whether asking this intent counts as uncovering case information.
func (c Code) Reveals() bool { return c != Greeting && c != Unknown && c.Valid() }

