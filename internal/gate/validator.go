package gate

import (
	"strings"

	"github.com/yoockh/oscesim/internal/intent"
)

// Stage is the clinical phase of an encounter.
type Stage string

const (
	History        Stage = "History"
	Examination    Stage = "Examination"
	Investigations Stage = "Investigations"
	Management     Stage = "Management"
)

// Refusals are spoken by the patient, so they stay in character.
const (
	ReasonExamTooEarly           = "I'm not ready for a full physical exam yet. Let's finish talking about my symptoms first, and then we can examine that."
	ReasonTestsBeforeHistory     = "We should finish the history before ordering tests."
	ReasonTestsBeforeExamination = "Let's finish the examination before ordering tests."
)

type Result struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

var allow = Result{Allowed: true}

func block(reason string) Result { return Result{Allowed: false, Reason: reason} }

// ParseStage maps a stage name case-insensitively. Unknown names come back as-is
// and are treated as permissive by Validate.
func ParseStage(s string) Stage {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "history":
		return History
	case "examination", "exam":
		return Examination
	case "investigations", "investigation":
		return Investigations
	case "management":
		return Management
	default:
		return Stage(s)
	}
}

// Validate decides whether code may be answered in stage. It keeps no state.
func Validate(stage Stage, code intent.Code) Result {
	if code == intent.Greeting || code == intent.Unknown {
		return allow
	}

	switch ParseStage(string(stage)) {
	case History:
		switch {
		case code.IsHistory(), code == intent.CheckVitals, code == intent.ExamGeneral:
			return allow
		case code.IsExam():
			return block(ReasonExamTooEarly)
		case code.IsInvestigation():
			return block(ReasonTestsBeforeHistory)
		}
		return allow

	case Examination:
		if code.IsInvestigation() {
			return block(ReasonTestsBeforeExamination)
		}
		return allow

	default:
		// investigations, management and unrecognised stages
		return allow
	}
}
