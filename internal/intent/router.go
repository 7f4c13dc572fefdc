package intent

import "regexp"

// Category decides which responder handles an utterance before any clinical gating.
type Category string

const (
	CategoryClinical       Category = "CLINICAL"
	CategoryConversational Category = "CONVERSATIONAL"
	CategoryNurse          Category = "NURSE"
	CategoryUnclear        Category = "UNCLEAR"
)

var (
	nurseAddress = regexp.MustCompile(`\b(nurse|sister|medical assistant)\b`)
	fillerOnly   = regexp.MustCompile(`^((um+|uh+|er+|hm+|ah+|mm+)\s*)+$`)
	smallTalk    = regexp.MustCompile(`^(hello|hi|hey|good (morning|afternoon|evening)|thank you|thanks|ok|okay|bye|goodbye)\b`)
)

// Route classifies who should answer. It is purely lexical and never calls out.
func Route(utterance string) Category {
	norm := Normalize(utterance)
	switch {
	case len([]rune(norm)) < 2 || fillerOnly.MatchString(norm):
		return CategoryUnclear
	case nurseAddress.MatchString(norm):
		return CategoryNurse
	case smallTalk.MatchString(norm):
		return CategoryConversational
	default:
		return CategoryClinical
	}
}
