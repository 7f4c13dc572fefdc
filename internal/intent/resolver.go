package intent

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type Source string

const (
	SourceHeuristic Source = "heuristic"
	SourceExternal  Source = "external"
	SourceFallback  Source = "fallback"
)

// Result is the classification of one utterance. It lives for one turn only.
type Result struct {
	Code       Code    `json:"code"`
	Confidence float64 `json:"confidence"`
	SourceText string  `json:"source_text"`
	Source     Source  `json:"source"`
}

// Classifier is the external model used when no heuristic rule matches.
// Implementations may return any string; the resolver clamps it to the enum.
type Classifier interface {
	Classify(ctx context.Context, utterance string, allowed []Code) (Code, error)
}

const (
	externalConfidence = 0.9
	ackConfidence      = 0.5
)

type rule struct {
	code       Code
	confidence float64
	re         *regexp.Regexp
}

func r(code Code, pattern string) rule {
	return rule{code: code, confidence: 1, re: regexp.MustCompile(pattern)}
}

func ack(code Code, pattern string) rule {
	return rule{code: code, confidence: ackConfidence, re: regexp.MustCompile(pattern)}
}

// rules run in order on normalized text, first match wins.
var rules = []rule{
	r(Greeting, `^(hello|hi|hey|good (morning|afternoon|evening))\b`),
	ack(Unknown, `^(yes|no|yeah|nah|yep|nope)$`),

	r(AskChiefComplaint, `why are you here|what brings you|how can i help|what seems to be the (matter|problem)|whats brought you in`),
	r(AskOnset, `how did (it|this|the \w+) (start|come on)|what were you doing when|come on (suddenly|gradually)`),
	r(AskDuration, `when did (it|this|the \w+) start|how long|duration`),
	r(AskCharacter, `\bdescribe\b|tell me more|what does it feel like|nature of|what (kind|sort) of pain`),
	r(AskRadiation, `\b(pain|hurt)\w*\b.*\b(move|go anywhere|radiat\w*|spread\w*)`),
	r(AskSeverity, `how bad|out of (ten|10)|scale of|how severe|severity`),
	r(AskExacerbatingFactors, `makes? (it|the \w+) worse|worse when|aggravat`),
	r(AskRelievingFactors, `makes? (it|the \w+) better|relieve|eases? (it|the)`),
	r(AskAssociatedSymptoms, `any other symptoms|associated|\b(nausea|nauseous|vomit\w*|sweat\w*)\b|short(ness)? of breath`),

	r(AskPastMedicalHistory, `medical history|past history|(any|other) (medical )?(conditions|illnesses|health problems)|been in hospital|\b(operations?|surgery)\b`),
	r(AskMedications, `medication|medicines?|\b(tablets|pills)\b|taking anything|prescri`),
	r(AskAllergies, `allerg`),
	r(AskFamilyHistory, `\b(family|mother|father|mum|dad|parents|brother|siblings)\b`),
	r(AskSocialHistory, `\b(smoke|smoking|alcohol|drink|drinking|occupation|work|job|drugs)\b|live with|living situation`),
	r(AskDemographics, `how old|your age|date of birth`),

	r(CheckVitals, `\b(vitals|observations|obs|blood pressure|pulse|heart rate|temperature|oxygen|sats|saturations)\b`),
	r(ExamGeneral, `general (appearance|inspection)|(have a )?look at you\b|examine you\b`),
	r(ExamCardio, `listen\w* to your heart|\bheart sounds?\b|\bmurmurs?\b|examine your heart|cardiovascular exam|auscultat\w* (your )?heart`),
	r(ExamResp, `listen\w* to your (chest|lungs|breathing)|\blungs?\b|breath sounds|deep breath|breathe in|examine your chest|respiratory exam`),
	r(ExamAbdo, `(examine|feel|press on|palpate|look at) your (abdomen|tummy|stomach|belly)|abdominal exam`),
	r(ExamNeuro, `\b(reflexes|pupils|neuro\w*|sensation)\b|cranial nerves|power in your|follow my finger`),

	r(RequestTroponin, `troponin|cardiac enzymes`),
	r(RequestECG, `\b(ecg|ekg|electrocardiogram)\b`),
	r(RequestImaging, `\b(xray|x ray|ct|mri|ultrasound|scan|imaging)\b`),
	r(RequestLabs, `\b(blood tests?|bloods|labs|fbc|full blood count|electrolytes|crp)\b`),

	r(MSEThought, `suicid|kill (yourself|myself)|end(ing)? it all|life (is )?not worth living|harm yourself`),
	r(MSEPerception, `hear(ing)? voices|see(ing)? things|hallucinat|visions`),
	r(MSECognition, `what (year|day|month) is it|where are we|remember (these|three) (words|things)|(count|spell) \w* ?backwards`),
	r(MSEInsight, `do you think (you are|youre) (unwell|ill|sick)|understand (your|what is happening)|need (any )?treatment`),
	r(MSEMood, `\bmood\b|feeling (low|down|depressed)|in yourself|your spirits`),

	r(AskIdeas, `what do you think|your (opinion|idea)|any ideas`),
	r(AskConcerns, `worr|concern|scared|\bfear|afraid`),
	r(AskExpectations, `hoping for|expect|want me to do|hoping (that|to)`),

	r(AskDiet, `\b(diet|eat|eating|food|appetite)\b`),
	r(AskLifestyle, `\b(exercise|activity|active|sports?|gym)\b`),

	ack(Greeting, `\b(anything else|something else|more information)\b`),
	ack(Greeting, `\b(thank you|thanks|ok|okay|sure|fine|alright)\b`),
}

var (
	punct = regexp.MustCompile(`[^\w\s]`)
	space = regexp.MustCompile(`\s+`)
)

// Normalize lower-cases, strips punctuation and collapses whitespace.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = punct.ReplaceAllString(s, "")
	s = space.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Resolver classifies utterances: heuristic rules first, external classifier second.
type Resolver struct {
	classifier Classifier
	timeout    time.Duration
	log        logrus.FieldLogger
}

// NewResolver accepts a nil classifier; unmatched utterances then resolve to UNKNOWN.
func NewResolver(classifier Classifier, timeout time.Duration, log logrus.FieldLogger) *Resolver {
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	return &Resolver{classifier: classifier, timeout: timeout, log: log}
}

// Heuristic runs only the deterministic rules.
func Heuristic(utterance string) (Result, bool) {
	norm := Normalize(utterance)
	if norm == "" {
		return Result{}, false
	}
	for _, rl := range rules {
		if rl.re.MatchString(norm) {
			return Result{Code: rl.code, Confidence: rl.confidence, SourceText: utterance, Source: SourceHeuristic}, true
		}
	}
	return Result{}, false
}

// Resolve never fails. Any problem degrades to UNKNOWN with source fallback.
func (rs *Resolver) Resolve(ctx context.Context, utterance string) (res Result) {
	fallback := Result{Code: Unknown, Confidence: 0, SourceText: utterance, Source: SourceFallback}
	defer func() {
		if p := recover(); p != nil {
			rs.log.WithField("panic", p).Error("intent resolution panicked")
			res = fallback
		}
	}()

	if strings.TrimSpace(utterance) == "" {
		return fallback
	}
	if h, ok := Heuristic(utterance); ok {
		return h
	}
	if rs.classifier == nil {
		return fallback
	}

	cctx, cancel := context.WithTimeout(ctx, rs.timeout)
	defer cancel()

	code, err := rs.classifier.Classify(cctx, utterance, All())
	if err != nil {
		rs.log.WithError(err).Warn("intent classifier failed")
		return fallback
	}
	code = Code(strings.ToUpper(strings.TrimSpace(string(code))))
	if !code.Valid() {
		rs.log.WithField("intent", code).Warn("intent classifier returned a code outside the enum")
		return fallback
	}
	return Result{Code: code, Confidence: externalConfidence, SourceText: utterance, Source: SourceExternal}
}
