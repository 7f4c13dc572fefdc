package tags

import (
	"math/rand/v2"
	"regexp"
	"strings"
	"sync"
)

type Tag string

const (
	Cough   Tag = "[cough]"
	Laugh   Tag = "[laugh]"
	Sigh    Tag = "[sigh]"
	Chuckle Tag = "[chuckle]"
	Gasp    Tag = "[gasp]"
	Groan   Tag = "[groan]"
)

type rule struct {
	tag          Tag
	weight       float64
	maxPerPara   int
	requires     []string
	incompatible []Tag
}

// rules are kept in a fixed order so weighted sampling is reproducible for a given source.
var rules = []rule{
	{Cough, 0.3, 2, []string{"respiratory", "cold", "flu", "infection", "asthma", "bronchitis", "pneumonia", "cough", "smoker", "breath"}, []Tag{Laugh, Chuckle}},
	{Laugh, 0.2, 1, []string{"happy", "joy", "excited", "nervous laugh", "awkward", "amusing", "joke"}, []Tag{Cough, Gasp}},
	{Sigh, 0.25, 2, []string{"tired", "exhausted", "frustrated", "relieved", "sad", "disappointed", "worried", "anxious"}, []Tag{Laugh, Gasp}},
	{Chuckle, 0.2, 1, []string{"amused", "nervous", "embarrassed", "shy", "polite", "humor"}, []Tag{Cough}},
	{Gasp, 0.35, 1, []string{"shock", "surprise", "fear", "sudden", "alarm", "horror", "realization", "chest pain", "heart attack"}, []Tag{Laugh, Sigh, Chuckle}},
	{Groan, 0.4, 1, []string{"pain", "discomfort", "moving", "getting up", "sore", "aching", "back pain"}, []Tag{Laugh, Chuckle}},
}

// MaxPerParagraph caps all tags in one paragraph.
const MaxPerParagraph = 3

const (
	baseRate         = 0.25
	painBoost        = 0.15
	respiratoryBoost = 0.2
	elderlyBoost     = 0.1
	pivotRate        = 0.4
)

// Incompatible reports whether a and b may not share a paragraph. The relation is symmetric.
func Incompatible(a, b Tag) bool {
	for _, rl := range rules {
		for _, x := range rl.incompatible {
			if (rl.tag == a && x == b) || (rl.tag == b && x == a) {
				return true
			}
		}
	}
	return false
}

// Context describes the speaker for one insertion call.
type Context struct {
	Conditions     []string
	EmotionalState string
	Age            int
}

// Placement records where a tag went.
type Placement struct {
	Tag       Tag `json:"tag"`
	Paragraph int `json:"paragraph"`
	Sentence  int `json:"sentence"`
}

type Result struct {
	Text       string      `json:"text"`
	Placements []Placement `json:"placements"`
}

// Engine inserts paralinguistic tags. Placement is random; a fixed source makes it
// reproducible.
type Engine struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New uses src for every random draw. A nil src seeds from the runtime.
func New(src rand.Source) *Engine {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Engine{rng: rand.New(src)}
}

func (e *Engine) float() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Float64()
}

func (e *Engine) intN(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.IntN(n)
}

var (
	sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]+(?:\s+|$)|[^.!?]+(?:\s+|$)`)
	pauseRe    = regexp.MustCompile(`[,;]|\.\.\.|--`)
	trailingRe = regexp.MustCompile(`[.!?]+\s*$`)
)

func (e *Engine) Insert(text string, ctx Context) string {
	return e.InsertDetailed(text, ctx).Text
}

// InsertDetailed walks the text paragraph by paragraph and sentence by sentence,
// tagging some sentences. A paragraph ends at a line break; text without one is a
// single paragraph, so caps and incompatibilities hold across the whole call.
func (e *Engine) InsertDetailed(text string, ctx Context) Result {
	res := Result{Text: text, Placements: []Placement{}}
	if strings.TrimSpace(text) == "" || HasEmbedded(text) {
		return res
	}

	haystack := strings.ToLower(strings.Join(ctx.Conditions, " ") + " " + ctx.EmotionalState)
	eligible := eligibleRules(ctx)
	if len(eligible) == 0 {
		return res
	}
	rate := insertionRate(haystack, ctx.Age)

	var out strings.Builder
	for para, p := range splitParagraphs(text) {
		sentences := sentenceRe.FindAllString(p, -1)
		if strings.Join(sentences, "") != p {
			// leading punctuation or other shapes the splitter cannot round-trip
			out.WriteString(p)
			continue
		}

		used := map[Tag]int{}
		total := 0
		for i, sentence := range sentences {
			tagged := sentence
			if strings.TrimSpace(sentence) != "" && e.float() < rate {
				if tag, ok := e.pick(eligible, used, total); ok {
					tagged = e.place(sentence, tag, i, len(sentences))
					used[tag]++
					total++
					res.Placements = append(res.Placements, Placement{Tag: tag, Paragraph: para, Sentence: i})
				}
			}
			out.WriteString(tagged)
		}
	}
	res.Text = out.String()
	return res
}

// splitParagraphs cuts text after each line break run, keeping the breaks with
// the paragraph before them so the pieces concatenate back to text.
func splitParagraphs(text string) []string {
	var out []string
	for text != "" {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			out = append(out, text)
			break
		}
		j := i
		for j < len(text) && strings.IndexByte(" \t\r\n", text[j]) >= 0 {
			j++
		}
		out = append(out, text[:j])
		text = text[j:]
	}
	return out
}

func insertionRate(haystack string, age int) float64 {
	rate := baseRate
	if strings.Contains(haystack, "pain") || strings.Contains(haystack, "hurt") {
		rate += painBoost
	}
	if strings.Contains(haystack, "breath") || strings.Contains(haystack, "asthma") {
		rate += respiratoryBoost
	}
	if age > 65 {
		rate += elderlyBoost
	}
	return rate
}

// eligibleRules keeps tags whose keywords overlap the speaker's conditions or emotion.
// Matching is substring in either direction so "pain" and "back pain" meet.
func eligibleRules(ctx Context) []rule {
	var fields []string
	for _, c := range append(append([]string(nil), ctx.Conditions...), ctx.EmotionalState) {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			fields = append(fields, c)
		}
	}

	var out []rule
	for _, rl := range rules {
	match:
		for _, f := range fields {
			for _, k := range rl.requires {
				if strings.Contains(f, k) || strings.Contains(k, f) {
					out = append(out, rl)
					break match
				}
			}
		}
	}
	return out
}

// pick samples one tag by weight among those still allowed in this paragraph.
func (e *Engine) pick(eligible []rule, used map[Tag]int, total int) (Tag, bool) {
	if total >= MaxPerParagraph {
		return "", false
	}

	var (
		allowed []rule
		sum     float64
	)
	for _, rl := range eligible {
		if used[rl.tag] >= rl.maxPerPara {
			continue
		}
		clash := false
		for prev, n := range used {
			if n > 0 && Incompatible(rl.tag, prev) {
				clash = true
				break
			}
		}
		if clash {
			continue
		}
		allowed = append(allowed, rl)
		sum += rl.weight
	}
	if len(allowed) == 0 {
		return "", false
	}

	x := e.float() * sum
	for _, rl := range allowed {
		if x < rl.weight {
			return rl.tag, true
		}
		x -= rl.weight
	}
	return allowed[len(allowed)-1].tag, true
}

// place puts tag into one sentence: at a mid-sentence pause when there is one
// (most of the time), otherwise before or after depending on position and length.
func (e *Engine) place(sentence string, tag Tag, index, count int) string {
	body := strings.TrimRight(sentence, " \t\r\n")
	tail := sentence[len(body):]

	if loc := pauseRe.FindStringIndex(body); loc != nil && e.float() > pivotRate {
		return body[:loc[1]] + " " + string(tag) + body[loc[1]:] + tail
	}

	after := false
	switch {
	case index == 0:
		after = true
	case index == count-1:
		after = false
	case len(strings.Fields(body)) > 15:
		after = false
	default:
		after = e.intN(2) == 0
	}

	if !after {
		lead := len(body) - len(strings.TrimLeft(body, " \t\r\n"))
		return body[:lead] + string(tag) + " " + body[lead:] + tail
	}
	if loc := trailingRe.FindStringIndex(body); loc != nil {
		return body[:loc[0]] + " " + string(tag) + body[loc[0]:] + tail
	}
	return body + " " + string(tag) + tail
}

var embeddedRe = regexp.MustCompile(`(?i)\[(cough|laugh|sigh|chuckle|gasp|groan)\]`)

// HasEmbedded reports whether the text already carries tags written by the generator.
func HasEmbedded(text string) bool { return embeddedRe.MatchString(text) }

// Embedded lists the distinct tags present in text, lower-cased, in order of first use.
func Embedded(text string) []Tag {
	var out []Tag
	seen := map[Tag]bool{}
	for _, m := range embeddedRe.FindAllString(text, -1) {
		t := Tag(strings.ToLower(m))
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

var spacesRe = regexp.MustCompile(`[ \t]{2,}`)

// Strip removes every known tag and the double spaces it leaves behind.
func Strip(text string) string {
	out := embeddedRe.ReplaceAllString(text, "")
	out = spacesRe.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}
