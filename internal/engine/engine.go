package engine

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/oscesim/internal/formatter"
	"github.com/yoockh/oscesim/internal/gate"
	"github.com/yoockh/oscesim/internal/intent"
	"github.com/yoockh/oscesim/internal/models"
	"github.com/yoockh/oscesim/internal/profile"
	"github.com/yoockh/oscesim/internal/providers/llm"
	"github.com/yoockh/oscesim/internal/services"
	"github.com/yoockh/oscesim/internal/tags"
	"github.com/yoockh/oscesim/internal/utils"
	"github.com/yoockh/oscesim/internal/voice"
)

// Mode selects how the patient answers.
type Mode string

const (
	// ModeGated answers from case content behind the stage gate.
	ModeGated Mode = "gated"
	// ModeNatural passes the utterance straight to the text generator.
	ModeNatural Mode = "natural"
)

func ParseMode(s string, def Mode) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeGated:
		return ModeGated
	case ModeNatural:
		return ModeNatural
	default:
		return def
	}
}

type TurnRequest struct {
	TurnID    string
	UserID    string
	CaseID    string
	SessionID string
	Text      string
	// Stage, when set, moves the encounter to that stage before answering.
	Stage string
	Mode  Mode
}

// TurnInfo is known before any reply text exists.
type TurnInfo struct {
	TurnID    string
	Speaker   string // patient|nurse
	Case      *models.Case
	SessionID string
	Stage     gate.Stage
}

// Hooks observe a turn while it runs. OnStart fires once, before the first OnText.
type Hooks struct {
	OnStart func(TurnInfo)
	OnText  func(delta string)
}

type TurnMeta struct {
	TurnID   string          `json:"turn_id"`
	Speaker  string          `json:"speaker"`
	Category intent.Category `json:"category"`
	Mode     Mode            `json:"mode"`
	Stage    gate.Stage      `json:"stage"`
	Intent   *intent.Result  `json:"intent,omitempty"`
	Gate     *gate.Result    `json:"gate,omitempty"`
	FactPath string          `json:"fact_path,omitempty"`
	Fallback bool            `json:"fallback,omitempty"`
}

type TurnResult struct {
	SessionID string
	// Text is the exact concatenation of every OnText delta.
	Text  string
	Meta  TurnMeta
	State *models.StateSnapshot
}

type Config struct {
	DefaultMode       Mode
	HistoryTurns      int
	GenerationTimeout time.Duration
}

type Deps struct {
	Cases    services.CaseService
	Sessions services.SessionService
	Resolver *intent.Resolver
	Catalog  *voice.Catalog
	Patient  llm.Provider
	// Nurse defaults to Patient.
	Nurse  llm.Provider
	Logger *logrus.Logger
}

// Engine runs one conversational turn: routing, gating, generation, state and transcript.
type Engine struct {
	cases    services.CaseService
	sessions services.SessionService
	resolver *intent.Resolver
	catalog  *voice.Catalog
	patient  llm.Provider
	nurse    llm.Provider
	cfg      Config
	locks    *keyedMutex
	log      *logrus.Logger
}

func New(d Deps, cfg Config) *Engine {
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = ModeGated
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = 12
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 30 * time.Second
	}
	if d.Logger == nil {
		d.Logger = logrus.New()
	}
	if d.Resolver == nil {
		d.Resolver = intent.NewResolver(nil, 0, d.Logger)
	}
	if d.Catalog == nil {
		d.Catalog = voice.DefaultCatalog()
	}
	if d.Nurse == nil {
		d.Nurse = d.Patient
	}
	return &Engine{
		cases:    d.Cases,
		sessions: d.Sessions,
		resolver: d.Resolver,
		catalog:  d.Catalog,
		patient:  d.Patient,
		nurse:    d.Nurse,
		cfg:      cfg,
		locks:    newKeyedMutex(),
		log:      d.Logger,
	}
}

func (h Hooks) start(info TurnInfo) {
	if h.OnStart != nil {
		h.OnStart(info)
	}
}

func (h Hooks) text(delta string) {
	if h.OnText != nil && delta != "" {
		h.OnText(delta)
	}
}

func ownerKey(userID, caseID string) string { return userID + "|" + caseID }

// ProcessTurn answers one utterance. Only request and session-level problems are
// returned as errors; generation and case problems degrade to in-character lines.
func (e *Engine) ProcessTurn(ctx context.Context, req TurnRequest, h Hooks) (*TurnResult, error) {
	const op = "Engine.ProcessTurn"

	if req.UserID == "" || req.CaseID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id and case_id are required", nil)
	}
	if req.TurnID == "" {
		req.TurnID = uuid.NewString()
	}
	mode := req.Mode
	if mode == "" {
		mode = e.cfg.DefaultMode
	}
	text := strings.TrimSpace(req.Text)

	log := e.log.WithFields(logrus.Fields{
		"turn_id": req.TurnID,
		"user_id": req.UserID,
		"case_id": req.CaseID,
	})

	c, err := e.cases.Get(ctx, req.CaseID)
	if err == nil {
		if missing := c.Validate(); missing != "" {
			err = utils.E(utils.CodeInvalidCase, op, "case is missing "+missing, nil)
		}
	}
	if err != nil {
		log.WithError(err).Warn("case unusable, answering with fallback")
		stage := gate.ParseStage(req.Stage)
		h.start(TurnInfo{TurnID: req.TurnID, Speaker: models.RolePatient, SessionID: req.SessionID, Stage: stage})
		h.text(formatter.Lost)
		return &TurnResult{
			SessionID: req.SessionID,
			Text:      formatter.Lost,
			Meta: TurnMeta{
				TurnID:   req.TurnID,
				Speaker:  models.RolePatient,
				Category: intent.CategoryClinical,
				Mode:     mode,
				Stage:    stage,
				Fallback: true,
			},
		}, nil
	}

	unlock := e.locks.Lock(ownerKey(req.UserID, c.CaseID))
	defer unlock()

	sess, err := e.sessions.LoadOrCreate(ctx, req.UserID, c.CaseID, req.SessionID)
	if err != nil {
		return nil, err
	}

	stage := gate.ParseStage(sess.Stage)
	if req.Stage != "" {
		stage = gate.ParseStage(req.Stage)
		if err := e.sessions.SetStage(ctx, sess, stage); err != nil {
			return nil, err
		}
	}

	category := intent.Route(text)
	speaker := models.RolePatient
	if category == intent.CategoryNurse {
		speaker = models.RoleNurse
	}
	log = log.WithField("session_id", sess.SessionID)

	h.start(TurnInfo{TurnID: req.TurnID, Speaker: speaker, Case: c, SessionID: sess.SessionID, Stage: stage})

	meta := TurnMeta{TurnID: req.TurnID, Speaker: speaker, Category: category, Mode: mode, Stage: stage}
	var (
		reply      string
		userIntent string
		revealed   []string
		dd         = sess.DynamicData
		ddChanged  bool
	)

	switch {
	case category == intent.CategoryUnclear:
		reply = formatter.Unclear
		h.text(reply)

	case category == intent.CategoryNurse:
		reply = e.generate(ctx, log, e.nurse, llm.Request{
			System:  NursePrompt(c, stage),
			History: historyFor(sess.Transcript, models.RoleNurse, e.cfg.HistoryTurns),
			Prompt:  text,
		}, formatter.NurseAck, h, &meta)

	case mode == ModeNatural:
		p := profile.Extract(c)
		persona := e.catalog.SelectWithOverride(voice.CriteriaFrom(p), c.Truth.VoiceID)
		reply = e.generate(ctx, log, e.patient, llm.Request{
			System:  PatientPrompt(c, p, persona, stage),
			History: historyFor(sess.Transcript, models.RolePatient, e.cfg.HistoryTurns),
			Prompt:  text,
		}, formatter.Lost, h, &meta)
		if res, ok := intent.Heuristic(text); ok {
			meta.Intent = &res
			userIntent = string(res.Code)
		}

	default:
		res := e.resolver.Resolve(ctx, text)
		g := gate.Validate(stage, res.Code)
		f := formatter.Lookup(res.Code, c)
		reply = formatter.Format(g, f)
		h.text(reply)

		meta.Intent, meta.Gate = &res, &g
		userIntent = string(res.Code)
		if g.Allowed && f.Found {
			meta.FactPath = f.Path
			if res.Code.Reveals() {
				revealed = []string{string(res.Code)}
			}
			dd, ddChanged = reveal(dd, c, f, time.Now().UTC())
		}
	}

	if len(revealed) > 0 || ddChanged {
		if err := e.sessions.ApplyState(ctx, sess, revealed, dd); err != nil {
			log.WithError(err).Error("apply session state failed")
		}
	}

	spoken := strings.TrimSpace(reply)
	var tagNames []string
	for _, t := range tags.Embedded(spoken) {
		tagNames = append(tagNames, string(t))
	}
	err = e.sessions.AppendTranscript(ctx, sess,
		services.TranscriptLine{
			Role:   models.RoleUser,
			Text:   text,
			Intent: userIntent,
			Metadata: map[string]any{
				"turn_id":  req.TurnID,
				"category": string(category),
				"mode":     string(mode),
				"stage":    string(stage),
			},
		},
		services.TranscriptLine{
			Role:     speaker,
			Text:     spoken,
			Intent:   userIntent,
			Tags:     tagNames,
			Metadata: map[string]any{"turn_id": req.TurnID, "fallback": meta.Fallback},
		},
	)
	if err != nil {
		log.WithError(err).Error("append transcript failed")
	}

	snap := sess.Snapshot()
	log.WithFields(logrus.Fields{
		"speaker":  speaker,
		"category": category,
		"mode":     mode,
		"intent":   userIntent,
		"fallback": meta.Fallback,
	}).Info("turn processed")

	return &TurnResult{SessionID: sess.SessionID, Text: reply, Meta: meta, State: &snap}, nil
}

// generate streams a reply through h. When nothing usable arrives the fallback
// line is emitted, so the returned text always equals what h received.
func (e *Engine) generate(ctx context.Context, log *logrus.Entry, p llm.Provider, req llm.Request, fallback string, h Hooks, meta *TurnMeta) string {
	if p == nil {
		meta.Fallback = true
		h.text(fallback)
		return fallback
	}

	gctx, cancel := context.WithTimeout(ctx, e.cfg.GenerationTimeout)
	defer cancel()

	chunks, errs := p.StreamAnswer(gctx, req)
	var b strings.Builder
	for d := range chunks {
		if d == "" {
			continue
		}
		b.WriteString(d)
		h.text(d)
	}
	err := <-errs
	if err != nil {
		log.WithError(err).Warn("text generation failed")
	}

	if strings.TrimSpace(b.String()) == "" {
		meta.Fallback = true
		h.text(fallback)
		b.WriteString(fallback)
	}
	return b.String()
}

// historyFor converts the stored transcript into alternating generator turns for one speaker.
func historyFor(entries []models.TranscriptEntry, speaker string, limit int) []llm.Message {
	var out []llm.Message
	for _, en := range entries {
		var role string
		switch en.Role {
		case models.RoleUser:
			role = llm.RoleUser
		case speaker:
			role = llm.RoleModel
		default:
			continue
		}
		if strings.TrimSpace(en.Text) == "" {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Text += "\n" + en.Text
			continue
		}
		out = append(out, llm.Message{Role: role, Text: en.Text})
	}

	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	for len(out) > 0 && out[0].Role != llm.RoleUser {
		out = out[1:]
	}
	for len(out) > 0 && out[len(out)-1].Role == llm.RoleUser {
		out = out[:len(out)-1]
	}
	return out
}

func (e *Engine) owned(ctx context.Context, op, userID, sessionID string) (*models.EncounterSession, error) {
	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, utils.E(utils.CodeForbidden, op, "session belongs to another user", nil)
	}
	return sess, nil
}

// Join returns the stored session so a reconnecting client can replay it.
func (e *Engine) Join(ctx context.Context, userID, sessionID string) (*models.EncounterSession, error) {
	return e.owned(ctx, "Engine.Join", userID, sessionID)
}

// Reset restarts the encounter from the History stage.
func (e *Engine) Reset(ctx context.Context, userID, sessionID string) (*models.StateSnapshot, error) {
	const op = "Engine.Reset"

	sess, err := e.owned(ctx, op, userID, sessionID)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(ownerKey(sess.UserID, sess.CaseID))
	defer unlock()

	if err := e.sessions.Reset(ctx, sess); err != nil {
		return nil, err
	}
	e.log.WithFields(logrus.Fields{"session_id": sessionID, "user_id": userID}).Info("encounter reset")

	snap := sess.Snapshot()
	return &snap, nil
}
