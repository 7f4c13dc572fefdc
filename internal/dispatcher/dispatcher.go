package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/oscesim/internal/engine"
	"github.com/yoockh/oscesim/internal/models"
	"github.com/yoockh/oscesim/internal/services"
	"github.com/yoockh/oscesim/internal/utils"
)

// ErrTurnInFlight rejects an utterance while the previous turn is still running.
var ErrTurnInFlight = utils.E(utils.CodeBusy, "Conn.Utterance", "a turn is already in progress", nil)

const archiveTimeout = 30 * time.Second

// Runner is the part of the simulation engine the dispatcher drives.
type Runner interface {
	ProcessTurn(ctx context.Context, req engine.TurnRequest, h engine.Hooks) (*engine.TurnResult, error)
	Join(ctx context.Context, userID, sessionID string) (*models.EncounterSession, error)
	Reset(ctx context.Context, userID, sessionID string) (*models.StateSnapshot, error)
}

type Config struct {
	ChunkSize int
}

// Dispatcher streams turns to connected clients: text as it is generated and
// audio as each chunk is synthesised.
type Dispatcher struct {
	runner    Runner
	speaker   *Speaker
	archive   services.ArchiveService
	chunkSize int
	log       logrus.FieldLogger
}

// New builds a dispatcher. archive may be nil.
func New(runner Runner, speaker *Speaker, archive services.ArchiveService, cfg Config, log logrus.FieldLogger) *Dispatcher {
	if cfg.ChunkSize < 1 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if log == nil {
		log = logrus.New()
	}
	return &Dispatcher{runner: runner, speaker: speaker, archive: archive, chunkSize: cfg.ChunkSize, log: log}
}

// TurnState is where a connection's latest turn is.
type TurnState int32

const (
	Idle TurnState = iota
	Streaming
	Draining
	Done
)

func (s TurnState) String() string {
	switch s {
	case Streaming:
		return "streaming"
	case Draining:
		return "draining"
	case Done:
		return "done"
	default:
		return "idle"
	}
}

// Conn is one client's channel. At most one turn runs per connection.
type Conn struct {
	d        *Dispatcher
	out      Emitter
	inFlight atomic.Bool
	gen      atomic.Uint64
	state    atomic.Int32

	mu     sync.Mutex
	cancel context.CancelFunc // stops the running turn's generation
}

func (d *Dispatcher) NewConn(out Emitter) *Conn {
	return &Conn{d: d, out: out}
}

func (c *Conn) State() TurnState { return TurnState(c.state.Load()) }

// Busy reports whether a turn is running.
func (c *Conn) Busy() bool { return c.inFlight.Load() }

// Abandon detaches the running turn: its generation is cancelled, its remaining
// events are dropped and the connection accepts a new utterance. Outstanding
// synthesis calls finish and are discarded.
func (c *Conn) Abandon() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen.Add(1)
	c.mu.Unlock()

	c.inFlight.Store(false)
	c.state.Store(int32(Idle))
}

func (c *Conn) current(gen uint64) bool { return c.gen.Load() == gen }

// send drops events of abandoned turns.
func (c *Conn) send(gen uint64, ev Event) {
	if !c.current(gen) {
		return
	}
	if err := c.out.Emit(ev); err != nil {
		c.d.log.WithError(err).WithField("type", ev.Type).Debug("emit failed")
	}
}

func (c *Conn) setState(gen uint64, s TurnState) {
	if c.current(gen) {
		c.state.Store(int32(s))
	}
}

// Utterance runs one turn to completion, including the audio drain. Events go
// out in order: thinking-started, text increments and audio chunks interleaved,
// text-final and state-update once the text is complete, thinking-stopped last.
func (c *Conn) Utterance(ctx context.Context, req engine.TurnRequest) error {
	if !c.inFlight.CompareAndSwap(false, true) {
		return ErrTurnInFlight
	}
	turnCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	gen := c.gen.Add(1)
	c.cancel = cancel
	c.mu.Unlock()
	defer func() {
		cancel()
		c.mu.Lock()
		if c.gen.Load() == gen {
			c.cancel = nil
		}
		c.mu.Unlock()
		if c.current(gen) {
			c.inFlight.Store(false)
		}
	}()

	if req.TurnID == "" {
		req.TurnID = uuid.NewString()
	}
	log := c.d.log.WithFields(logrus.Fields{"turn_id": req.TurnID, "user_id": req.UserID, "case_id": req.CaseID})

	c.setState(gen, Streaming)
	c.send(gen, Event{Type: EventThinkingStarted, TurnID: req.TurnID, SessionID: req.SessionID})

	var (
		chunker = NewChunker(c.d.chunkSize)
		queue   = newChunkQueue()
		workers sync.WaitGroup
		info    engine.TurnInfo
	)

	hooks := engine.Hooks{
		OnStart: func(ti engine.TurnInfo) {
			info = ti
			plan := c.d.speaker.Plan(ti.Speaker, ti.Case)
			workers.Add(1)
			go func() {
				defer workers.Done()
				// synthesis outlives a cancelled request; abandoned turns are dropped instead
				c.synthesize(context.WithoutCancel(ctx), gen, ti, plan, queue, log)
			}()
		},
		OnText: func(delta string) {
			c.send(gen, Event{Type: EventTextIncrement, TurnID: req.TurnID, Text: delta})
			for _, ch := range chunker.Push(delta) {
				queue.push(ch)
			}
		},
	}

	res, err := c.d.runner.ProcessTurn(turnCtx, req, hooks)
	if last := chunker.Flush(); last != nil {
		queue.push(*last)
	}
	queue.close()

	switch {
	case err != nil && !c.current(gen):
		log.WithError(err).Debug("abandoned turn stopped")
	case err != nil:
		log.WithError(err).Warn("turn failed")
		c.send(gen, ErrorEvent(err))
	default:
		meta := res.Meta
		c.send(gen, Event{Type: EventTextFinal, TurnID: req.TurnID, SessionID: res.SessionID, FullText: res.Text, Meta: &meta})
		if res.State != nil {
			c.send(gen, Event{Type: EventStateUpdate, TurnID: req.TurnID, SessionID: res.SessionID, State: res.State})
		}
	}

	c.setState(gen, Draining)
	workers.Wait()

	sessionID := info.SessionID
	if res != nil {
		sessionID = res.SessionID
	}
	c.send(gen, Event{Type: EventThinkingStopped, TurnID: req.TurnID, SessionID: sessionID})
	c.setState(gen, Done)
	return err
}

// synthesize speaks chunks one at a time in index order. A failed chunk is
// logged and skipped; its text has already been delivered.
func (c *Conn) synthesize(ctx context.Context, gen uint64, ti engine.TurnInfo, plan VoicePlan, q *chunkQueue, log *logrus.Entry) {
	for {
		ch, ok := q.next()
		if !ok || !c.current(gen) {
			return
		}

		speech, err := c.d.speaker.Speak(ctx, plan, ch.Text)
		if err != nil {
			if !errors.Is(err, ErrEmptyText) {
				log.WithError(err).WithField("chunk", ch.Index).Warn("chunk synthesis failed")
			}
			continue
		}

		c.send(gen, Event{
			Type:   EventAudioChunk,
			TurnID: ti.TurnID,
			Index:  ch.Index,
			Text:   ch.Text,
			Audio:  speech.Audio,
			Voice: &VoiceInfo{
				VoiceID:     plan.Persona.ID,
				DisplayName: plan.Persona.DisplayName,
				Speaker:     plan.Speaker,
				Params:      plan.Params,
				Tags:        tagStrings(speech),
				CacheHit:    speech.CacheHit,
				DurationMS:  speech.Duration,
			},
		})
		c.archive(ctx, ti, plan, ch, speech, log)
	}
}

func (c *Conn) archive(ctx context.Context, ti engine.TurnInfo, plan VoicePlan, ch Chunk, speech *Speech, log *logrus.Entry) {
	if c.d.archive == nil || ti.SessionID == "" {
		return
	}
	chunk := &models.AudioChunk{
		SessionID:  ti.SessionID,
		TurnID:     ti.TurnID,
		ChunkIndex: ch.Index,
		VoiceID:    plan.Persona.ID,
		Text:       speech.Text,
		DurationMS: speech.Duration,
		CacheHit:   speech.CacheHit,
	}
	go func() {
		actx, cancel := context.WithTimeout(ctx, archiveTimeout)
		defer cancel()
		if err := c.d.archive.Archive(actx, chunk, speech.Audio); err != nil {
			log.WithError(err).WithField("chunk", ch.Index).Warn("audio archive failed")
		}
	}()
}

func tagStrings(s *Speech) []string {
	out := make([]string, 0, len(s.Tags))
	for _, t := range s.Tags {
		out = append(out, string(t))
	}
	return out
}

// Join attaches the client to an existing session and replays its state.
func (c *Conn) Join(ctx context.Context, userID, sessionID string) error {
	sess, err := c.d.runner.Join(ctx, userID, sessionID)
	if err != nil {
		c.emit(ErrorEvent(err))
		return err
	}
	snap := sess.Snapshot()
	c.emit(Event{Type: EventSessionJoined, SessionID: sess.SessionID, State: &snap, Transcript: sess.Transcript})
	return nil
}

// Reset abandons any running turn and restarts the encounter at its first stage.
func (c *Conn) Reset(ctx context.Context, userID, sessionID string) error {
	c.Abandon()
	snap, err := c.d.runner.Reset(ctx, userID, sessionID)
	if err != nil {
		c.emit(ErrorEvent(err))
		return err
	}
	c.emit(Event{Type: EventResetComplete, SessionID: snap.SessionID, State: snap})
	return nil
}

// Fail reports an error that happened outside a turn.
func (c *Conn) Fail(err error) { c.emit(ErrorEvent(err)) }

func (c *Conn) emit(ev Event) {
	if err := c.out.Emit(ev); err != nil {
		c.d.log.WithError(err).WithField("type", ev.Type).Debug("emit failed")
	}
}

// chunkQueue is an unbounded FIFO so text streaming never waits on synthesis.
type chunkQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []Chunk
	closed bool
}

func newChunkQueue() *chunkQueue {
	q := &chunkQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *chunkQueue) push(ch Chunk) {
	q.mu.Lock()
	q.items = append(q.items, ch)
	q.mu.Unlock()
	q.cond.Signal()
}

func (q *chunkQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// next blocks until a chunk is available. It reports false once closed and empty.
func (q *chunkQueue) next() (Chunk, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return Chunk{}, false
	}
	ch := q.items[0]
	q.items = q.items[1:]
	return ch, true
}
