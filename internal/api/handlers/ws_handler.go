package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/oscesim/internal/dispatcher"
	"github.com/yoockh/oscesim/internal/engine"
	"github.com/yoockh/oscesim/internal/providers/stt"
	"github.com/yoockh/oscesim/internal/utils"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 25 * time.Second
	wsMaxMessage = 8 << 20 // base64 audio utterances

	transcribeTimeout = 20 * time.Second
)

// Inbound frame types.
const (
	msgUtterance      = "utterance"
	msgAudioUtterance = "audio-utterance"
	msgReset          = "reset"
	msgJoinSession    = "join-session"
)

type WSHandler struct {
	dispatcher *dispatcher.Dispatcher
	stt        stt.Provider // nil disables audio-utterance
	language   string
	log        *logrus.Logger
	upgrader   websocket.Upgrader
}

func NewWSHandler(d *dispatcher.Dispatcher, speech stt.Provider, language string, allowedOrigins []string, log *logrus.Logger) *WSHandler {
	if language == "" {
		language = "en-US"
	}
	return &WSHandler{
		dispatcher: d,
		stt:        speech,
		language:   language,
		log:        log,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowedOrigins),
		},
	}
}

// originChecker accepts any origin when the list is empty or contains "*".
func originChecker(allowed []string) func(r *http.Request) bool {
	set := map[string]bool{}
	for _, o := range allowed {
		if o = strings.TrimSpace(o); o != "" {
			set[o] = true
		}
	}
	return func(r *http.Request) bool {
		if len(set) == 0 || set["*"] {
			return true
		}
		return set[r.Header.Get("Origin")]
	}
}

type wsClientMsg struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	Audio     string `json:"audio"` // base64
	CaseID    string `json:"case_id"`
	SessionID string `json:"session_id"`
	Stage     string `json:"stage"`
	Mode      string `json:"mode"`
	Language  string `json:"language"`
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) write(typ int, b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return w.c.WriteMessage(typ, b)
}

// Emit implements dispatcher.Emitter.
func (w *wsConn) Emit(ev dispatcher.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return w.write(websocket.TextMessage, b)
}

// Encounter upgrades to the turn channel. One connection runs one turn at a time.
func (h *WSHandler) Encounter(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote the response
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	turns := h.dispatcher.NewConn(wc)
	log := h.log.WithField("user_id", userID)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer func() {
		cancel()
		turns.Abandon()
	}()

	go h.keepalive(ctx, wc)

	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	log.Info("encounter channel opened")
	defer log.Info("encounter channel closed")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg wsClientMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			turns.Fail(utils.E(utils.CodeInvalidArgument, "WSHandler.Encounter", "invalid json", err))
			continue
		}
		h.handle(ctx, turns, userID, msg)
	}
}

func (h *WSHandler) keepalive(ctx context.Context, wc *wsConn) {
	t := time.NewTicker(wsPingPeriod)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := wc.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) handle(ctx context.Context, turns *dispatcher.Conn, userID string, msg wsClientMsg) {
	const op = "WSHandler.handle"

	switch msg.Type {
	case msgUtterance:
		go h.runTurn(ctx, turns, userID, msg, msg.Text)

	case msgAudioUtterance:
		if h.stt == nil {
			turns.Fail(utils.E(utils.CodeUnavailable, op, "speech recognition not configured", nil))
			return
		}
		if turns.Busy() {
			turns.Fail(dispatcher.ErrTurnInFlight)
			return
		}
		audio, err := base64.StdEncoding.DecodeString(msg.Audio)
		if err != nil || len(audio) == 0 {
			turns.Fail(utils.E(utils.CodeInvalidArgument, op, "audio must be non-empty base64", err))
			return
		}
		go func() {
			text, err := h.transcribe(ctx, audio, msg.Language)
			if err != nil {
				turns.Fail(err)
				return
			}
			h.runTurn(ctx, turns, userID, msg, text)
		}()

	case msgReset:
		go func() { _ = turns.Reset(ctx, userID, msg.SessionID) }()

	case msgJoinSession:
		go func() { _ = turns.Join(ctx, userID, msg.SessionID) }()

	default:
		turns.Fail(utils.E(utils.CodeInvalidArgument, op, "unknown message type", nil))
	}
}

func (h *WSHandler) transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	const op = "WSHandler.transcribe"
	if language == "" {
		language = h.language
	}
	tctx, cancel := context.WithTimeout(ctx, transcribeTimeout)
	defer cancel()

	text, confidence, err := h.stt.Transcribe(tctx, audio, language)
	if err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "speech recognition failed", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, "no speech recognised", nil)
	}
	h.log.WithFields(logrus.Fields{"confidence": confidence, "chars": len(text)}).Debug("utterance transcribed")
	return text, nil
}

func (h *WSHandler) runTurn(ctx context.Context, turns *dispatcher.Conn, userID string, msg wsClientMsg, text string) {
	err := turns.Utterance(ctx, engine.TurnRequest{
		UserID:    userID,
		CaseID:    strings.TrimSpace(msg.CaseID),
		SessionID: msg.SessionID,
		Text:      text,
		Stage:     msg.Stage,
		Mode:      engine.ParseMode(msg.Mode, ""),
	})
	// other failures were already reported inside the turn
	if errors.Is(err, dispatcher.ErrTurnInFlight) {
		turns.Fail(err)
	}
}
