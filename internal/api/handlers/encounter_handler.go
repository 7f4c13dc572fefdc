package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/oscesim/internal/dispatcher"
	"github.com/yoockh/oscesim/internal/engine"
	"github.com/yoockh/oscesim/internal/models"
	"github.com/yoockh/oscesim/internal/services"
	"github.com/yoockh/oscesim/internal/utils"
)

// EncounterHandler exposes non-streaming turns and session inspection.
type EncounterHandler struct {
	engine      dispatcher.Runner
	transcripts services.TranscriptService // nil when Postgres is not configured
	audio       services.ArchiveService    // nil when the audio archive is disabled
}

func NewEncounterHandler(eng dispatcher.Runner, transcripts services.TranscriptService, audio services.ArchiveService) *EncounterHandler {
	return &EncounterHandler{engine: eng, transcripts: transcripts, audio: audio}
}

type TurnRequest struct {
	CaseID    string `json:"case_id" binding:"required"`
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	Stage     string `json:"stage"`
	Mode      string `json:"mode"`
}

type TurnResponse struct {
	SessionID string                `json:"session_id"`
	Text      string                `json:"text"`
	Meta      engine.TurnMeta       `json:"meta"`
	State     *models.StateSnapshot `json:"state,omitempty"`
}

// Turn runs one utterance without streaming.
func (h *EncounterHandler) Turn(c *gin.Context) {
	const op = "EncounterHandler.Turn"
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid request body", err))
		return
	}

	res, err := h.engine.ProcessTurn(c.Request.Context(), engine.TurnRequest{
		UserID:    userID,
		CaseID:    strings.TrimSpace(req.CaseID),
		SessionID: req.SessionID,
		Text:      req.Text,
		Stage:     req.Stage,
		Mode:      engine.ParseMode(req.Mode, ""),
	}, engine.Hooks{})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, TurnResponse{SessionID: res.SessionID, Text: res.Text, Meta: res.Meta, State: res.State})
}

// Session returns the caller's session with its live transcript.
func (h *EncounterHandler) Session(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	sess, err := h.engine.Join(c.Request.Context(), userID, c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess, "state": sess.Snapshot()})
}

func (h *EncounterHandler) Reset(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	snap, err := h.engine.Reset(c.Request.Context(), userID, c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Transcript lists archived transcript rows.
func (h *EncounterHandler) Transcript(c *gin.Context) {
	const op = "EncounterHandler.Transcript"
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	if h.transcripts == nil {
		writeError(c, utils.E(utils.CodeUnavailable, op, "transcript archive not configured", nil))
		return
	}

	logs, err := h.transcripts.ListBySession(c.Request.Context(), userID, c.Param("session_id"), int(queryLimit(c, 200, 1000)))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": logs})
}

// Audio lists archived reply chunks with signed download URLs.
func (h *EncounterHandler) Audio(c *gin.Context) {
	const op = "EncounterHandler.Audio"
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	if h.audio == nil {
		writeError(c, utils.E(utils.CodeUnavailable, op, "audio archive not configured", nil))
		return
	}

	sess, err := h.engine.Join(c.Request.Context(), userID, c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	chunks, err := h.audio.ListBySession(c.Request.Context(), sess.SessionID, queryLimit(c, 500, 2000))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": chunks})
}
