package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/oscesim/internal/cache"
	"github.com/yoockh/oscesim/internal/dispatcher"
	"github.com/yoockh/oscesim/internal/voice"
)

// VoiceHandler serves the persona catalog and synthesis cache management.
type VoiceHandler struct {
	catalog *voice.Catalog
	cache   *cache.SynthesisCache
	speaker *dispatcher.Speaker
	log     *logrus.Logger
}

func NewVoiceHandler(catalog *voice.Catalog, c *cache.SynthesisCache, speaker *dispatcher.Speaker, log *logrus.Logger) *VoiceHandler {
	return &VoiceHandler{catalog: catalog, cache: c, speaker: speaker, log: log}
}

func (h *VoiceHandler) Catalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"voices": h.catalog.All(), "nurse": voice.NurseVoice})
}

func (h *VoiceHandler) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.cache.Stats())
}

// ClearCache drops one voice's entries, or all of them without ?voice_id=.
func (h *VoiceHandler) ClearCache(c *gin.Context) {
	voiceID := c.Query("voice_id")
	removed := h.cache.Clear(c.Request.Context(), voiceID)
	h.log.WithFields(logrus.Fields{"voice_id": voiceID, "removed": removed}).Info("synthesis cache cleared")
	c.JSON(http.StatusOK, gin.H{"removed": removed, "stats": h.cache.Stats()})
}

// Prewarm starts warming in the background and returns immediately.
func (h *VoiceHandler) Prewarm(c *gin.Context) {
	ctx := context.WithoutCancel(c.Request.Context())
	go func() {
		n := h.speaker.Prewarm(ctx)
		h.log.WithField("warmed", n).Info("synthesis cache prewarm finished")
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "prewarming"})
}
