package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/oscesim/internal/api/handlers"
	"github.com/yoockh/oscesim/internal/api/middleware"
)

type Deps struct {
	JWT       middleware.JWTConfig
	Encounter *handlers.EncounterHandler
	Cases     *handlers.CaseHandler
	Voice     *handlers.VoiceHandler
	WS        *handlers.WSHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	auth := r.Group("/")
	auth.Use(middleware.JWTAuth(d.JWT))

	auth.POST("/encounters/turn", d.Encounter.Turn)
	auth.GET("/encounters/sessions/:session_id", d.Encounter.Session)
	auth.POST("/encounters/sessions/:session_id/reset", d.Encounter.Reset)
	auth.GET("/encounters/sessions/:session_id/transcript", d.Encounter.Transcript)
	auth.GET("/encounters/sessions/:session_id/audio", d.Encounter.Audio)

	auth.GET("/cases", d.Cases.List)
	auth.GET("/cases/:case_id", d.Cases.Get)
	auth.GET("/voices", d.Voice.Catalog)

	// WebSocket; browsers pass ?access_token=
	auth.GET("/ws/encounter", d.WS.Encounter)

	admin := auth.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	admin.PUT("/cases/:case_id", d.Cases.Put)
	admin.GET("/voice/cache", d.Voice.CacheStats)
	admin.DELETE("/voice/cache", d.Voice.ClearCache)
	admin.POST("/voice/cache/prewarm", d.Voice.Prewarm)
}
