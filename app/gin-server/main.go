package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yoockh/oscesim/config"
	"github.com/yoockh/oscesim/internal/api/handlers"
	"github.com/yoockh/oscesim/internal/api/middleware"
	"github.com/yoockh/oscesim/internal/api/routes"
	"github.com/yoockh/oscesim/internal/cache"
	"github.com/yoockh/oscesim/internal/dispatcher"
	"github.com/yoockh/oscesim/internal/engine"
	"github.com/yoockh/oscesim/internal/intent"
	"github.com/yoockh/oscesim/internal/logger"
	"github.com/yoockh/oscesim/internal/providers/llm"
	"github.com/yoockh/oscesim/internal/providers/stt"
	"github.com/yoockh/oscesim/internal/providers/tts"
	mongorepo "github.com/yoockh/oscesim/internal/repositories/mongo"
	pgrepo "github.com/yoockh/oscesim/internal/repositories/postgres"
	"github.com/yoockh/oscesim/internal/services"
	"github.com/yoockh/oscesim/internal/storage"
	"github.com/yoockh/oscesim/internal/tags"
	"github.com/yoockh/oscesim/internal/voice"
	"github.com/yoockh/oscesim/internal/workers"
)

func main() {
	_ = godotenv.Load()
	log := logger.New()

	cfg, err := config.LoadApp()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// MongoDB holds cases and live sessions; nothing works without it.
	if err := config.InitMongo(); err != nil {
		log.WithError(err).Fatal("mongodb init failed")
	}
	if err := config.EnsureMongoIndexes(cfg.MongoDB); err != nil {
		log.WithError(err).Warn("mongodb index setup failed")
	}
	db := config.MongoClient.Database(cfg.MongoDB)
	log.WithField("db", cfg.MongoDB).Info("mongodb connected")

	var shared cache.Cache
	if err := config.InitRedis(); err != nil {
		log.WithError(err).Warn("redis unavailable, running without shared caches or transcript archive")
	} else {
		shared = cache.NewRedisCache(config.RedisClient, "oscesim:")
		log.Info("redis connected")
	}

	var transcripts services.TranscriptService
	if err := config.InitPostgres(); err != nil {
		log.WithError(err).Warn("postgres unavailable, transcript archive disabled")
	} else if err := config.MigratePostgres(); err != nil {
		log.WithError(err).Warn("postgres migration failed, transcript archive disabled")
	} else {
		transcripts = services.NewTranscriptService(pgrepo.NewTranscriptRepo(config.PostgresDB))
		log.Info("postgres connected")
	}

	var publisher services.TranscriptPublisher
	if config.RedisClient != nil && transcripts != nil {
		publisher = &workers.RedisStreamPublisher{Redis: config.RedisClient, MaxLen: cfg.TranscriptStreamLen}
	}

	var (
		patient    llm.Provider
		classifier intent.Classifier
	)
	gemini, err := llm.NewVertexGemini(ctx, cfg.VertexProject, cfg.VertexLocation, cfg.VertexModel)
	if err != nil {
		log.WithError(err).Warn("vertex unavailable, generated replies fall back to fixed lines")
	} else {
		defer gemini.Close()
		patient = gemini
		if cfg.UseLLMClassifier {
			classifier = llm.NewVertexClassifier(gemini)
		}
	}

	var speech stt.Provider
	if gs, err := stt.NewGoogleSpeech(ctx, cfg.SpeechEncoding, int32(cfg.SpeechSampleRateHz)); err != nil {
		log.WithError(err).Warn("speech recognition unavailable, audio utterances disabled")
	} else {
		defer gs.Close()
		speech = gs
	}

	var archive services.ArchiveService
	if cfg.GCSBucket != "" {
		up, err := storage.NewGCSUploader(ctx, cfg.GCSBucket)
		if err != nil {
			log.WithError(err).Warn("gcs unavailable, audio archive disabled")
		} else {
			defer up.Close()
			archive = services.NewArchiveService(mongorepo.NewChunkRepo(db), up, up, cfg.AudioTTL, log)
		}
	}

	catalog := voice.DefaultCatalog()
	synthCache := cache.NewSynthesisCache(cfg.CacheMaxEntries,
		cache.WithShared(shared, cfg.CacheSharedTTL),
		cache.WithLogger(log),
	)
	synth := tts.NewChatterbox(tts.ChatterboxConfig{
		Endpoint:      cfg.TTSEndpoint,
		APIKey:        cfg.TTSAPIKey,
		RatePerSecond: cfg.TTSRate,
		Burst:         cfg.TTSBurst,
		Timeout:       cfg.TTSTimeout,
	}, log)
	speaker := dispatcher.NewSpeaker(catalog, tags.New(nil), synthCache, synth, log)

	cases := services.NewCaseService(mongorepo.NewCaseRepo(db), shared, services.CaseServiceConfig{SharedTTL: cfg.CaseCacheTTL}, log)
	sessions := services.NewSessionService(mongorepo.NewSessionRepo(db), publisher, log)

	eng := engine.New(engine.Deps{
		Cases:    cases,
		Sessions: sessions,
		Resolver: intent.NewResolver(classifier, cfg.ClassifierTimeout, log),
		Catalog:  catalog,
		Patient:  patient,
		Logger:   log,
	}, engine.Config{
		DefaultMode:       engine.ParseMode(cfg.DefaultMode, engine.ModeGated),
		HistoryTurns:      cfg.HistoryTurns,
		GenerationTimeout: cfg.GenerationTimeout,
	})
	disp := dispatcher.New(eng, speaker, archive, dispatcher.Config{ChunkSize: cfg.ChunkSize}, log)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	routes.RegisterRoutes(r, routes.Deps{
		JWT:       middleware.JWTConfig{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, Audience: cfg.JWTAudience},
		Encounter: handlers.NewEncounterHandler(eng, transcripts, archive),
		Cases:     handlers.NewCaseHandler(cases),
		Voice:     handlers.NewVoiceHandler(catalog, synthCache, speaker, log),
		WS:        handlers.NewWSHandler(disp, speech, cfg.SpeechLanguage, cfg.AllowedOrigins, log),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", srv.Addr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if publisher != nil {
		host, _ := os.Hostname()
		pool := &workers.TranscriptWorkerPool{
			Redis:          config.RedisClient,
			Transcripts:    transcripts,
			NumWorkers:     cfg.TranscriptWorkers,
			Logger:         log,
			ConsumerPrefix: host,
			ReclaimIdle:    cfg.ReclaimIdle,
		}
		if cfg.EmbedTranscripts {
			emb, err := llm.NewVertexEmbedder(ctx, cfg.VertexProject, cfg.VertexLocation, cfg.EmbeddingModel)
			if err != nil {
				log.WithError(err).Warn("vertex embeddings unavailable, transcripts archived without vectors")
			} else {
				defer emb.Close()
				pool.Embedder = emb
			}
		}
		g.Go(func() error { return pool.Start(gctx) })
	}
	if cfg.Prewarm {
		g.Go(func() error {
			n := speaker.Prewarm(gctx)
			log.WithFields(logrus.Fields{"warmed": n, "stats": synthCache.Stats()}).Info("voices prewarmed")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("server stopped with error")
	}

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := config.Shutdown(sctx); err != nil {
		log.WithError(err).Warn("datastore shutdown")
	}
	log.Info("bye")
}
