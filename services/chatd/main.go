package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/helpchat/internal/api"
	"github.com/helpchat/internal/attach"
	"github.com/helpchat/internal/channel"
	"github.com/helpchat/internal/chat"
	"github.com/helpchat/internal/config"
	"github.com/helpchat/internal/handler"
	"github.com/helpchat/internal/logger"
	"github.com/helpchat/internal/middleware"
	"github.com/helpchat/internal/model"
	"github.com/helpchat/internal/startup"
	"github.com/helpchat/internal/suggest"
)

func main() {
	logger.SetPrefix("chatd")
	logger.Info("starting chat gateway")
	cfg := config.Load()

	backend := api.NewClient(cfg.BackendURL, cfg.BackendToken)
	generator := api.NewGenerator(cfg.GenerateURL, cfg.GenerateAPIKey)

	suggester := suggest.NewEngine(generator)
	if cfg.Engine.SuggestTimeoutSec > 0 {
		suggester.Timeout = time.Duration(cfg.Engine.SuggestTimeoutSec) * time.Second
	}
	if cfg.Engine.SuggestBackoffMs > 0 {
		suggester.Backoff = time.Duration(cfg.Engine.SuggestBackoffMs) * time.Millisecond
	}

	var factory channel.Factory
	if cfg.RedisURL != "" {
		rdb := startup.ConnectRedisWithRetry(cfg.RedisURL, 60*time.Second)
		defer rdb.Close()
		factory = channel.NewRedisFactory(rdb)
		logger.Info("realtime channel: redis pub/sub")
	} else {
		factory = channel.NewWebSocketFactory(cfg.RealtimeURL)
		logger.Infof("realtime channel: websocket %s", cfg.RealtimeURL)
	}

	previewDir := cfg.Engine.PreviewDir
	if previewDir == "" {
		previewDir = os.TempDir() + "/helpchat-previews"
	}
	previews, err := attach.NewTempDirAllocator(previewDir)
	if err != nil {
		logger.Errorf("preview dir %s: %v", previewDir, err)
		os.Exit(1)
	}

	eng := chat.New(chat.Options{
		API:           backend,
		Channel:       factory,
		Suggester:     suggester,
		Previews:      previews,
		Actor:         chat.Actor{ID: cfg.Actor.ID, Name: cfg.Actor.Name, Role: model.Role(cfg.Actor.Role)},
		Surface:       chat.SurfaceByName(cfg.Surface),
		Language:      cfg.Engine.Language,
		DebounceDelay: time.Duration(cfg.Engine.DebounceMs) * time.Millisecond,
		TypingTTL:     time.Duration(cfg.Engine.TypingTTLSec) * time.Second,
	})
	defer eng.Close()

	engH := handler.NewEngineHandler(eng)
	streamH := handler.NewStreamHandler(eng, cfg.CORSAllowedOrigins)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RecoverJSON)
	// Do not compress WebSocket traffic; a compressing ResponseWriter
	// loses http.Hijacker and the upgrade fails with a 500.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, req)
				return
			}
			chimw.Compress(5)(next).ServeHTTP(w, req)
		})
	})
	r.Use(middleware.RequestLog)
	r.Use(middleware.RateLimitAPI)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSAllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); w.Write([]byte("ok")) })
	r.Get("/api/conversations", engH.GetConversations)
	r.Post("/api/select", engH.SelectConversation)
	r.Get("/api/messages", engH.GetMessages)
	r.Post("/api/send", engH.Send)
	r.Post("/api/join", engH.Join)
	r.With(middleware.RateLimitSuggest).Post("/api/suggestions", engH.Suggestions)
	r.Post("/api/typing", engH.Typing)
	r.Get("/api/attachments", engH.GetAttachments)
	r.Post("/api/attachments", engH.StageAttachments)
	r.Delete("/api/attachments", engH.ClearAttachments)
	r.Delete("/api/attachments/{id}", engH.RemoveAttachment)
	r.Get("/ws", streamH.ServeWS)

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	// Load the directory once at startup so the first dashboard fetch
	// is warm. Failures surface as an engine notice, not a crash.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := eng.Refresh(ctx); err != nil {
			logger.Errorf("initial refresh: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	srvWg.Wait()
	logger.Info("server goroutine exited")
}
