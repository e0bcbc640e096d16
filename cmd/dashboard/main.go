package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/apex/log"
	jsonhandler "github.com/apex/log/handlers/json"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"openvote/dashboard/internal/apperr"
	"openvote/dashboard/internal/config"
	"openvote/dashboard/internal/dashboard"
	"openvote/dashboard/internal/metrics"
	"openvote/dashboard/internal/remote"
	"openvote/dashboard/internal/session"
)

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	log.SetHandler(jsonhandler.New(os.Stderr))
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	if envErr != nil {
		log.Debug("no .env file, using the process environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A fresh tab per process, so a restart never restores the previous
	// session.
	tabID := uuid.NewString()

	var storage session.Storage
	var redisStorage *session.RedisStorage
	switch strings.ToLower(cfg.SessionBackend) {
	case "redis":
		var err error
		redisStorage, err = session.NewRedisStorage(cfg.RedisURL, tabID)
		if err != nil {
			log.WithError(err).Fatal("redis connection failed")
		}
		storage = redisStorage
		log.WithField("tab", tabID).Info("using redis for session storage")
	default:
		storage = session.NewMemoryStorage()
		log.WithField("tab", tabID).Info("using process memory for session storage")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	client := remote.New(cfg.APIURL, cfg.HTTPTimeout, nil)
	engine := dashboard.New(cfg, dashboard.Deps{
		Backend: client,
		Storage: storage,
		Metrics: metrics.New(reg),
	})
	client.SetTokenSource(engine.Token)

	sess, err := engine.Open(ctx)
	if errors.Is(err, apperr.ErrNoSession) {
		if cfg.Username == "" {
			log.Fatal("no stored session and OPENVOTE_USERNAME is empty")
		}
		sess, err = engine.Login(ctx, cfg.Username, cfg.Password)
	}
	if err != nil {
		log.WithError(err).Fatal("could not open the dashboard")
	}
	log.WithFields(log.Fields{
		"user": sess.Username,
		"role": sess.Role.Label(),
		"api":  cfg.APIURL,
	}).Info("dashboard open")

	server := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           routes(engine, reg),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		log.WithField("addr", cfg.MetricsAddr).Info("status listener up")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("status listener failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown error")
	}
	engine.Close()

	if redisStorage != nil {
		if err := redisStorage.Purge(shutdownCtx); err != nil {
			log.WithError(err).Warn("purge tab session")
		}
		if err := redisStorage.Close(); err != nil {
			log.WithError(err).Warn("close redis")
		}
	}
}

func routes(engine *dashboard.Dashboard, reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		sess, ok := engine.Session(req.Context())
		status := http.StatusOK
		body := map[string]any{
			"session":   ok,
			"countdown": engine.Countdown(),
			"reports":   len(engine.Reports()),
			"filter":    string(engine.ActiveFilter()),
		}
		if ok {
			body["role"] = sess.Role
			body["expires_at"] = sess.ExpiresAt
		} else {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, body)
	})
	r.Get("/layer", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, engine.Layer())
	})
	r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
		view, err := engine.Stats(req.Context())
		if err != nil {
			writeJSON(w, http.StatusForbidden, dashboard.NoticeFor(err))
			return
		}
		writeJSON(w, http.StatusOK, view)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("encode response")
	}
}
