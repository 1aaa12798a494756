package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/crabclaw-go/crabclaw/internal/agentloop"
	"github.com/crabclaw-go/crabclaw/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// serveMetrics tracks request volume and latency for the bus adapter.
type serveMetrics struct {
	messages       *prometheus.CounterVec
	requestSeconds *prometheus.HistogramVec
}

func newServeMetrics() *serveMetrics {
	return &serveMetrics{
		messages: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "crabclaw_bus_messages_total",
			Help: "Messages handled by the bus adapter, by direction.",
		}, []string{"direction"}),
		requestSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crabclaw_bus_request_duration_seconds",
			Help:    "Time to route one bus message through the agent loop.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"status"}),
	}
}

// busRequest is one inbound bus message: a (session_id, content,
// metadata) triple, delivered as a JSON POST body.
type busRequest struct {
	SessionID string            `json:"session_id"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata"`
}

type busReply struct {
	Reply string `json:"reply"`
}

// loopCache keeps one agentloop.Loop alive per session so a bus adapter's
// scheduled jobs and successive messages share tape state.
type loopCache struct {
	mu        sync.Mutex
	cfg       config.Config
	workspace string
	loops     map[string]*agentloop.Loop
	stop      chan struct{}
}

func newLoopCache(cfg config.Config, workspace string) *loopCache {
	return &loopCache{cfg: cfg, workspace: workspace, loops: map[string]*agentloop.Loop{}, stop: make(chan struct{})}
}

func (c *loopCache) get(sessionID string) (*agentloop.Loop, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.loops[sessionID]; ok {
		return l, nil
	}
	notifier := func(message string) {
		slog.Info("serve: out-of-band delivery (no bus push channel wired)", "session_id", sessionID, "message", message)
	}
	l, err := agentloop.Open(c.cfg, c.workspace, sessionID, notifier, nil)
	if err != nil {
		return nil, err
	}
	if err := l.StartSkillWatcher(c.stop); err != nil {
		slog.Warn("skills: watcher disabled", "session_id", sessionID, "error", err)
	}
	c.loops[sessionID] = l
	return l, nil
}

func buildServeCmd(flags *flagSet) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the HTTP bus adapter surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace, err := os.Getwd()
			if err != nil {
				return err
			}
			cfg := config.Resolve(overridesFrom(flags), workspace)
			return runServe(cmd.Context(), cfg, workspace, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8089", "listen address")
	return cmd
}

func runServe(ctx context.Context, cfg config.Config, workspace, addr string) error {
	metrics := newServeMetrics()
	cache := newLoopCache(cfg, workspace)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/v1/message", busMessageHandler(cfg, cache, metrics))

	server := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("serve: listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
	case err := <-errCh:
		close(cache.stop)
		return err
	}
	close(cache.stop)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// busMessageHandler authenticates the shared bus token (if configured),
// checks the allow-list, and routes the message through that session's
// agent loop.
func busMessageHandler(cfg config.Config, cache *loopCache, metrics *serveMetrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		status := "ok"
		defer func() {
			metrics.requestSeconds.WithLabelValues(status).Observe(time.Since(start).Seconds())
		}()

		if cfg.BusToken != "" && r.Header.Get("Authorization") != "Bearer "+cfg.BusToken {
			status = "unauthorized"
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req busRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			status = "bad_request"
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.SessionID == "" {
			status = "bad_request"
			http.Error(w, "session_id is required", http.StatusBadRequest)
			return
		}
		if !allowed(cfg.BusAllowList, req.SessionID) {
			status = "forbidden"
			http.Error(w, "session not on the allow-list", http.StatusForbidden)
			return
		}

		metrics.messages.WithLabelValues("inbound").Inc()

		loop, err := cache.get(req.SessionID)
		if err != nil {
			status = "error"
			http.Error(w, fmt.Sprintf("opening session: %v", err), http.StatusInternalServerError)
			return
		}

		result := loop.HandleInput(r.Context(), req.Content)
		if result.Err != nil {
			status = "error"
			http.Error(w, result.Err.Error(), http.StatusBadGateway)
			return
		}

		reply := result.AssistantOutput
		if reply == "" {
			reply = result.ImmediateOutput
		}
		metrics.messages.WithLabelValues("outbound").Inc()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(busReply{Reply: reply})
	}
}

func allowed(list []string, sessionID string) bool {
	if len(list) == 0 {
		return true
	}
	for _, s := range list {
		if s == sessionID {
			return true
		}
	}
	return false
}
