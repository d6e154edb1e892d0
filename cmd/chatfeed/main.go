package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/kicklab/kickchat/internal/archiver"
	"github.com/kicklab/kickchat/internal/config"
	"github.com/kicklab/kickchat/internal/database"
	"github.com/kicklab/kickchat/internal/kick"
	"github.com/kicklab/kickchat/internal/model"
	"github.com/kicklab/kickchat/internal/resolver"
	"github.com/kicklab/kickchat/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/chatfeed.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting chatfeed",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"channel", cfg.Channel.Name,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to the archive database when enabled
	var (
		pool *pgxpool.Pool
		arch *archiver.Archiver
	)
	if cfg.Archiver.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Postgres.Host,
			"port", cfg.Database.Postgres.Port,
			"database", cfg.Database.Postgres.Name,
		)

		pool, err = database.Connect(ctx, cfg.Database.Postgres)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		arch = archiver.New(archiver.Config{
			BatchSize:     cfg.Archiver.BatchSize,
			FlushInterval: cfg.Archiver.FlushInterval,
			BufferSize:    cfg.Archiver.BufferSize,
		}, pool, logger)

		if err := arch.Start(ctx); err != nil {
			logger.Error("failed to start archiver", "error", err)
			os.Exit(1)
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			arch.Stop(stopCtx)
		}()

		logger.Info("archiver started")
	}

	// Channel resolver
	res := resolver.NewHTTP(cfg.Resolver.BaseURL,
		resolver.WithLogger(logger),
		resolver.WithTimeout(cfg.Resolver.Timeout),
		resolver.WithRetries(cfg.Resolver.MaxRetries, time.Second),
		resolver.WithUserAgent(cfg.Resolver.UserAgent),
	)

	// Chat client
	clientCfg := kick.DefaultConfig()
	clientCfg.Channel = cfg.Channel.Name
	clientCfg.PlainEmote = cfg.Channel.PlainEmote
	clientCfg.WSURL = cfg.Pusher.WSURL
	if cfg.Pusher.Key != "" {
		clientCfg.PusherKey = cfg.Pusher.Key
	}
	if cfg.Pusher.Cluster != "" {
		clientCfg.PusherCluster = cfg.Pusher.Cluster
	}
	clientCfg.AutoReconnect = *cfg.Client.AutoReconnect
	clientCfg.MaxReconnectAttempts = cfg.Client.MaxReconnectAttempts
	clientCfg.ReconnectInterval = cfg.Client.ReconnectInterval
	clientCfg.MaxReconnectInterval = cfg.Client.MaxReconnectInterval
	clientCfg.HeartbeatInterval = cfg.Client.HeartbeatInterval
	clientCfg.OnStateChange = func(old, new kick.ConnectionState) {
		logger.Info("connection state changed", "from", old, "to", new)
	}
	clientCfg.OnError = func(e *kick.ClientError) {
		logger.Error("client error", "kind", e.Kind, "error", e)
	}

	client, err := kick.New(clientCfg, res, logger)
	if err != nil {
		logger.Error("failed to create client", "error", err)
		os.Exit(1)
	}

	client.On(kick.EventReady, func(payload any) {
		ch := payload.(*model.Channel)
		logger.Info("joined chatroom", "channel", ch.Name, "chatroom_id", ch.ChatroomID)
	})
	client.On(kick.EventChatMessage, func(payload any) {
		msg := payload.(*model.ChatMessage)
		logger.Debug("chat message",
			"username", msg.Sender.Username,
			"content", msg.Content,
		)
		if arch != nil {
			arch.Enqueue(msg)
		}
	})
	client.On(kick.EventUserBanned, func(payload any) {
		ban := payload.(*model.UserBanned)
		logger.Info("user banned", "username", ban.User.Username, "permanent", ban.Permanent)
	})

	// Health server
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: createHealthHandler(cfg.Health.Path, client, pool, arch),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting health server", "port", cfg.Health.Port, "path", cfg.Health.Path)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return healthServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		if err := client.Connect(gctx); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		logger.Info("chatfeed running",
			"instance_id", cfg.Instance.ID,
			"health_url", fmt.Sprintf("http://localhost:%d%s", cfg.Health.Port, cfg.Health.Path),
		)
		<-gctx.Done()
		client.Disconnect()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("chatfeed failed", "error", err)
		os.Exit(1)
	}

	logger.Info("chatfeed stopped")
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(path string, client *kick.Client, pool *pgxpool.Pool, arch *archiver.Archiver) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			State      string         `json:"state"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			State:      client.State().String(),
			Components: make(map[string]any),
		}

		// Check chat connection
		stats := client.Stats()
		conn := map[string]any{
			"connected":         client.IsConnected(),
			"frames_received":   stats.FramesReceived,
			"events_dispatched": stats.EventsDispatched,
			"decode_errors":     stats.DecodeErrors,
			"unknown_frames":    stats.UnknownFrames,
			"reconnects":        stats.Reconnects,
		}
		if ch, ok := client.Channel(); ok {
			conn["channel"] = ch.Name
			conn["chatroom_id"] = ch.ChatroomID
		}
		health.Components["chat"] = conn
		if !client.IsConnected() {
			health.Status = "degraded"
		}

		// Check database
		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["postgres"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["postgres"] = "connected"
			}
		}

		// Archiver counters
		if arch != nil {
			m := arch.Stats()
			health.Components["archiver"] = map[string]any{
				"inserts":   m.Inserts,
				"conflicts": m.Conflicts,
				"flushes":   m.Flushes,
				"errors":    m.Errors,
				"dropped":   m.Dropped,
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
