// Package server orchestrates all components: project registry, NATS client, pipeline, HTTP and websocket surfaces.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	comms "github.com/nats-io/nats.go"
	"golang.org/x/time/rate"

	"github.com/relaymesh/gateway/internal/config"
	"github.com/relaymesh/gateway/pkg/api"
	commsutil "github.com/relaymesh/gateway/pkg/comms"
	"github.com/relaymesh/gateway/pkg/db"
	"github.com/relaymesh/gateway/pkg/engine"
	"github.com/relaymesh/gateway/pkg/project"
	"github.com/relaymesh/gateway/pkg/ws"
)

const logPrefix = "server:server"

const (
	apiPrefix        = "/api/"
	connectionPrefix = "/connection/"
)

// Server is the gateway orchestrator.
type Server struct {
	cfg        *config.Config
	nc         *comms.Conn
	pool       *pgxpool.Pool
	httpServer *http.Server
}

// Run starts the gateway, blocks until shutdown signal, then cleans up.
func Run() error {
	// Setup structured logging
	var logLevel slog.Level
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info(fmt.Sprintf("%s - Starting gateway", logPrefix))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &Server{cfg: cfg}

	// Step 1: Set up the project registry
	var projects project.Registry
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
		}
		s.pool = pool

		if cfg.RunMigrations {
			migrationSQL, err := db.LoadMigrationFiles(cfg.MigrationPath)
			if err != nil {
				pool.Close()
				return fmt.Errorf("%s - failed to load migrations: %w", logPrefix, err)
			}
			if err := db.RunMigrations(ctx, pool, migrationSQL); err != nil {
				pool.Close()
				return fmt.Errorf("%s - failed to run migrations: %w", logPrefix, err)
			}
		}

		projects = db.NewProjectRepository(pool)
		slog.Info(fmt.Sprintf("%s - Project registry backed by database", logPrefix))
	} else {
		static, err := project.LoadFile(cfg.ProjectsFile)
		if err != nil {
			return fmt.Errorf("%s - failed to load projects file: %w", logPrefix, err)
		}
		reg := project.NewStaticRegistry(static)
		projects = reg
		slog.Info(fmt.Sprintf("%s - Project registry loaded from %s (%d projects)", logPrefix, cfg.ProjectsFile, reg.Len()))
	}

	// Step 2: Connect to NATS
	nc, err := commsutil.Connect(cfg.NATSURL, cfg.NATSName)
	if err != nil {
		s.close()
		return fmt.Errorf("%s - failed to connect to NATS: %w", logPrefix, err)
	}
	s.nc = nc
	slog.Info(fmt.Sprintf("%s - Connected to NATS at %s", logPrefix, cfg.NATSURL))

	// Step 3: Build the command pipeline
	pipeline, err := api.NewPipeline(api.PipelineParams{
		Projects:  projects,
		Processor: engine.NewCommsProcessor(nc),
	})
	if err != nil {
		s.close()
		return fmt.Errorf("%s - failed to build pipeline: %w", logPrefix, err)
	}

	// Step 4: Subscribe to signed commands over NATS
	commandSubject := cfg.CommandSubject
	if commandSubject == "" {
		commandSubject = commsutil.SubjectCommand
	}
	sub, err := nc.Subscribe(commandSubject, api.CommandMsgHandler(ctx, pipeline, cfg.RequestTimeout))
	if err != nil {
		s.close()
		return fmt.Errorf("%s - failed to subscribe to %s: %w", logPrefix, commandSubject, err)
	}
	slog.Info(fmt.Sprintf("%s - Subscribed to %s", logPrefix, commandSubject))

	// Step 5: Start the HTTP server (command API + websocket endpoint)
	mux := http.NewServeMux()
	mux.Handle(apiPrefix, api.NewHTTPHandler(pipeline, apiPrefix, cfg.RequestTimeout))
	mux.Handle(connectionPrefix, ws.NewHandler(ws.HandlerParams{
		Pipeline:     pipeline,
		Projects:     projects,
		Prefix:       connectionPrefix,
		Heartbeat:    cfg.HeartbeatInterval,
		MessageRate:  rate.Limit(cfg.MessageRate),
		MessageBurst: cfg.MessageBurst,
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]any{"status": "healthy", "nats": nc.IsConnected()}
		if s.pool != nil {
			status["database"] = s.pool.Ping(r.Context()) == nil
		}
		w.Header().Set("Content-Type", "application/json")
		if !nc.IsConnected() {
			status["status"] = "unhealthy"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(status)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})

	s.httpServer = &http.Server{Addr: cfg.HTTPAddr, Handler: mux}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP server listening on %s", logPrefix, cfg.HTTPAddr))
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()

	slog.Info(fmt.Sprintf("%s - Gateway is ready", logPrefix))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	// Graceful shutdown
	sub.Unsubscribe()
	s.httpServer.Shutdown(ctx)
	nc.Drain()
	if s.pool != nil {
		s.pool.Close()
	}

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}

func (s *Server) close() {
	if s.nc != nil {
		s.nc.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}
