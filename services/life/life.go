// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package life assembles the storyline lifecycle service for Solenne.
//
// This package contains the main service type that coordinates all
// components: HTTP routing, the storyline engine, persistence, the LLM
// generator, background schedulers, and observability infrastructure.
//
// # Usage
//
//	cfg := life.Config{Port: 8600, LLMBackend: "ollama"}
//	svc, err := life.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package life

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/solenne-ai/solenne/pkg/logging"
	"github.com/solenne-ai/solenne/pkg/telemetry"
	"github.com/solenne-ai/solenne/services/life/conversation"
	"github.com/solenne-ai/solenne/services/life/events"
	"github.com/solenne-ai/solenne/services/life/facts"
	"github.com/solenne-ai/solenne/services/life/persona"
	"github.com/solenne-ai/solenne/services/life/routes"
	"github.com/solenne-ai/solenne/services/life/storage/badger"
	"github.com/solenne-ai/solenne/services/life/storage/badgerstore"
	"github.com/solenne-ai/solenne/services/life/storyline"
	"github.com/solenne-ai/solenne/services/llm"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the life service.
//
// # Description
//
// Service abstracts the life service lifecycle, enabling testing and
// alternative implementations. Only essential lifecycle methods are
// exposed.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and should
// only be called once per instance.
//
// # Assumptions
//
//   - Service is fully initialized before Run() is called
//   - Run() is called at most once per Service instance
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	//
	// # Outputs
	//
	//   - error: Non-nil if the server fails to start or encounters a
	//     fatal error
	Run() error

	// Router returns the underlying Gin engine for testing.
	//
	// # Outputs
	//
	//   - *gin.Engine: The configured router with all routes registered
	//
	// # Limitations
	//
	//   - Should not be used to modify routes after construction
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds life service configuration options.
//
// # Description
//
// Config centralizes all configuration for the life service. Values can
// be populated from environment variables, config files, or
// programmatically for testing.
//
// # Required Fields
//
// None - all fields have sensible defaults.
//
// # Examples
//
//	// Minimal config (uses all defaults)
//	cfg := Config{}
//
//	// Custom port and LLM backend
//	cfg := Config{
//	    Port:       8600,
//	    LLMBackend: "openai",
//	}
type Config struct {
	// Port is the HTTP server port. Default: 8600
	Port int

	// LLMBackend specifies the LLM provider.
	// Valid values: "openai", "ollama", "claude", "anthropic"
	// Default: "ollama"
	LLMBackend string

	// DataDir is the directory for the Badger database files.
	// Default: "./data/life"
	DataDir string

	// ProfilePath is the persona profile markdown file. When set, the
	// file is hot-reloaded on change. If empty, the built-in profile
	// text is used.
	ProfilePath string

	// AuditLogPath is the hash-chained creation attempt log file.
	// If empty, file auditing is disabled; attempts are still persisted
	// in the store.
	AuditLogPath string

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "localhost:4317"
	OTelEndpoint string

	// TraceExporter selects the trace exporter: "otlp", "stdout", or
	// "none". If empty, the telemetry default applies.
	TraceExporter string

	// EnableMetrics enables the Prometheus metrics endpoint.
	EnableMetrics bool

	// GinMode sets the Gin framework mode.
	// Valid values: "debug", "release", "test"
	// Default: uses GIN_MODE env var or "debug"
	GinMode string

	// LogDir enables file logging to the given directory alongside
	// stderr. If empty, logs go to stderr only.
	LogDir string

	// LogLevel sets the minimum log level ("debug", "info", "warn",
	// "error"). Unrecognized values fall back to "info".
	LogLevel string

	// LogJSON switches stderr logging to JSON format.
	LogJSON bool

	// Engine carries storyline engine tunables. Zero-valued fields fall
	// back to the engine defaults (with their environment overrides).
	Engine storyline.Config

	// RateLimit bounds generation calls against the LLM backend.
	// Zero-valued fields fall back to the limiter defaults.
	RateLimit llm.RateLimitConfig
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// # Description
//
// service is the main implementation that coordinates:
//   - HTTP routing via Gin
//   - The storyline engine and its background schedulers
//   - Badger persistence (storylines, mood, facts, interactions)
//   - The LLM generator client with rate limiting
//   - The persona profile watcher
//   - OpenTelemetry tracing and Prometheus metrics
//
// # Thread Safety
//
// Thread-safe after construction. All fields are read-only after New()
// returns.
type service struct {
	config Config
	router *gin.Engine

	logger   *logging.Logger
	db       *badger.DB
	store    *badgerstore.Store
	mood     *persona.MoodStore
	facts    *facts.Store
	recorder *conversation.Recorder
	profile  *persona.Profile
	bus      *events.Bus

	llmClient llm.LLMClient
	engine    *storyline.Engine
	audit     *storyline.FileAttemptLogger

	passSched    *storyline.PassScheduler
	suggestSched *storyline.SuggestionScheduler

	metrics           *telemetry.Metrics
	moodGaugeReg      metric.Registration
	telemetryShutdown func(context.Context) error
	watchCancel       context.CancelFunc
}

// =============================================================================
// Constructor
// =============================================================================

// New creates a new life Service with the given configuration.
//
// # Description
//
// New initializes all service components:
//  1. Applies default configuration for missing values
//  2. Sets up structured logging
//  3. Initializes OpenTelemetry tracing and metrics
//  4. Opens the Badger database and its stores
//  5. Loads the persona profile and starts the hot-reload watcher
//  6. Creates the LLM client based on backend type, rate limited
//  7. Builds the storyline engine and starts both schedulers
//  8. Sets up HTTP routes
//
// # Inputs
//
//   - cfg: Service configuration. Zero values use defaults.
//
// # Outputs
//
//   - Service: Ready-to-run life service
//   - error: Non-nil if initialization fails
//
// # Limitations
//
//   - LLM client creation may fail if required provider environment
//     variables are missing
//
// # Assumptions
//
//   - DataDir is writable
//   - Network is available for external service connections
func New(cfg Config) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	s.initLogging()

	if err := s.initTelemetry(); err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	if err := s.initStores(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize stores: %w", err)
	}

	s.initPersona()

	s.bus = events.NewBus(events.Config{Metrics: s.metrics})

	if err := s.initLLMClient(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	s.initAuditLog()

	if err := s.initEngine(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize engine: %w", err)
	}

	if err := s.initSchedulers(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to start schedulers: %w", err)
	}

	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until shutdown or error.
//
// Cleanup of schedulers, watchers, stores, and telemetry is automatic on
// return.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("starting life service", "port", s.config.Port, "backend", s.config.LLMBackend)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 8600
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = "ollama"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data/life"
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "localhost:4317"
	}
	return cfg
}

// initLogging installs the layered slog setup as the process default.
func (s *service) initLogging() {
	s.logger = logging.New(logging.Config{
		Level:   logging.ParseLevel(s.config.LogLevel),
		LogDir:  s.config.LogDir,
		Service: "life",
		JSON:    s.config.LogJSON,
	})
	slog.SetDefault(s.logger.Slog())
}

// initTelemetry sets up tracing and, when enabled, the metrics
// instruments.
func (s *service) initTelemetry() error {
	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceName = "solenne-life"
	tcfg.OTLPEndpoint = s.config.OTelEndpoint
	if s.config.TraceExporter != "" {
		tcfg.TraceExporter = s.config.TraceExporter
	}
	if !s.config.EnableMetrics {
		tcfg.MetricExporter = "none"
	}

	shutdown, err := telemetry.Init(context.Background(), tcfg)
	if err != nil {
		return err
	}
	s.telemetryShutdown = shutdown

	if s.config.EnableMetrics {
		s.metrics, err = telemetry.NewMetrics(otel.Meter("solenne.life"))
		if err != nil {
			return fmt.Errorf("create metrics instruments: %w", err)
		}
		slog.Info("initialized metrics instruments")
	}

	return nil
}

// initStores opens the Badger database and the stores layered on it.
func (s *service) initStores() error {
	dbCfg := badger.DefaultConfig()
	dbCfg.Path = s.config.DataDir
	dbCfg.Logger = slog.Default()

	db, err := badger.Open(dbCfg)
	if err != nil {
		return fmt.Errorf("open database at %s: %w", s.config.DataDir, err)
	}
	s.db = db

	if s.store, err = badgerstore.New(db); err != nil {
		return err
	}
	if s.mood, err = persona.NewMoodStore(db); err != nil {
		return err
	}
	if s.facts, err = facts.New(db); err != nil {
		return err
	}
	if s.recorder, err = conversation.New(db); err != nil {
		return err
	}

	// The mood gauge needs the mood store, so it registers here rather
	// than in initTelemetry.
	if s.metrics != nil {
		reg, err := s.metrics.RegisterMoodGauge(otel.Meter("solenne.life"), func() float64 {
			value, _, err := s.mood.Current(context.Background())
			if err != nil {
				return 0
			}
			return value
		})
		if err != nil {
			slog.Warn("mood gauge registration failed", "error", err)
		} else {
			s.moodGaugeReg = reg
		}
	}

	slog.Info("opened storyline database", "path", s.config.DataDir)
	return nil
}

// initPersona loads the profile and starts the hot-reload watcher when a
// file path is configured.
func (s *service) initPersona() {
	s.profile = persona.NewProfile(s.config.ProfilePath, slog.Default())

	if s.config.ProfilePath == "" {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.watchCancel = cancel
	go func() {
		if err := s.profile.Watch(ctx); err != nil {
			slog.Warn("profile watcher exited", "error", err)
		}
	}()
}

// initLLMClient creates the generator client for the configured backend
// and wraps it with the rate limiter.
func (s *service) initLLMClient() error {
	var (
		inner llm.LLMClient
		err   error
	)

	switch s.config.LLMBackend {
	case "openai":
		inner, err = llm.NewOpenAIClient()
		slog.Info("using OpenAI LLM backend")
	case "ollama":
		inner, err = llm.NewOllamaClient()
		slog.Info("using Ollama LLM backend")
	case "claude", "anthropic":
		inner, err = llm.NewAnthropicClient()
		slog.Info("using Anthropic (Claude) LLM backend")
	default:
		slog.Warn("unknown LLM backend, defaulting to ollama", "backend", s.config.LLMBackend)
		inner, err = llm.NewOllamaClient()
	}
	if err != nil {
		return err
	}

	s.llmClient = llm.NewRateLimitedClient(inner, s.config.RateLimit)
	return nil
}

// initAuditLog opens the hash-chained attempt log. Failure is not fatal;
// the store still records every attempt.
func (s *service) initAuditLog() {
	if s.config.AuditLogPath == "" {
		return
	}

	audit, err := storyline.NewFileAttemptLogger(s.config.AuditLogPath)
	if err != nil {
		slog.Warn("failed to open creation attempt log, continuing without it",
			"log_path", s.config.AuditLogPath,
			"error", err)
		return
	}
	s.audit = audit
	slog.Info("creation attempt log open", "log_path", s.config.AuditLogPath)
}

// initEngine builds the storyline engine from the initialized
// collaborators.
func (s *service) initEngine() error {
	deps := storyline.Deps{
		Store:   s.store,
		LLM:     s.llmClient,
		History: s.recorder,
		Facts:   s.facts,
		Mood:    s.mood,
		Events:  s.bus,
		Profile: s.profile,
		Metrics: s.metrics,
	}
	if s.audit != nil {
		deps.Audit = s.audit
	}

	engine, err := storyline.NewEngine(deps, s.config.Engine)
	if err != nil {
		return err
	}
	s.engine = engine
	return nil
}

// initSchedulers starts the daily phase pass and the idle suggestion
// loop. The first pass runs immediately, which catches up any days
// missed while the host was down.
func (s *service) initSchedulers() error {
	ctx := context.Background()

	s.passSched = storyline.NewPassScheduler(s.engine)
	if err := s.passSched.Start(ctx); err != nil {
		return err
	}

	s.suggestSched = storyline.NewSuggestionScheduler(s.engine)
	s.suggestSched.Start(ctx)

	return nil
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}

	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("life-service"))

	routes.SetupRoutes(s.router, routes.Deps{
		Engine:                s.engine,
		Mood:                  s.mood,
		Facts:                 s.facts,
		Recorder:              s.recorder,
		Bus:                   s.bus,
		Metrics:               s.metrics,
		EnableMetricsEndpoint: s.config.EnableMetrics,
	})
}

// cleanup releases all resources held by the service.
//
// Called when Run() exits or on initialization failure, so every step
// tolerates the fields later steps never reached.
func (s *service) cleanup() {
	if s.passSched != nil {
		s.passSched.Stop()
	}
	if s.suggestSched != nil {
		s.suggestSched.Stop()
	}

	if s.watchCancel != nil {
		s.watchCancel()
	}

	if s.bus != nil {
		s.bus.Close()
	}

	if s.audit != nil {
		if err := s.audit.Close(); err != nil {
			slog.Warn("attempt log close error", "error", err)
		}
	}

	if s.moodGaugeReg != nil {
		if err := s.moodGaugeReg.Unregister(); err != nil {
			slog.Warn("mood gauge unregister error", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			slog.Warn("database close error", "error", err)
		}
	}

	if s.telemetryShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.telemetryShutdown(ctx); err != nil {
			slog.Warn("telemetry shutdown error", "error", err)
		}
	}

	if s.logger != nil {
		if err := s.logger.Close(); err != nil {
			slog.Warn("logger close error", "error", err)
		}
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
