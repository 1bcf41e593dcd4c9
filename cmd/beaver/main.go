// Package main is the entry point for the Beaver server.
// One binary runs the whole backend: HTTP API, WebSocket gateway,
// agent orchestration, and sandbox management share a single process
// and event bus.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/beaverai/beaver/internal/agent"
	agenthandlers "github.com/beaverai/beaver/internal/agent/handlers"
	"github.com/beaverai/beaver/internal/ai"
	"github.com/beaverai/beaver/internal/common/config"
	"github.com/beaverai/beaver/internal/common/httpmw"
	"github.com/beaverai/beaver/internal/common/logger"
	"github.com/beaverai/beaver/internal/common/tracing"
	"github.com/beaverai/beaver/internal/db"
	"github.com/beaverai/beaver/internal/events"
	gateway "github.com/beaverai/beaver/internal/gateway/websocket"
	projecthandlers "github.com/beaverai/beaver/internal/project/handlers"
	"github.com/beaverai/beaver/internal/project/repository"
	projectservice "github.com/beaverai/beaver/internal/project/service"
	"github.com/beaverai/beaver/internal/sandbox"
	sandboxhandlers "github.com/beaverai/beaver/internal/sandbox/handlers"
	ws "github.com/beaverai/beaver/pkg/websocket"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize logger
	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetDefault(log)

	log.Info("Starting Beaver server...")

	// 3. Root context cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. Initialize event bus (in-memory by default, NATS if configured)
	eventBus, busCleanup, err := events.Provide(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize event bus", zap.Error(err))
	}
	defer func() {
		if err := busCleanup(); err != nil {
			log.Error("Event bus shutdown error", zap.Error(err))
		}
	}()
	log.Info("Event bus initialized", zap.Bool("nats", cfg.NATS.URL != ""))

	// ============================================
	// PROJECT SERVICE
	// ============================================
	log.Info("Initializing Project Service...")

	pool, err := db.Open(cfg.Database)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err),
			zap.String("driver", cfg.Database.Driver))
	}
	defer pool.Close()

	projectRepo, err := repository.NewSQLRepository(pool.Writer(), pool.Reader())
	if err != nil {
		log.Fatal("Failed to initialize project repository", zap.Error(err))
	}
	log.Info("Database initialized",
		zap.String("driver", cfg.Database.Driver),
		zap.String("path", cfg.Database.Path))

	projectSvc := projectservice.NewService(projectRepo, eventBus, log)

	// ============================================
	// AI PROVIDERS
	// ============================================
	gemini := ai.NewGeminiClient(cfg.AI, log)
	openRouter := ai.NewOpenRouterClient(cfg.AI, log)
	aiSvc := ai.NewService(gemini, openRouter)
	log.Info("AI providers configured",
		zap.Bool("gemini", gemini.Configured()),
		zap.Bool("openrouter", openRouter.Configured()))

	// ============================================
	// SANDBOX MANAGER
	// ============================================
	provider, cleanup, err := buildSandboxProvider(ctx, cfg.Sandbox, log)
	if err != nil {
		log.Warn("Sandbox provider unavailable, falling back to mock",
			zap.String("provider", cfg.Sandbox.Provider),
			zap.Error(err))
		provider = sandbox.NewMockProvider(log)
	}
	if cleanup != nil {
		defer cleanup()
	}
	sandboxMgr := sandbox.NewManager(provider, eventBus, cfg.Sandbox.RequestTimeoutDuration(), log)
	log.Info("Sandbox manager initialized", zap.String("provider", provider.Name()))

	// ============================================
	// AGENT ORCHESTRATION
	// ============================================
	log.Info("Initializing agents...")

	profiles, err := agent.LoadProfiles(cfg.Agents.ProfilesPath)
	if err != nil {
		log.Fatal("Failed to load agent profiles", zap.Error(err),
			zap.String("path", cfg.Agents.ProfilesPath))
	}
	specialists := agent.BuildSpecialists(profiles, aiSvc, log)

	classifier := agent.NewKeywordClassifier()
	planner := agent.NewPlannerAgent(classifier, log)
	mainAgent := agent.NewMainAgent(classifier, sandboxMgr, specialists,
		eventBus, cfg.Agents.TaskTimeoutDuration(), log)
	orchestrator := agent.NewOrchestrator(planner, mainAgent, specialists, eventBus, log)

	log.Info("Agents initialized", zap.Int("specialists", len(specialists)))

	// ============================================
	// WEBSOCKET GATEWAY
	// ============================================
	dispatcher := ws.NewDispatcher()
	gateway.RegisterHealthHandler(dispatcher)
	gateway.RegisterAgentHandlers(dispatcher, orchestrator)

	hub := gateway.NewHub(dispatcher, log)
	notifications := gateway.NewNotifications(eventBus, hub, log)
	defer notifications.Close()

	wsHandler := gateway.NewHandler(hub, log)

	// ============================================
	// HTTP SERVER
	// ============================================
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpmw.RequestLogger(log, "beaver"))
	router.Use(httpmw.CORS(cfg.Server.CORSOrigins))
	router.Use(httpmw.OtelTracing("beaver"))

	router.GET("/ws", wsHandler.HandleConnection)

	apiV1 := router.Group("/api/v1")
	projecthandlers.NewProjectHandlers(projectSvc, log).RegisterRoutes(apiV1)
	agentAPI := agenthandlers.NewAgentHandlers(orchestrator, projectSvc, log)
	agentAPI.SetImageAnalyzer(aiSvc)
	agentAPI.RegisterRoutes(apiV1)
	sandboxhandlers.NewSandboxHandlers(sandboxMgr, projectSvc, log).RegisterRoutes(apiV1)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"service":   "beaver",
			"event_bus": eventBus.IsConnected(),
		})
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	// ============================================
	// RUN + GRACEFUL SHUTDOWN
	// ============================================
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		log.Info("Server listening",
			zap.String("addr", server.Addr),
			zap.String("websocket", "/ws"),
			zap.String("api", "/api/v1"))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down Beaver...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := tracing.Shutdown(shutdownCtx); err != nil {
		log.Error("Tracing shutdown error", zap.Error(err))
	}

	log.Info("Beaver stopped")
}

// buildSandboxProvider selects the sandbox backend from configuration.
// The returned cleanup func is non-nil when the provider holds resources
// that need explicit teardown.
func buildSandboxProvider(ctx context.Context, cfg config.SandboxConfig, log *logger.Logger) (sandbox.Provider, func(), error) {
	switch cfg.Provider {
	case "e2b":
		if cfg.E2BAPIKey == "" {
			return nil, nil, fmt.Errorf("e2b provider selected but no API key configured")
		}
		return sandbox.NewE2BProvider(cfg, log), nil, nil
	case "docker":
		p, err := sandbox.NewDockerProvider(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return p, func() { _ = p.Close() }, nil
	case "mock", "":
		return sandbox.NewMockProvider(log), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown sandbox provider: %s", cfg.Provider)
	}
}
