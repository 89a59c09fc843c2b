package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"contractapi/docs"
	"contractapi/internal/audit"
	"contractapi/internal/config"
	"contractapi/internal/credential"
	"contractapi/internal/database"
	handlers "contractapi/internal/http/handler"
	"contractapi/internal/http/middleware"
	"contractapi/internal/logger"
	"contractapi/internal/metrics"
	"contractapi/internal/otel"
	"contractapi/internal/pdf"
	"contractapi/internal/pipeline"
	"contractapi/internal/repository/postgres"
	"contractapi/internal/service"
	"contractapi/internal/storage"
	"contractapi/internal/verification"
)

// @title Contract API
// @version 1.0
// @BasePath /
func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, log)
	if err != nil {
		log.Fatal("tracing_init_failed", zap.Error(err))
	}

	db, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("database_init_failed", zap.Error(err))
	}
	defer db.Close()

	objStore, err := newStorage(cfg, log)
	if err != nil {
		log.Fatal("storage_init_failed", zap.Error(err))
	}

	verifyStore, err := newVerificationStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("verification_store_init_failed", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		log.Fatal("metrics_init_failed", zap.Error(err))
	}
	httpMetrics, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		log.Fatal("metrics_init_failed", zap.Error(err))
	}

	contractRepo := postgres.NewContractPostgres(db)
	templateRepo := postgres.NewTemplatePostgres(db)
	artifactRepo := postgres.NewArtifactPostgres(db)
	recorder := audit.NewRecorder(postgres.NewAuditPostgres(db), log, cfg.Contract.AsyncAudit)
	defer recorder.Wait()

	creds := credential.NewFileProvider(cfg.Signing)
	if !creds.Configured() {
		log.Warn("signing_credential_missing", zap.String("effect", "signed documents will carry no digital signature"))
	}

	artifactSvc := service.NewArtifactService(objStore, artifactRepo)
	assembler := pipeline.NewAssembler(newRenderer(cfg, log), artifactSvc, creds, pipeline.Options{
		Locale:               cfg.Contract.Locale,
		SignaturePlaceholder: cfg.Contract.SignaturePlaceholder,
		SignatureWidth:       cfg.Contract.SignatureWidth,
		FontPath:             cfg.Renderer.FontPath,
		Reason:               cfg.Signing.Reason,
		Location:             cfg.Signing.Location,
		ContactInfo:          cfg.Signing.ContactInfo,
	}, log)

	renderSettings := service.RenderSettings{
		Locale:               cfg.Contract.Locale,
		SignaturePlaceholder: cfg.Contract.SignaturePlaceholder,
	}
	contractSvc := service.NewContractService(contractRepo, templateRepo, recorder, m, renderSettings)
	signingSvc := service.NewSigningService(
		contractRepo,
		templateRepo,
		artifactSvc,
		verification.NewGate(contractRepo, verifyStore),
		assembler,
		recorder,
		m,
		log,
		service.SigningSettings{
			RenderSettings:  renderSettings,
			PipelineTimeout: cfg.Contract.PipelineTimeout,
			PresignExpiry:   cfg.Contract.PresignExpiry,
		},
	)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    20 * 1024 * 1024,
	})

	app.Use(otelfiber.Middleware())
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(log))
	app.Use(httpMetrics.Handler())

	handlers.RegisterRoutes(app, handlers.Deps{
		DB:        db,
		Contracts: contractSvc,
		Signing:   signingSvc,
		Artifacts: artifactSvc,
		Gatherer:  reg,
	})

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = cfg.AppHost
		if host := c.Get("Host"); host != "" {
			docs.SwaggerInfo.Host = host
		}
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	go func() {
		<-ctx.Done()
		log.Info("server_shutdown", zap.String("status", "starting"))
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("server_shutdown_failed", zap.Error(err))
		}
	}()

	addr := ":" + cfg.Port
	log.Info("server_starting", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := app.Listen(addr); err != nil {
		log.Error("server_failed", zap.Error(err))
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		log.Warn("tracing_shutdown_failed", zap.Error(err))
	}
}

// newStorage uses MinIO when an endpoint is configured and the in-process store otherwise.
func newStorage(cfg *config.AppConfig, log *zap.Logger) (storage.Storage, error) {
	if cfg.MinIO.Endpoint == "" {
		log.Warn("object_storage_in_memory", zap.String("reason", "MINIO_ENDPOINT not set"))
		return storage.NewMemory(), nil
	}
	return storage.NewMinIO(cfg.MinIO)
}

func newVerificationStore(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (verification.Store, error) {
	if cfg.Redis.URL == "" {
		log.Warn("verification_store_in_memory", zap.String("reason", "REDIS_URL not set"))
		return verification.NewMemoryStore(cfg.Redis.VerificationTTL), nil
	}
	client, err := verification.NewRedisClient(ctx, cfg.Redis.URL, cfg.Redis.Password)
	if err != nil {
		return nil, err
	}
	return verification.NewRedisStore(client, cfg.Redis.VerificationTTL), nil
}

func newRenderer(cfg *config.AppConfig, log *zap.Logger) pdf.MarkupRenderer {
	if cfg.Renderer.Engine == "fpdf" {
		log.Info("renderer_configured", zap.String("engine", "fpdf"))
		return pdf.NewFpdfRenderer(cfg.Renderer.FontPath)
	}
	log.Info("renderer_configured", zap.String("engine", "gotenberg"), zap.String("url", cfg.Renderer.GotenbergURL))
	return pdf.NewGotenbergRenderer(cfg.Renderer.GotenbergURL, cfg.Renderer.Timeout)
}
