package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	apihttp "galleryrip/internal/api/http"
	"galleryrip/internal/app"
	"galleryrip/internal/events"
	"galleryrip/internal/forum"
	"galleryrip/internal/host"
	"galleryrip/internal/metrics"
	"galleryrip/internal/repository/cached"
	mongorepo "galleryrip/internal/repository/mongo"
	"galleryrip/internal/services/download"
	"galleryrip/internal/telemetry"
	"galleryrip/internal/usecase"

	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	_ = godotenv.Load()

	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "galleryrip")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "galleryrip"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.String("downloadDir", cfg.DownloadDir),
		slog.Int64("bandwidthLimitBytes", cfg.BandwidthLimit),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
	defer cancel()

	mongoClient, err := mongorepo.Connect(ctx, cfg.MongoURI, options.Client().SetMonitor(otelmongo.NewMonitor()))
	if err != nil {
		logger.Error("mongo connect failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := mongoClient.Ping(ctx, readpref.Primary()); err != nil {
		logger.Error("mongo ping failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	repo := mongorepo.NewRepository(mongoClient, cfg.MongoDatabase)
	if err := repo.EnsureIndexes(ctx); err != nil {
		logger.Warn("mongo ensure indexes failed", slog.String("error", err.Error()))
	}
	store := cached.NewStore(repo)
	settingsRepo := mongorepo.NewDownloadSettingsRepository(mongoClient, cfg.MongoDatabase)

	var service *download.Service
	settings := app.NewSettingsManager(settingsRepo, func() {
		if service != nil {
			service.Signal()
		}
	})
	if err := settings.Load(ctx); err != nil {
		logger.Warn("download settings load failed", slog.String("error", err.Error()))
	}

	registry := host.NewRegistry(host.DefaultResolvers()...)
	httpClient := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	fetcher := host.NewFetcher(host.FetcherConfig{
		Client:         httpClient,
		TempDir:        cfg.TempDir,
		BytesPerSecond: cfg.BandwidthLimit,
		Logger:         logger,
	})
	bus := events.NewBus(logger)
	notifier := forum.NewNotifier(httpClient, cfg.ForumBaseURL, logger)

	serviceCfg := download.Config{
		Store:    store,
		Registry: registry,
		Fetcher:  fetcher,
		Events:   bus,
		Settings: settings,
		Logger:   logger,
	}
	if notifier != nil {
		serviceCfg.Notifier = notifier
	}
	service = download.NewService(serviceCfg)

	restoreUC := usecase.RestoreState{Store: store, Control: service, Logger: logger}
	if err := restoreUC.Execute(ctx); err != nil {
		logger.Warn("restore state failed", slog.String("error", err.Error()))
	}
	service.Init()

	addUC := usecase.AddPost{
		Store:       store,
		Registry:    registry,
		Events:      bus,
		Queue:       service,
		DownloadDir: cfg.DownloadDir,
		Logger:      logger,
	}
	listUC := usecase.ListPosts{Store: store}
	imagesUC := usecase.GetPostImages{Store: store}
	deleteUC := usecase.DeletePosts{Store: store, Events: bus, Control: service}
	clearUC := usecase.ClearFinished{Store: store, Events: bus}

	handler := apihttp.NewServer(addUC,
		apihttp.WithLogger(logger),
		apihttp.WithListPosts(listUC),
		apihttp.WithGetPostImages(imagesUC),
		apihttp.WithDeletePosts(deleteUC),
		apihttp.WithClearFinished(clearUC),
		apihttp.WithDownloadController(service),
		apihttp.WithSettings(settings),
		apihttp.WithEvents(bus),
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(rootCtx)
	group.Go(func() error {
		logger.Info("server started", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		service.Stop(shutdownCtx, nil)
		service.Halt()
		handler.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		logger.Error("http server error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := mongoClient.Disconnect(context.Background()); err != nil {
		logger.Warn("mongo disconnect error", slog.String("error", err.Error()))
	}
	logger.Info("server stopped")
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
