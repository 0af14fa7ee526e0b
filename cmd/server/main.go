package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Brownie44l1/leafcare-api/internal/advisory"
	"github.com/Brownie44l1/leafcare-api/internal/config"
	"github.com/Brownie44l1/leafcare-api/internal/handlers"
	"github.com/Brownie44l1/leafcare-api/internal/labels"
	"github.com/Brownie44l1/leafcare-api/internal/logging"
	"github.com/Brownie44l1/leafcare-api/internal/metrics"
	"github.com/Brownie44l1/leafcare-api/internal/middleware"
	"github.com/Brownie44l1/leafcare-api/internal/model"
	"github.com/Brownie44l1/leafcare-api/internal/pipeline"
	"github.com/Brownie44l1/leafcare-api/internal/preprocess"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Server.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync(log)

	if err := run(cfg, log); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	log.Info("starting leafcare server",
		zap.String("version", Version),
		zap.String("git_commit", GitCommit),
		zap.String("mode", cfg.Server.Mode))

	table, err := advisory.New()
	if err != nil {
		return err
	}
	classes := labels.All()
	if missing := table.Missing(classes); len(missing) > 0 {
		log.Warn("labels without care guidance",
			zap.Any("labels", missing),
			zap.Any("unmatched_entries", table.Orphans(classes)))
	}

	interp, err := preprocess.ParseInterpolation(cfg.Preprocess.Interpolation)
	if err != nil {
		return err
	}
	pre := preprocess.New(cfg.Preprocess.ImageSize, interp, cfg.Preprocess.MaxPixels)

	modelPath := resolvePath(cfg.Model.Path)
	loader := model.NewLoader(model.Options{
		Path:           modelPath,
		LibraryPath:    cfg.Model.LibraryPath,
		InputName:      cfg.Model.InputName,
		OutputName:     cfg.Model.OutputName,
		ImageSize:      cfg.Preprocess.ImageSize,
		Classes:        len(classes),
		IntraOpThreads: cfg.Model.IntraOpThreads,
	}, log)
	defer func() {
		if err := loader.Close(); err != nil {
			log.Warn("failed to release model", zap.Error(err))
		}
	}()

	if cfg.Model.Preload {
		if _, err := loader.Get(); err != nil {
			return err
		}
	} else if _, err := os.Stat(modelPath); err != nil {
		log.Warn("model artifact not found, predictions will fail until it exists",
			zap.String("path", modelPath))
	}

	m := metrics.New()
	svc := pipeline.New(loader, pre, table, m, log)
	handler := handlers.NewHandler(svc, cfg.Upload, log)

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.MaxMultipartMemory = cfg.Upload.MaxSize
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS())

	handler.Register(r)
	r.GET("/metrics", gin.WrapH(m.Handler()))

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("addr", cfg.Server.Port),
			zap.String("model", modelPath),
			zap.Int("classes", len(classes)))
		log.Info("endpoints",
			zap.Strings("routes", []string{
				"GET /health", "GET /ready", "GET /labels", "GET /metrics",
				"POST /predict", "POST /predict/image",
			}))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// resolvePath anchors a relative path at the project root, which is two
// levels up when started from cmd/server.
func resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	wd, err := os.Getwd()
	if err != nil {
		return p
	}
	if filepath.Base(wd) == "server" {
		wd = filepath.Join(wd, "../..")
	}
	return filepath.Join(wd, p)
}
