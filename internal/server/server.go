package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/zzkydev/Convertify-PDF/internal/config"
	"github.com/zzkydev/Convertify-PDF/internal/engine"
	"github.com/zzkydev/Convertify-PDF/internal/metrics"
	"github.com/zzkydev/Convertify-PDF/internal/operation"
	"github.com/zzkydev/Convertify-PDF/internal/server/handler"
	"github.com/zzkydev/Convertify-PDF/internal/server/router"
	"github.com/zzkydev/Convertify-PDF/internal/server/service"
	"github.com/zzkydev/Convertify-PDF/internal/workspace"
)

// Adapters builds the engine of every operation from cfg.
func Adapters(cfg config.EnginesConfig) map[operation.Kind]engine.Adapter {
	return map[operation.Kind]engine.Adapter{
		operation.PDFToDOCX: engine.NewDOCX(engine.Command{
			Binary:  cfg.DOCX.Binary,
			Args:    cfg.DOCX.Args,
			Timeout: cfg.DOCX.Timeout,
		}),
		operation.OCR: engine.NewOCR(engine.Command{
			Binary:  cfg.OCR.Binary,
			Args:    cfg.OCR.Args,
			Timeout: cfg.OCR.Timeout,
		}),
		operation.Merge:       engine.NewMerger(),
		operation.ImagesToPDF: engine.NewImagePacker(),
		operation.PDFToPNG:    engine.NewRasterizer(cfg.Raster.Timeout),
	}
}

// EngineStatus reports whether an operation's engine is usable.
type EngineStatus struct {
	Operation string `json:"operation"`
	Engine    string `json:"engine"`
	Path      string `json:"path,omitempty"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
}

// Check inspects every adapter. External engines are looked up on PATH;
// in-process engines are always available.
func Check(adapters map[operation.Kind]engine.Adapter) []EngineStatus {
	report := make([]EngineStatus, 0, len(adapters))
	for kind, a := range adapters {
		status := EngineStatus{Operation: string(kind), Engine: "builtin", OK: true}
		if ea, ok := a.(*engine.ExecAdapter); ok {
			status.Engine = ea.Command.Binary
			if err := ea.Preflight(); err != nil {
				status.OK = false
				status.Error = err.Error()
			} else if path, err := engine.ResolveBinary(ea.Command.Binary); err == nil {
				status.Path = path
			}
		}
		report = append(report, status)
	}
	sort.Slice(report, func(i, j int) bool { return report[i].Operation < report[j].Operation })
	return report
}

// Preflight fails when any external engine is missing.
func Preflight(adapters map[operation.Kind]engine.Adapter) error {
	var errs []error
	for _, status := range Check(adapters) {
		if !status.OK {
			errs = append(errs, fmt.Errorf("%s: %s", status.Operation, status.Error))
		}
	}
	return errors.Join(errs...)
}

// Server is the conversion gateway.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	workspaces *workspace.Manager
	handler    http.Handler
}

// New builds the dependency chain. adapters are used as given; pass
// Adapters(cfg.Engines) in production.
func New(cfg *config.Config, logger zerolog.Logger, fs afero.Fs, adapters map[operation.Kind]engine.Adapter) (*Server, error) {
	if cfg.Server.Mode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	var (
		recorder       metrics.Recorder = metrics.Noop{}
		metricsHandler http.Handler
	)
	if cfg.Metrics.Enabled {
		prom := metrics.NewProm(cfg.Metrics.Namespace)
		recorder = prom
		metricsHandler = prom.Handler()
	}

	workspaces, err := workspace.NewManager(fs, cfg.Storage.UploadDir,
		workspace.WithLogger(logger),
		workspace.WithCleanupHook(func(string, error) { recorder.IncCleanupFailure() }),
	)
	if err != nil {
		return nil, err
	}

	dispatcher := service.NewDispatcher(workspaces, adapters,
		service.WithLogger(logger),
		service.WithRecorder(recorder),
	)
	convertHandler := handler.NewConvertHandler(dispatcher, cfg.Server.MaxBodyBytes, logger)

	r := router.New(router.Options{
		APIKey:         cfg.Server.APIKey,
		CORSOrigins:    cfg.Server.CORSOrigins,
		Logger:         logger,
		Recorder:       recorder,
		MetricsHandler: metricsHandler,
	}, convertHandler)

	return &Server{
		cfg:        cfg,
		logger:     logger,
		workspaces: workspaces,
		handler:    r,
	}, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve accepts connections on ln until ctx is cancelled, then drains
// in-flight requests for up to the graceful shutdown period.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().
			Str("addr", ln.Addr().String()).
			Str("upload_dir", s.workspaces.Root()).
			Msg("listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.GracefulShutdown)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run starts the HTTP server.
func Run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	adapters := Adapters(cfg.Engines)
	if cfg.Engines.SkipPreflight {
		logger.Warn().Msg("engine preflight skipped")
	} else if err := Preflight(adapters); err != nil {
		return err
	}

	s, err := New(cfg, logger, afero.NewOsFs(), adapters)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}
