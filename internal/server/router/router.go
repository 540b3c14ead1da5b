package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/zzkydev/Convertify-PDF/internal/metrics"
	"github.com/zzkydev/Convertify-PDF/internal/operation"
	"github.com/zzkydev/Convertify-PDF/internal/server/middleware"
)

// ConvertHandler defines the interface for the conversion handler.
type ConvertHandler interface {
	Handle(op operation.Descriptor) gin.HandlerFunc
}

// Options configures the engine.
type Options struct {
	APIKey      string
	CORSOrigins []string
	Logger      zerolog.Logger
	Recorder    metrics.Recorder
	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler
}

// New wires up handlers to the Gin engine.
func New(opts Options, h ConvertHandler) *gin.Engine {
	if opts.Recorder == nil {
		opts.Recorder = metrics.Noop{}
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(opts.Logger), middleware.Metrics(opts.Recorder))
	if len(opts.CORSOrigins) > 0 {
		r.Use(middleware.CORS(opts.CORSOrigins))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	if opts.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(opts.MetricsHandler))
	}

	api := r.Group("/api")
	api.Use(middleware.WithAPIKey(opts.APIKey))
	for _, op := range operation.All() {
		api.POST(op.Route, h.Handle(op))
	}

	return r
}
