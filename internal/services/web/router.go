// Package web assembles the HTTP surface: server-rendered pages on gin, the
// /v1 JSON API on the gateway mux, and the ops endpoints.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/NordCoder/CropSense/internal/obs"
	"github.com/NordCoder/CropSense/internal/services/web/auth"
	"github.com/NordCoder/CropSense/internal/services/web/diagnosis"
	"github.com/NordCoder/CropSense/internal/services/web/ui"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type Deps struct {
	Auth      *auth.Usecase
	Diagnosis *diagnosis.Usecase
	Cookie    auth.CookieConfig

	MaxUpload     int64
	UploadsDir    string
	UploadsPrefix string
	CORSOrigins   []string

	Health func(context.Context) error
	Log    *zap.Logger
}

// NewHandler returns the root handler for the web process.
func NewHandler(d Deps) (http.Handler, error) {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	engine, err := newEngine(d)
	if err != nil {
		return nil, err
	}

	root := http.NewServeMux()
	obs.RegisterOps(root, d.Health)
	root.Handle("/", engine)
	return otelhttp.NewHandler(root, "http.server",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	), nil
}

func newEngine(d Deps) (*gin.Engine, error) {
	tmpl, err := ui.Templates()
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(d.Log))
	if len(d.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     d.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	r.SetHTMLTemplate(tmpl)

	gw := runtime.NewServeMux()
	if err := auth.NewAPI(d.Auth, d.Log).Register(gw); err != nil {
		return nil, err
	}
	if err := diagnosis.NewAPI(d.Diagnosis, d.Auth, d.MaxUpload, d.Log).Register(gw); err != nil {
		return nil, err
	}
	r.Any("/v1/*path", gin.WrapH(gw))

	if d.UploadsDir != "" {
		prefix := d.UploadsPrefix
		if prefix == "" {
			prefix = "/static/uploads"
		}
		r.Static(prefix, d.UploadsDir)
	}

	authH := auth.NewHandler(d.Auth, d.Cookie, d.Log)
	pages := r.Group("/", authH.Session())
	pages.GET("/", page("index.html", "CropSense"))
	pages.GET("/crops", page("crops.html", "Crops"))
	pages.GET("/about", page("about.html", "About"))
	authH.RegisterRoutes(pages)
	diagnosis.NewHandler(d.Diagnosis, d.MaxUpload, d.Log).RegisterRoutes(pages, auth.RequireUser())

	r.NoRoute(func(c *gin.Context) { c.String(http.StatusNotFound, "404 page not found") })
	return r, nil
}

func page(name, title string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ui.Render(c, http.StatusOK, name, gin.H{"Title": title})
	}
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/healthz" {
			return
		}
		obs.WithTrace(c.Request.Context(), log).Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
