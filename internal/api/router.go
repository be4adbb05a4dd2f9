// api/router.go
package api

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"adminka/internal/dashboard"
)

// Options of a Server. Sources and Queries are used by reloads.
type Options struct {
	Sources dashboard.Sources
	Queries dashboard.QueriesFunc
	Driver  string
	Log     *zap.Logger
}

// Server serves the current dashboard; reloads swap it atomically.
type Server struct {
	current atomic.Pointer[dashboard.Dashboard]
	opts    Options
	reload  sync.Mutex
	log     *zap.Logger
}

func NewServer(d *dashboard.Dashboard, opts Options) *Server {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Driver == "" {
		opts.Driver = "memory"
	}
	s := &Server{opts: opts, log: opts.Log}
	s.current.Store(d)
	return s
}

func (s *Server) Dashboard() *dashboard.Dashboard { return s.current.Load() }

func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.log))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/meta", MetaListHandler(s))
		apiGroup.GET("/meta/:module/:entity", MetaEntityHandler(s))
		apiGroup.GET("/catalogs/:name", MetaCatalogHandler(s))

		adm := apiGroup.Group("/admin", ActorMiddleware(s))
		// статические маршруты раньше параметрических
		adm.GET("/menu", SidebarHandler())
		adm.GET("/menu/:group", GroupMenuHandler())
		adm.POST("/_reload", AdminReloadHandler(s))

		adm.GET("/:code/filters", FiltersHandler())
		adm.GET("/:code/list", ListHandler(s.opts.Driver))
		adm.POST("/:code/records", CreateRecordHandler())
	}
	return r
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Error("request", fields...)
			return
		}
		log.Debug("request", fields...)
	}
}
