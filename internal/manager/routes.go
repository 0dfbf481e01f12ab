package manager

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Routes builds the read-only status API. It reports manager state;
// all control flows through the message socket.
func (m *Manager) Routes() *gin.Engine {
	registerMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	cc := cors.DefaultConfig()
	if len(m.cfg.Manager.CorsOrigins) > 0 {
		cc.AllowOrigins = m.cfg.Manager.CorsOrigins
	} else {
		cc.AllowAllOrigins = true
	}
	r.Use(cors.New(cc))

	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, m.Status())
	})
	r.GET("/checklist", func(c *gin.Context) {
		c.JSON(http.StatusOK, m.checklist.Snapshot())
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/pipeline", func(c *gin.Context) {
		dot, err := m.graph.DOT()
		if err != nil {
			c.String(http.StatusInternalServerError, err.Error())
			return
		}
		c.String(http.StatusOK, dot)
	})
	return r
}

// ServeStatus runs the status API until ctx is cancelled. A blank
// status address disables the API.
func (m *Manager) ServeStatus(ctx context.Context) error {
	addr := m.cfg.Manager.StatusAddr
	if addr == "" {
		<-ctx.Done()
		return nil
	}
	srv := &http.Server{Addr: addr, Handler: m.Routes()}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info().Str("addr", addr).Msg("status API listening")

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
