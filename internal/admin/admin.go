// Package admin serves the operator HTTP API: list and inspect sessions,
// kick players.
package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Versifine/warden/internal/logger"
	"github.com/Versifine/warden/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Controller is the part of the server the API drives.
type Controller interface {
	Sessions(ctx context.Context) ([]server.SessionInfo, error)
	Session(ctx context.Context, target string) (server.SessionInfo, error)
	Kick(ctx context.Context, target, message string) error
}

const requestTimeout = 2 * time.Second

type API struct {
	ctrl   Controller
	log    zerolog.Logger
	router *gin.Engine
}

func New(ctrl Controller, debug bool) *API {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	a := &API{ctrl: ctrl, log: logger.Component("admin")}
	a.router = a.buildRouter()
	return a
}

func (a *API) Handler() http.Handler { return a.router }

func (a *API) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(a.requestLogger())

	router.GET("/healthz", a.handleHealth)
	sessions := router.Group("/sessions")
	{
		sessions.GET("", a.handleListSessions)
		sessions.GET("/:id", a.handleGetSession)
		sessions.POST("/:id/kick", a.handleKick)
	}
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})
	return router
}

func (a *API) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		a.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("admin request")
	}
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *API) handleListSessions(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()
	sessions, err := a.ctrl.Sessions(ctx)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

func (a *API) handleGetSession(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()
	info, err := a.ctrl.Session(ctx, c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

type kickRequest struct {
	Reason string `json:"reason"`
}

func (a *API) handleKick(c *gin.Context) {
	var req kickRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
			return
		}
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()
	target := c.Param("id")
	if err := a.ctrl.Kick(ctx, target, req.Reason); err != nil {
		a.fail(c, err)
		return
	}
	a.log.Info().Str("target", target).Str("reason", req.Reason).Msg("session kicked")
	c.JSON(http.StatusOK, gin.H{"kicked": target})
}

func (a *API) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, server.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server did not answer in time"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// Serve runs the API on addr until ctx is cancelled.
func (a *API) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	a.log.Info().Str("addr", addr).Msg("admin API starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin API: %w", err)
	}
	return nil
}
