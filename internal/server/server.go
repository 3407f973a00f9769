// Package server exposes a running tuner engine over HTTP: a websocket
// event stream, JSON snapshots, configuration edits and Prometheus
// metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/cwbudde/algo-tuner/tuner"
	"github.com/cwbudde/algo-tuner/tuner/config"
)

// Engine is the part of tuner.Engine the server depends on.
type Engine interface {
	Latest() (tuner.Result, bool)
	LatestSpectrum() (tuner.Spectrum, bool)
	Config() config.Config
	Reconfigure(config.Config) error
	State() tuner.State
}

// Server routes HTTP requests to an engine.
type Server struct {
	engine Engine
	events *Broadcaster
	log    zerolog.Logger
	router *gin.Engine

	// configMu serializes read-modify-write edits of the engine config.
	configMu sync.Mutex
}

// New builds the router. events may be nil when no websocket stream is
// wanted.
func New(engine Engine, events *Broadcaster, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine: engine,
		events: events,
		log:    logger.With().Str("component", "http").Logger(),
		router: gin.New(),
	}

	s.router.Use(gin.Recovery(), s.accessLog())

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/result", s.handleResult)
	api.GET("/spectrum", s.handleSpectrum)
	api.GET("/config", s.handleGetConfig)
	api.PUT("/config", s.handleSetConfig)
	api.GET("/config/fields", s.handleFields)

	if events != nil {
		s.router.GET("/ws", s.handleWebsocket)
	}

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		s.log.Info().Str("addr", addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}

	return nil
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		status := c.Writer.Status()
		httpRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()

		s.log.Debug().
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) handleStatus(c *gin.Context) {
	res, ok := s.engine.Latest()

	body := gin.H{
		"state":       s.engine.State().String(),
		"has_result":  ok,
		"subscribers": 0,
	}

	if ok {
		body["sequence"] = res.Sequence
	}

	if s.events != nil {
		body["subscribers"] = s.events.Len()
	}

	c.JSON(http.StatusOK, body)
}

func (s *Server) handleResult(c *gin.Context) {
	res, ok := s.engine.Latest()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no result yet"})
		return
	}

	c.JSON(http.StatusOK, res)
}

func (s *Server) handleSpectrum(c *gin.Context) {
	spec, ok := s.engine.LatestSpectrum()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no spectrum yet"})
		return
	}

	c.JSON(http.StatusOK, spec)
}

func (s *Server) handleGetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Config())
}

type fieldInfo struct {
	Key   string `json:"key"`
	Kind  string `json:"kind"`
	Unit  string `json:"unit,omitempty"`
	Usage string `json:"usage"`
	Value string `json:"value"`
}

func (s *Server) handleFields(c *gin.Context) {
	cfg := s.engine.Config()
	fields := config.Fields()

	out := make([]fieldInfo, 0, len(fields))
	for _, f := range fields {
		out = append(out, fieldInfo{
			Key:   f.Key,
			Kind:  f.Kind.String(),
			Unit:  f.Unit,
			Usage: f.Usage,
			Value: f.Get(cfg),
		})
	}

	c.JSON(http.StatusOK, out)
}

// handleSetConfig applies a JSON object of schema keys to string values,
// e.g. {"FFT_SIZE": "1024"}. The whole request is rejected if any key or
// value is invalid.
func (s *Server) handleSetConfig(c *gin.Context) {
	var body map[string]string
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.configMu.Lock()
	defer s.configMu.Unlock()

	cfg := s.engine.Config()

	var warnings []string

	for key, value := range body {
		f, ok := config.Lookup(key)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown key %q", key)})
			return
		}

		if f.Deprecated() {
			warnings = append(warnings, fmt.Sprintf("deprecated option %s, use %s", f.Key, f.AliasOf))
		}

		if err := f.Set(&cfg, value); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	_, corrections := cfg.Normalize()
	for _, corr := range corrections {
		warnings = append(warnings, corr.String())
	}

	if err := s.engine.Reconfigure(cfg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	applied := s.engine.Config()

	if s.events != nil {
		s.events.Broadcast(Event{Type: EventConfig, Data: applied})
	}

	c.JSON(http.StatusOK, gin.H{"config": applied, "warnings": warnings})
}

func (s *Server) handleWebsocket(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket accept failed")
		return
	}

	id := uuid.NewString()
	withSpectrum := c.Query("spectrum") == "1" || c.Query("spectrum") == "true"

	// Clients only listen; CloseRead ends ctx when the peer disconnects.
	ctx := conn.CloseRead(c.Request.Context())

	s.events.Subscribe(ctx, id, conn, withSpectrum)
	defer s.events.Unsubscribe(id)

	if res, ok := s.engine.Latest(); ok {
		s.events.sendInitialState(id, Event{Type: EventTuningResult, Data: res})
	}

	<-ctx.Done()

	conn.Close(websocket.StatusNormalClosure, "")
}
