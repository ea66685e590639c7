package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"stressvision/internal/classifier"
	"stressvision/internal/pipeline"
	"stressvision/internal/raster"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const requestIDHeader = "X-Request-ID"

// Analyzer runs a scene through the stress pipeline
type Analyzer interface {
	Analyze(ctx context.Context, bands raster.Bands) (*pipeline.Result, error)
}

// Server represents the HTTP server
type Server struct {
	analyzer     Analyzer
	maxBodyBytes int64
	router       *gin.Engine
}

// NewServer creates a new HTTP server
func NewServer(analyzer Analyzer, maxBodyBytes int64) *Server {
	s := &Server{
		analyzer:     analyzer,
		maxBodyBytes: maxBodyBytes,
		router:       gin.New(),
	}

	s.router.Use(gin.Recovery())
	s.router.Use(requestID())
	s.router.Use(accessLog())

	s.router.GET("/health", s.handleHealth)
	s.router.POST("/analyze", s.handleAnalyze)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return s
}

// Handler exposes the router for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until ctx is cancelled, then drains in-flight requests
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	log.Info().Msg("Shutting down HTTP server")
	return srv.Shutdown(shutdownCtx)
}

// handleHealth returns the server health status
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "stressvision",
		"time":    time.Now().UTC().String(),
	})
}

// handleAnalyze runs the full stress analysis for one band set
func (s *Server) handleAnalyze(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBodyBytes)

	var req BandsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	bands, err := req.Bands()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := s.analyzer.Analyze(c.Request.Context(), bands)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Str("request_id", c.GetString(requestIDHeader)).Msg("Analysis failed")
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	resp, err := newAnalyzeResponse(c.GetString(requestIDHeader), res)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode analysis images")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// statusFor maps pipeline errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, raster.ErrShapeMismatch):
		return http.StatusBadRequest
	case errors.Is(err, classifier.ErrModelNotFound),
		errors.Is(err, classifier.ErrCorruptModel),
		errors.Is(err, classifier.ErrFeatureMismatch),
		errors.Is(err, pipeline.ErrPoolClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// requestID tags every request with an ID, reusing the caller's when present
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", c.GetString(requestIDHeader)).
			Msg("[access]")
	}
}
