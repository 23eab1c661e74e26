// Package server exposes a classifier over HTTP.
//
// Routes:
//   - GET  /healthz       liveness
//   - GET  /v1/model      model description
//   - POST /v1/classify   {"texts": [...]} or {"ids": [[...]]}
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/born-ml/textcls/internal/pipeline"
	"github.com/born-ml/textcls/internal/textcls"
)

// MaxBatch caps the rows of one classify request.
const MaxBatch = 256

// requestIDKey is the gin context key of the request id.
const requestIDKey = "request_id"

// ClassifyRequest is the body of POST /v1/classify. Exactly one field is set.
type ClassifyRequest struct {
	Texts []string  `json:"texts,omitempty"`
	IDs   [][]int32 `json:"ids,omitempty"`
}

// ClassifyResponse is the reply of POST /v1/classify.
type ClassifyResponse struct {
	ID      string            `json:"id"`
	Model   string            `json:"model"`
	Results []pipeline.Result `json:"results"`
}

// Server serves one classifier.
type Server struct {
	svc pipeline.Service
}

// New returns a server for svc.
func New(svc pipeline.Service) *Server {
	return &Server{svc: svc}
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/v1/model", s.ModelHandler)
	r.POST("/v1/classify", s.ClassifyHandler)
	return r
}

// ModelHandler handles GET /v1/model.
func (s *Server) ModelHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.Info())
}

// ClassifyHandler handles POST /v1/classify.
func (s *Server) ClassifyHandler(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); errors.Is(err, io.EOF) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing request body"})
		return
	} else if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var (
		results []pipeline.Result
		err     error
	)
	switch {
	case len(req.Texts) > 0 && len(req.IDs) > 0:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "texts and ids are exclusive"})
		return
	case len(req.Texts) > MaxBatch || len(req.IDs) > MaxBatch:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "batch too large"})
		return
	case len(req.Texts) > 0:
		results, err = s.svc.ClassifyTexts(req.Texts)
	case len(req.IDs) > 0:
		results, err = s.svc.ClassifyIDs(req.IDs)
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "texts or ids is required"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, ClassifyResponse{
		ID:      c.GetString(requestIDKey),
		Model:   s.svc.Info().Name,
		Results: results,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, textcls.ErrTokenRange),
		errors.Is(err, textcls.ErrInputShape),
		errors.Is(err, textcls.ErrInputRank),
		errors.Is(err, pipeline.ErrNoEncoder),
		errors.Is(err, pipeline.ErrNoInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// requestLogger tags every request with an id and logs it on completion.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)

		start := time.Now()
		c.Next()
		slog.Debug("request",
			"id", id,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

// Serve runs the server on ln until ctx is cancelled.
func Serve(ctx context.Context, ln net.Listener, svc pipeline.Service) error {
	srv := &http.Server{
		Handler:           New(svc).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	slog.Info("listening", "addr", ln.Addr().String(), "model", svc.Info().Name)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
