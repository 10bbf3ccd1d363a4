package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"NewsletterDigest/internal/domain"
	"NewsletterDigest/internal/usecase"
)

const (
	msgWentWrong  = "something went wrong"
	msgNoArticles = "no articles found"
	listPreview   = 160
)

// Server exposes stored articles over HTTP.
type Server struct {
	query  *usecase.Query
	logger *slog.Logger
}

func NewServer(query *usecase.Query, logger *slog.Logger) *Server {
	return &Server{query: query, logger: logger}
}

// SetupRouter registers the query routes.
func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/articles", s.ListArticles)
	r.GET("/memo", s.Memo)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.info("query api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

type listRequest struct {
	Days     int    `form:"days,default=7"`
	All      int    `form:"all"`
	Criteria string `form:"criteria"`
	Page     int    `form:"page,default=1"`
}

type articleView struct {
	ID          int64              `json:"id"`
	Title       string             `json:"title"`
	URL         string             `json:"url"`
	Description string             `json:"description"`
	Source      string             `json:"source,omitempty"`
	Received    time.Time          `json:"received"`
	Criteria    []domain.Criterion `json:"criteria"`
}

// ListArticles handles GET /articles?days=&all=&criteria=&page=.
func (s *Server) ListArticles(c *gin.Context) {
	var req listRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		return
	}
	if req.All != 0 && req.All != 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "The 'all' parameter must be either 0 or 1."})
		return
	}

	page, err := s.query.List(c.Request.Context(), usecase.ListRequest{
		Days:     req.Days,
		All:      req.All == 1,
		Criteria: req.Criteria,
		Page:     req.Page,
	})
	if s.writeError(c, err) {
		return
	}
	if page.Total == 0 {
		c.JSON(http.StatusOK, gin.H{"message": msgNoArticles})
		return
	}

	views := make([]articleView, 0, len(page.Articles))
	for _, a := range page.Articles {
		views = append(views, articleView{
			ID:          a.ID,
			Title:       a.Title,
			URL:         a.URL,
			Description: preview(a.Description),
			Source:      a.SourceDomain,
			Received:    a.EmailTime,
			Criteria:    a.Criteria,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"days":     req.Days,
		"page":     page.Page,
		"pages":    page.Pages,
		"total":    page.Total,
		"articles": views,
	})
}

// Memo handles GET /memo?criteria=&days=.
func (s *Server) Memo(c *gin.Context) {
	var req struct {
		Criteria string `form:"criteria"`
		Days     int    `form:"days"`
	}
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		return
	}

	memo, err := s.query.Memo(c.Request.Context(), req.Criteria, req.Days)
	if s.writeError(c, err) {
		return
	}
	if memo == "" {
		c.JSON(http.StatusOK, gin.H{"message": msgNoArticles})
		return
	}
	c.JSON(http.StatusOK, gin.H{"criteria": req.Criteria, "memo": memo})
}

// writeError maps use-case errors to responses; raw errors are only logged.
func (s *Server) writeError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	var invalid *usecase.InvalidCriteriaError
	switch {
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": invalid.Error()})
	case errors.Is(err, usecase.ErrInvalidDays):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please provide a valid number of days (greater than 0)."})
	default:
		if s.logger != nil {
			s.logger.Error("query failed", "path", c.FullPath(), "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgWentWrong})
	}
	return true
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if s.logger != nil {
			s.logger.Debug("http request",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"status", c.Writer.Status(),
				"took", time.Since(start).String())
		}
	}
}

func (s *Server) info(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func preview(description string) string {
	if utf8.RuneCountInString(description) <= listPreview {
		return description
	}
	return string([]rune(description)[:listPreview]) + "..."
}
