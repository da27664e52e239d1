package api

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"content_sync/internal/domain"
	"content_sync/internal/service"
)

const apiKeyHeader = "X-API-Key"

// Reader serves published content. service.Router implements it.
type Reader interface {
	ListPublished(ctx context.Context, f domain.ListFilter) []domain.Content
	GetPublishedByID(ctx context.Context, id string) (domain.Content, bool)
}

// Admin is the editorial surface. service.AdminService implements it.
type Admin interface {
	Create(ctx context.Context, c domain.Content) (domain.Content, error)
	Update(ctx context.Context, id string, patch domain.ContentPatch) (domain.Content, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (domain.Content, error)
	List(ctx context.Context, q domain.Query) ([]domain.Content, error)
	Taxonomy(ctx context.Context) (*service.Taxonomy, error)
	TriggerFullSync(ctx context.Context, force bool) (*domain.SyncResult, error)
	TriggerQuickSync(ctx context.Context, id string) error
	Invalidate(id string)
}

// Freshness reports and refreshes cache staleness. service.Invalidator
// implements it.
type Freshness interface {
	State() string
	CheckExpiry()
}

// SyncStatus exposes the last full sync. service.SyncService implements it.
type SyncStatus interface {
	LastResult() *domain.SyncResult
}

type Options struct {
	AdminAPIKey string
	Logger      *slog.Logger
}

// NewServer builds the gin engine with every route mounted.
func NewServer(handler *Handler, opts Options) *gin.Engine {
	r := gin.New()

	r.Use(requestLogger(opts.Logger))
	r.Use(gin.Recovery())

	r.GET("/health", handler.Health)

	public := r.Group("/content")
	{
		public.GET("", handler.ListContent)
		public.GET("/:id", handler.GetContent)
	}

	admin := r.Group("/admin", requireAPIKey(opts.AdminAPIKey))
	{
		admin.POST("/sync", handler.FullSync)
		admin.POST("/sync/:id", handler.QuickSync)
		admin.POST("/invalidate/:id", handler.Invalidate)

		admin.GET("/content", handler.AdminList)
		admin.POST("/content", handler.Create)
		admin.GET("/content/:id", handler.AdminGet)
		admin.PATCH("/content/:id", handler.Update)
		admin.DELETE("/content/:id", handler.Delete)

		admin.GET("/taxonomy", handler.Taxonomy)
	}

	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}

		logger.LogAttrs(c.Request.Context(), level, "request completed",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		)
	}
}

// requireAPIKey guards the admin routes. An empty key locks them entirely.
func requireAPIKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin api disabled"})
			return
		}

		got := c.GetHeader(apiKeyHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			return
		}

		c.Next()
	}
}
