package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"content_sync/internal/domain"
	"content_sync/internal/service"
)

const maxAdminListLimit = 500

type Handler struct {
	reader    Reader
	admin     Admin
	freshness Freshness
	status    SyncStatus
	logger    *slog.Logger
}

func NewHandler(reader Reader, admin Admin, freshness Freshness, status SyncStatus, logger *slog.Logger) *Handler {
	return &Handler{
		reader:    reader,
		admin:     admin,
		freshness: freshness,
		status:    status,
		logger:    logger.With("component", "api"),
	}
}

type listResponse struct {
	Items []domain.Content `json:"items"`
	Count int              `json:"count"`
}

type syncResponse struct {
	Count      int       `json:"count"`
	Articles   int       `json:"articles"`
	Events     int       `json:"events"`
	Dropped    int       `json:"dropped"`
	DurationMS int64     `json:"duration_ms"`
	SyncedAt   time.Time `json:"synced_at"`
}

func newSyncResponse(r *domain.SyncResult) syncResponse {
	return syncResponse{
		Count:      r.Count,
		Articles:   r.Articles,
		Events:     r.Events,
		Dropped:    r.Dropped,
		DurationMS: r.Duration.Milliseconds(),
		SyncedAt:   r.SyncedAt,
	}
}

type createRequest struct {
	Kind       domain.Kind      `json:"kind"`
	Status     domain.Status    `json:"status"`
	Title      string           `json:"title" binding:"required"`
	Excerpt    string           `json:"excerpt"`
	Body       string           `json:"body"`
	Category   string           `json:"category"`
	Categories []string         `json:"categories"`
	Tags       []string         `json:"tags"`
	Region     string           `json:"region"`
	Placement  domain.Placement `json:"placement"`
	ImageURL   string           `json:"image_url" binding:"omitempty,url"`
	StartsAt   *time.Time       `json:"starts_at"`
	EndsAt     *time.Time       `json:"ends_at"`
}

func (r createRequest) content() domain.Content {
	return domain.Content{
		Kind:       r.Kind,
		Status:     r.Status,
		Title:      r.Title,
		Excerpt:    r.Excerpt,
		Body:       r.Body,
		Category:   r.Category,
		Categories: r.Categories,
		Tags:       r.Tags,
		Region:     r.Region,
		Placement:  r.Placement,
		ImageURL:   r.ImageURL,
		StartsAt:   r.StartsAt,
		EndsAt:     r.EndsAt,
	}
}

func (h *Handler) Health(c *gin.Context) {
	resp := gin.H{
		"status":      "ok",
		"cache_state": h.freshness.State(),
		"last_sync":   nil,
	}
	if last := h.status.LastResult(); last != nil {
		resp["last_sync"] = newSyncResponse(last)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListContent(c *gin.Context) {
	filter, err := parseListFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.freshness.CheckExpiry()

	items := h.reader.ListPublished(c.Request.Context(), filter)
	c.JSON(http.StatusOK, listResponse{Items: items, Count: len(items)})
}

func (h *Handler) GetContent(c *gin.Context) {
	h.freshness.CheckExpiry()

	item, ok := h.reader.GetPublishedByID(c.Request.Context(), c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "content not found"})
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) FullSync(c *gin.Context) {
	force, err := strconv.ParseBool(c.DefaultQuery("force", "false"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid force"})
		return
	}

	result, err := h.admin.TriggerFullSync(c.Request.Context(), force)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSyncResponse(result))
}

func (h *Handler) QuickSync(c *gin.Context) {
	id := c.Param("id")
	if err := h.admin.TriggerQuickSync(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "synced": true})
}

func (h *Handler) Invalidate(c *gin.Context) {
	id := c.Param("id")
	h.admin.Invalidate(id)
	c.JSON(http.StatusAccepted, gin.H{"id": id, "state": service.StateStale})
}

func (h *Handler) AdminList(c *gin.Context) {
	q := domain.Query{Limit: 100}

	switch kind := domain.Kind(c.Query("kind")); kind {
	case "", domain.KindArticle, domain.KindEvent:
		q.Kind = kind
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be article or event"})
		return
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > maxAdminListLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return
		}
		q.Limit = limit
	}
	q.PublishedOnly = c.Query("status") == string(domain.StatusPublished)

	items, err := h.admin.List(c.Request.Context(), q)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listResponse{Items: items, Count: len(items)})
}

func (h *Handler) AdminGet(c *gin.Context) {
	item, err := h.admin.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.admin.Create(c.Request.Context(), req.content())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) Update(c *gin.Context) {
	var patch domain.ContentPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.admin.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) Delete(c *gin.Context) {
	if err := h.admin.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Taxonomy(c *gin.Context) {
	taxonomy, err := h.admin.Taxonomy(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, taxonomy)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrValidationRejected):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrSourceUnavailable), errors.Is(err, domain.ErrSourceEmpty):
		status = http.StatusBadGateway
	case errors.Is(err, domain.ErrSyncInProgress):
		status = http.StatusConflict
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("admin request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func parseListFilter(c *gin.Context) (domain.ListFilter, error) {
	f := domain.ListFilter{
		Category:  c.Query("category"),
		Region:    c.Query("region"),
		Placement: c.Query("placement"),
	}

	switch kind := domain.Kind(c.Query("kind")); kind {
	case "", domain.KindArticle, domain.KindEvent:
		f.Kind = kind
	default:
		return f, errors.New("kind must be article or event")
	}

	if !service.ValidPlacement(f.Placement) {
		return f, errors.New("unknown placement")
	}

	switch c.DefaultQuery("order", "desc") {
	case "desc":
	case "asc":
		f.Ascending = true
	default:
		return f, errors.New("order must be asc or desc")
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return f, errors.New("limit must be a positive integer")
		}
		f.Limit = limit
	}

	return f, nil
}
