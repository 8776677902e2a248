package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/phimhub/ingest/internal/catalog"
	"github.com/phimhub/ingest/internal/util"
	"github.com/sirupsen/logrus"
)

const defaultListLimit = 20

// RunView is the JSON shape of a ledger entry
type RunView struct {
	ID            string     `json:"id"`
	Type          string     `json:"type"`
	Source        string     `json:"source"`
	Status        string     `json:"status"`
	Total         int        `json:"total"`
	MoviesAdded   int        `json:"movies_added"`
	MoviesUpdated int        `json:"movies_updated"`
	MoviesSkipped int        `json:"movies_skipped"`
	MoviesFailed  int        `json:"movies_failed"`
	EpisodesAdded int        `json:"episodes_added"`
	DurationMS    int64      `json:"duration_ms"`
	Message       string     `json:"message,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

func toRunView(r *catalog.Run) RunView {
	return RunView{
		ID:            r.ID,
		Type:          r.Type,
		Source:        r.Source,
		Status:        string(r.Status),
		Total:         r.Total,
		MoviesAdded:   r.MoviesAdded,
		MoviesUpdated: r.MoviesUpdated,
		MoviesSkipped: r.MoviesSkipped,
		MoviesFailed:  r.MoviesFailed,
		EpisodesAdded: r.EpisodesAdded,
		DurationMS:    r.Duration.Milliseconds(),
		Message:       r.Message,
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
	}
}

// Handler serves the operator endpoints
type Handler struct {
	svc    *Service
	ledger Ledger
	logger *logrus.Logger
}

// NewHandler creates a Handler
func NewHandler(svc *Service, ledger Ledger) *Handler {
	return &Handler{svc: svc, ledger: ledger, logger: util.Logger()}
}

// StartRun launches a run in the background
// POST /api/runs
func (h *Handler) StartRun(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.svc.Start(req)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"run_id": id})
	case errors.Is(err, util.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.WithError(err).Error("StartRun failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}

// ListRuns returns the newest ledger entries
// GET /api/runs?limit=20
func (h *Handler) ListRuns(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}

	runs, err := h.ledger.ListRuns(c.Request.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("ListRuns failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	views := make([]RunView, 0, len(runs))
	for _, r := range runs {
		views = append(views, toRunView(r))
	}
	c.JSON(http.StatusOK, gin.H{"runs": views, "busy": h.svc.Busy()})
}

// GetRun returns one ledger entry
// GET /api/runs/:id
func (h *Handler) GetRun(c *gin.Context) {
	run, err := h.ledger.GetRun(c.Request.Context(), c.Param("id"))
	if errors.Is(err, util.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("GetRun failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toRunView(run))
}

type resolveRequest struct {
	From int `json:"from" binding:"required,min=1"`
	To   int `json:"to" binding:"required,min=1"`
}

// Resolve returns the slugs of a page range
// POST /api/resolve
func (h *Handler) Resolve(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	slugs, err := h.svc.Resolve(c.Request.Context(), req.From, req.To)
	if errors.Is(err, util.ErrInvalidInput) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Resolve failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"slugs": slugs, "count": len(slugs)})
}

// Health pings the store
// GET /healthz
func (h *Handler) Health(c *gin.Context) {
	if err := h.ledger.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
