package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"qhse_dashboard/internal/aggregate"
	"qhse_dashboard/internal/poller"
	"qhse_dashboard/internal/project"
	"qhse_dashboard/internal/risk"
	"qhse_dashboard/internal/timeline"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// StateSource is the poller as seen by the API.
type StateSource interface {
	Snapshot() poller.State
	Refetch(ctx context.Context) (poller.State, error)
}

type Handler struct {
	source StateSource
	now    func() time.Time
	topN   int
}

func NewHandler(source StateSource, now func() time.Time, topN int) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{source: source, now: now, topN: topN}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/state", h.GetState)
	r.GET("/projects", h.GetProjects)
	r.GET("/diagnostics", h.GetDiagnostics)
	r.GET("/overview/monthly", h.GetMonthlyOverview)
	r.GET("/overview/yearly", h.GetYearlyOverview)
	r.GET("/kpi", h.GetKPI)
	r.GET("/manhours", h.GetManhours)
	r.GET("/audits", h.GetAudits)
	r.GET("/quality-plan", h.GetQualityPlan)
	r.GET("/timeline", h.GetTimeline)
	r.GET("/risk", h.GetRisk)
	r.POST("/refetch", h.Refetch)
}

func (h *Handler) records() []project.Record {
	return h.source.Snapshot().Data
}

// GET /api/state
func (h *Handler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.source.Snapshot())
}

// GET /api/projects?valid=true
func (h *Handler) GetProjects(c *gin.Context) {
	records := h.records()
	if valid, _ := strconv.ParseBool(c.Query("valid")); valid {
		records = project.Valid(records)
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) GetDiagnostics(c *gin.Context) {
	c.JSON(http.StatusOK, h.source.Snapshot().Diagnostics)
}

func (h *Handler) GetMonthlyOverview(c *gin.Context) {
	c.JSON(http.StatusOK, aggregate.MonthlyOverview(h.records()))
}

func (h *Handler) GetYearlyOverview(c *gin.Context) {
	c.JSON(http.StatusOK, aggregate.YearlyOverview(h.records()))
}

func (h *Handler) GetKPI(c *gin.Context) {
	c.JSON(http.StatusOK, aggregate.KPIStatus(h.records()))
}

func (h *Handler) GetManhours(c *gin.Context) {
	c.JSON(http.StatusOK, aggregate.Manhours(h.records()))
}

func (h *Handler) GetAudits(c *gin.Context) {
	c.JSON(http.StatusOK, aggregate.AuditStatuses(h.records(), h.now()))
}

func (h *Handler) GetQualityPlan(c *gin.Context) {
	c.JSON(http.StatusOK, aggregate.QualityPlanStatus(h.records()))
}

// GetTimeline serves the full timeline or, with mode=top, the projects most
// in need of attention.
// GET /api/timeline?mode=full|top&limit=N
func (h *Handler) GetTimeline(c *gin.Context) {
	limit := h.topN
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	switch c.DefaultQuery("mode", "full") {
	case "full":
		c.JSON(http.StatusOK, timeline.Full(h.records(), h.now()))
	case "top":
		c.JSON(http.StatusOK, timeline.TopN(h.records(), h.now(), limit))
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be full or top"})
	}
}

func (h *Handler) GetRisk(c *gin.Context) {
	records := h.records()
	c.JSON(http.StatusOK, gin.H{
		"projects": risk.AssessAll(records),
		"counts":   risk.Counts(records),
	})
}

// refetchTimeout bounds a manual refetch once it no longer follows the
// client connection.
var refetchTimeout = 2 * time.Minute

// Refetch triggers an immediate fetch. A fetch superseded by a newer one
// answers with the current state. The fetch outlives a client that hangs up.
// POST /api/refetch
func (h *Handler) Refetch(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), refetchTimeout)
	defer cancel()

	state, err := h.source.Refetch(ctx)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, state)
	case errors.Is(err, poller.ErrSuperseded):
		c.JSON(http.StatusOK, h.source.Snapshot())
	default:
		log.Warn().Err(err).Msg("Manual refetch failed")
		c.JSON(http.StatusBadGateway, gin.H{
			"error": err.Error(),
			"state": state,
		})
	}
}
