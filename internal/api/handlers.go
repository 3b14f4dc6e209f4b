package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/autonexops/autonex-console/internal/approval"
	"github.com/autonexops/autonex-console/internal/models"
	"github.com/autonexops/autonex-console/internal/orchestrator"
	"github.com/autonexops/autonex-console/internal/store"
)

// Console is the service surface the handlers expose to the web view.
type Console interface {
	Overview() store.Snapshot
	Timeseries(ctx context.Context, service string, hours int) ([]models.MetricSample, error)
	SelectService(ctx context.Context, service string) error
	SelectIncident(ctx context.Context, id string) error
	ResolveIncident(ctx context.Context, id string) error
	ApproveAction(ctx context.Context, actionID, approvedBy string) error
	RejectAction(ctx context.Context, actionID string) error
	StartDemo() (string, error)
	DemoReport() orchestrator.Report
	ClearFailure(ctx context.Context) error
	Healthy(ctx context.Context) error
}

func registerRoutes(engine *gin.Engine, console Console) {
	engine.GET("/healthz", func(c *gin.Context) {
		if err := console.Healthy(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	group := engine.Group("/console")
	group.GET("/overview", func(c *gin.Context) {
		c.JSON(http.StatusOK, console.Overview())
	})

	group.GET("/timeseries", func(c *gin.Context) {
		service := c.Query("service")
		if service == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "service is required"})
			return
		}
		hours, err := strconv.Atoi(c.DefaultQuery("hours", "1"))
		if err != nil || hours < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be a positive integer"})
			return
		}
		samples, err := console.Timeseries(c.Request.Context(), service, hours)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"service": service, "metrics": samples})
	})

	group.POST("/services/select", func(c *gin.Context) {
		var body struct {
			Service string `json:"service"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.Service == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "service is required"})
			return
		}
		if err := console.SelectService(c.Request.Context(), body.Service); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})

	group.POST("/incidents/:id/select", func(c *gin.Context) {
		if err := console.SelectIncident(c.Request.Context(), c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	group.POST("/incidents/:id/resolve", func(c *gin.Context) {
		if err := console.ResolveIncident(c.Request.Context(), c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	group.GET("/actions", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"actions": console.Overview().Actions})
	})

	group.POST("/actions/:id/approve", func(c *gin.Context) {
		var body struct {
			ApprovedBy string `json:"approved_by"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.ApprovedBy == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "approved_by is required"})
			return
		}
		if err := console.ApproveAction(c.Request.Context(), c.Param("id"), body.ApprovedBy); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	group.POST("/actions/:id/reject", func(c *gin.Context) {
		if err := console.RejectAction(c.Request.Context(), c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	group.POST("/demo/run", func(c *gin.Context) {
		runID, err := console.StartDemo()
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"run_id": runID})
	})

	group.GET("/demo/run", func(c *gin.Context) {
		c.JSON(http.StatusOK, console.DemoReport())
	})

	group.POST("/demo/clear", func(c *gin.Context) {
		if err := console.ClearFailure(c.Request.Context()); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})
}

// writeError maps domain guard conditions onto HTTP statuses: missing
// entities are 404, state conflicts are 409, everything else is a bad
// gateway (the backend call failed).
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrUnknownIncident), errors.Is(err, approval.ErrUnknownAction):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, approval.ErrNotPending),
		errors.Is(err, approval.ErrDecisionInFlight),
		errors.Is(err, orchestrator.ErrRunActive),
		errors.Is(err, orchestrator.ErrFailureActive):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}
