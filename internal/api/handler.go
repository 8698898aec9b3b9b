package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"inventory-service/internal/service"
	"inventory-service/internal/store"
	"inventory-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	inventory service.Inventory
	location  *time.Location
	db        Pinger
	mcp       http.Handler
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler. mcp may be nil.
func NewHandler(inventory service.Inventory, location *time.Location, db Pinger, mcp http.Handler) *Handler {
	if location == nil {
		location = time.Local
	}
	return &Handler{
		inventory: inventory,
		location:  location,
		db:        db,
		mcp:       mcp,
		logger:    util.GetLogger(),
	}
}

// AdjustStockRequest is the body of POST /api/v1/items/:name/adjustments
type AdjustStockRequest struct {
	Delta  *int64  `json:"delta" binding:"required"`
	Reason *string `json:"reason,omitempty"`
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if h.mcp != nil {
		router.Any("/mcp", gin.WrapH(h.mcp))
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/items/:name", h.getItem)
		v1.POST("/items/:name/adjustments", h.adjustStock)
		v1.GET("/history", h.getHistory)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready once the database answers
func (h *Handler) readinessCheck(c *gin.Context) {
	if h.db != nil {
		if err := h.db.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unavailable",
				"details": err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// getItem handles price and stock lookup
func (h *Handler) getItem(c *gin.Context) {
	name := c.Param("name")

	item, err := h.inventory.Lookup(c.Request.Context(), name)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Item not found",
			"message": service.FormatNotFound(name),
		})
		return
	}
	if err != nil {
		h.internalError(c, "Failed to look up item", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"name":    item.Name,
		"price":   item.Price,
		"stock":   item.Stock,
		"message": service.FormatItem(item),
	})
}

// adjustStock handles a stock adjustment
func (h *Handler) adjustStock(c *gin.Context) {
	name := c.Param("name")

	var req AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	reason := ""
	if req.Reason != nil {
		reason = *req.Reason
	}

	adj, err := h.inventory.AdjustStock(c.Request.Context(), name, *req.Delta, reason)
	var insufficient *service.InsufficientStockError
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Item not found",
			"message": service.FormatNotFound(name),
		})
		return
	case errors.As(err, &insufficient):
		c.JSON(http.StatusConflict, gin.H{
			"error":         "Insufficient stock",
			"current_stock": insufficient.Current,
			"message":       service.FormatInsufficientStock(insufficient.Current),
		})
		return
	case err != nil:
		h.internalError(c, "Failed to adjust stock", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"adjustment": adj,
		"message":    service.FormatAdjustment(adj),
	})
}

// getHistory handles the stock history of one day
func (h *Handler) getHistory(c *gin.Context) {
	date := c.Query("date")

	hist, err := h.inventory.History(c.Request.Context(), date)
	if errors.Is(err, service.ErrInvalidDate) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid date",
			"message": service.FormatInvalidDate(),
		})
		return
	}
	if err != nil {
		h.internalError(c, "Failed to query history", err)
		return
	}

	if hist.NoEvents() {
		c.JSON(http.StatusOK, gin.H{
			"date":    date,
			"entries": hist.Entries,
			"message": service.FormatNoHistory(date),
		})
		return
	}

	lines := make([]string, 0, len(hist.Entries))
	for _, e := range hist.Entries {
		lines = append(lines, service.FormatHistoryEntry(e, h.location))
	}

	c.JSON(http.StatusOK, gin.H{
		"date":    date,
		"entries": hist.Entries,
		"lines":   lines,
	})
}

func (h *Handler) internalError(c *gin.Context, msg string, err error) {
	if errors.Is(err, service.ErrInconsistency) {
		h.logger.Error("Inventory inconsistency", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   msg,
		"details": err.Error(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
