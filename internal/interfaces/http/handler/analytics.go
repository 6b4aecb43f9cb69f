package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	inventoryapp "github.com/stockledger/backend/internal/application/inventory"
)

const defaultVelocityWindowDays = 30

// AnalyticsHandler handles read-only report endpoints
type AnalyticsHandler struct {
	BaseHandler
	analyticsService *inventoryapp.AnalyticsService
}

// NewAnalyticsHandler creates a new AnalyticsHandler
func NewAnalyticsHandler(analyticsService *inventoryapp.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: analyticsService,
	}
}

// LowStock lists the tenant's rows under their low-stock threshold, most
// urgent first. An explicit threshold query parameter applies to every row;
// without one each row uses twice its own safety floor.
func (h *AnalyticsHandler) LowStock(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var threshold *int64
	if raw := c.Query("threshold"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			h.BadRequest(c, "threshold must be a positive integer")
			return
		}
		threshold = &parsed
	}

	entries, err := h.analyticsService.LowStockReport(c.Request.Context(), tenantID, threshold)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entries)
}

// Valuation values the tenant's inventory at moving-average cost
func (h *AnalyticsHandler) Valuation(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	report, err := h.analyticsService.Valuation(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// Velocity reports sell-through for one row over a trailing window
func (h *AnalyticsHandler) Velocity(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	variantID, err := uuid.Parse(c.Query("variant_id"))
	if err != nil {
		h.BadRequest(c, "variant_id is required")
		return
	}
	locationID, err := uuid.Parse(c.Query("location_id"))
	if err != nil {
		h.BadRequest(c, "location_id is required")
		return
	}

	windowDays := defaultVelocityWindowDays
	if raw := c.Query("window_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.BadRequest(c, "window_days must be a positive integer")
			return
		}
		windowDays = parsed
	}

	report, err := h.analyticsService.SalesVelocity(c.Request.Context(), tenantID, variantID, locationID, windowDays)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

const defaultForecastHorizonDays = 7

// Forecast projects one row's stock position from its trailing sales
func (h *AnalyticsHandler) Forecast(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	variantID, err := uuid.Parse(c.Query("variant_id"))
	if err != nil {
		h.BadRequest(c, "variant_id is required")
		return
	}
	locationID, err := uuid.Parse(c.Query("location_id"))
	if err != nil {
		h.BadRequest(c, "location_id is required")
		return
	}

	windowDays := defaultVelocityWindowDays
	if raw := c.Query("window_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.BadRequest(c, "window_days must be a positive integer")
			return
		}
		windowDays = parsed
	}
	horizonDays := defaultForecastHorizonDays
	if raw := c.Query("horizon_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.BadRequest(c, "horizon_days must be a positive integer")
			return
		}
		horizonDays = parsed
	}

	report, err := h.analyticsService.Forecast(c.Request.Context(), tenantID, variantID, locationID, windowDays, horizonDays)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// Aging buckets the tenant's stocked rows by time since their last sale
func (h *AnalyticsHandler) Aging(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	report, err := h.analyticsService.Aging(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// Turnover ranks the tenant's variants by sell-through since a given time.
// The since parameter defaults to the trailing 30 days.
func (h *AnalyticsHandler) Turnover(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	since := time.Now().AddDate(0, 0, -defaultVelocityWindowDays)
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.BadRequest(c, "since must be RFC3339")
			return
		}
		since = parsed
	}

	entries, err := h.analyticsService.TurnoverReport(c.Request.Context(), tenantID, since)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entries)
}
