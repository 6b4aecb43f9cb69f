package handler

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	inventoryapp "github.com/stockledger/backend/internal/application/inventory"
	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
)

// LedgerHandler handles stock movement and ledger row endpoints
type LedgerHandler struct {
	BaseHandler
	ledgerService *inventoryapp.LedgerService
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(ledgerService *inventoryapp.LedgerService) *LedgerHandler {
	return &LedgerHandler{
		ledgerService: ledgerService,
	}
}

// LedgerRowResponse represents one ledger row in API responses
type LedgerRowResponse struct {
	ID             string           `json:"id"`
	TenantID       string           `json:"tenant_id"`
	VariantID      string           `json:"variant_id"`
	LocationID     string           `json:"location_id"`
	OnHand         int64            `json:"on_hand"`
	Reserved       int64            `json:"reserved"`
	SafetyStock    int64            `json:"safety_stock"`
	ChannelBuffers map[string]int64 `json:"channel_buffers"`
	UnitCost       string           `json:"unit_cost"`
	InventoryValue string           `json:"inventory_value"`
	LastCountedAt  *string          `json:"last_counted_at,omitempty"`
	CreatedAt      string           `json:"created_at"`
	UpdatedAt      string           `json:"updated_at"`
	Version        int              `json:"version"`
}

// MovementResponse represents one movement record in API responses
type MovementResponse struct {
	ID            string  `json:"id"`
	TenantID      string  `json:"tenant_id"`
	VariantID     string  `json:"variant_id"`
	LocationID    string  `json:"location_id"`
	Type          string  `json:"type"`
	QuantityDelta int64   `json:"quantity_delta"`
	Reason        string  `json:"reason,omitempty"`
	Reference     string  `json:"reference,omitempty"`
	Actor         string  `json:"actor"`
	UnitCost      *string `json:"unit_cost,omitempty"`
	OccurredAt    string  `json:"occurred_at"`
}

// AvailabilityResponse represents channel availability for one row or variant
type AvailabilityResponse struct {
	VariantID       string `json:"variant_id"`
	LocationID      string `json:"location_id,omitempty"`
	Channel         string `json:"channel"`
	AvailableToSell int64  `json:"available_to_sell"`
}

// MovementRequest is the request body for restocks, sales and returns
type MovementRequest struct {
	VariantID  string  `json:"variant_id" binding:"required"`
	LocationID string  `json:"location_id" binding:"required"`
	Quantity   int64   `json:"quantity" binding:"required,gt=0"`
	Reason     string  `json:"reason"`
	Reference  string  `json:"reference"`
	Actor      string  `json:"actor" binding:"required"`
	UnitCost   *string `json:"unit_cost"`
}

// AdjustmentRequest is the request body for stock count adjustments
type AdjustmentRequest struct {
	VariantID  string `json:"variant_id" binding:"required"`
	LocationID string `json:"location_id" binding:"required"`
	Delta      int64  `json:"delta" binding:"required"`
	Reason     string `json:"reason" binding:"required"`
	Reference  string `json:"reference"`
	Actor      string `json:"actor" binding:"required"`
}

// BatchMovementItemRequest is one movement line in a batch request.
// Adjustments carry their signed delta; the other types carry a positive
// quantity.
type BatchMovementItemRequest struct {
	Type       string  `json:"type" binding:"required"`
	VariantID  string  `json:"variant_id" binding:"required"`
	LocationID string  `json:"location_id" binding:"required"`
	Quantity   int64   `json:"quantity"`
	Delta      int64   `json:"delta"`
	Reason     string  `json:"reason"`
	Reference  string  `json:"reference"`
	Actor      string  `json:"actor" binding:"required"`
	UnitCost   *string `json:"unit_cost"`
}

// BatchMovementsRequest is the request body for applying several movements
// in one call
type BatchMovementsRequest struct {
	Movements []BatchMovementItemRequest `json:"movements" binding:"required,min=1,dive"`
}

// BatchMovementEntryResponse is the outcome of one batch line
type BatchMovementEntryResponse struct {
	Index int                `json:"index"`
	Row   *LedgerRowResponse `json:"row,omitempty"`
	Error *string            `json:"error,omitempty"`
}

// BatchMovementsResponse summarizes a batch application
type BatchMovementsResponse struct {
	Applied int                          `json:"applied"`
	Failed  int                          `json:"failed"`
	Results []BatchMovementEntryResponse `json:"results"`
}

// StockLevelRequest is the request body for setting a row's absolute
// on-hand level after a physical count
type StockLevelRequest struct {
	VariantID  string `json:"variant_id" binding:"required"`
	LocationID string `json:"location_id" binding:"required"`
	NewOnHand  int64  `json:"new_on_hand" binding:"gte=0"`
	Reason     string `json:"reason" binding:"required"`
	Reference  string `json:"reference"`
	Actor      string `json:"actor" binding:"required"`
}

// SafetyStockRequest is the request body for setting a row's safety floor
type SafetyStockRequest struct {
	VariantID  string `json:"variant_id" binding:"required"`
	LocationID string `json:"location_id" binding:"required"`
	Level      int64  `json:"level" binding:"gte=0"`
}

// ChannelBufferRequest is the request body for setting a channel buffer.
// Quantity zero removes the buffer.
type ChannelBufferRequest struct {
	VariantID  string `json:"variant_id" binding:"required"`
	LocationID string `json:"location_id" binding:"required"`
	Channel    string `json:"channel" binding:"required"`
	Quantity   int64  `json:"quantity" binding:"gte=0"`
}

func toLedgerRowResponse(item *inventory.InventoryItem) LedgerRowResponse {
	resp := LedgerRowResponse{
		ID:             item.ID.String(),
		TenantID:       item.TenantID.String(),
		VariantID:      item.VariantID.String(),
		LocationID:     item.LocationID.String(),
		OnHand:         item.OnHand,
		Reserved:       item.Reserved,
		SafetyStock:    item.SafetyStock,
		ChannelBuffers: item.ChannelBuffers,
		UnitCost:       item.UnitCost.String(),
		InventoryValue: item.InventoryValue().String(),
		CreatedAt:      item.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      item.UpdatedAt.Format(time.RFC3339),
		Version:        item.Version,
	}
	if resp.ChannelBuffers == nil {
		resp.ChannelBuffers = map[string]int64{}
	}
	if item.LastCountedAt != nil {
		counted := item.LastCountedAt.Format(time.RFC3339)
		resp.LastCountedAt = &counted
	}
	return resp
}

func toMovementResponse(movement *inventory.StockMovement) MovementResponse {
	resp := MovementResponse{
		ID:            movement.ID.String(),
		TenantID:      movement.TenantID.String(),
		VariantID:     movement.VariantID.String(),
		LocationID:    movement.LocationID.String(),
		Type:          string(movement.Type),
		QuantityDelta: movement.QuantityDelta,
		Reason:        movement.Reason,
		Reference:     movement.Reference,
		Actor:         movement.Actor,
		OccurredAt:    movement.OccurredAt().Format(time.RFC3339),
	}
	if movement.UnitCost != nil {
		cost := movement.UnitCost.String()
		resp.UnitCost = &cost
	}
	return resp
}

func toLedgerRowResponses(items []*inventory.InventoryItem) []LedgerRowResponse {
	out := make([]LedgerRowResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toLedgerRowResponse(item))
	}
	return out
}

func toMovementResponses(movements []*inventory.StockMovement) []MovementResponse {
	out := make([]MovementResponse, 0, len(movements))
	for _, movement := range movements {
		out = append(out, toMovementResponse(movement))
	}
	return out
}

// movementCommand converts the request body into an application command
func (h *LedgerHandler) movementCommand(c *gin.Context, req MovementRequest) (inventoryapp.MovementCommand, bool) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.HandleError(c, err)
		return inventoryapp.MovementCommand{}, false
	}
	variantID, err := uuid.Parse(req.VariantID)
	if err != nil {
		h.BadRequest(c, "Invalid variant ID format")
		return inventoryapp.MovementCommand{}, false
	}
	locationID, err := uuid.Parse(req.LocationID)
	if err != nil {
		h.BadRequest(c, "Invalid location ID format")
		return inventoryapp.MovementCommand{}, false
	}

	cmd := inventoryapp.MovementCommand{
		TenantID:   tenantID,
		VariantID:  variantID,
		LocationID: locationID,
		Quantity:   req.Quantity,
		Reason:     req.Reason,
		Reference:  req.Reference,
		Actor:      req.Actor,
	}
	if req.UnitCost != nil {
		cost, err := decimal.NewFromString(*req.UnitCost)
		if err != nil || cost.IsNegative() {
			h.BadRequest(c, "Invalid unit cost")
			return inventoryapp.MovementCommand{}, false
		}
		cmd.UnitCost = &cost
	}
	return cmd, true
}

// Restock records inbound stock for a row
func (h *LedgerHandler) Restock(c *gin.Context) {
	var req MovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	cmd, ok := h.movementCommand(c, req)
	if !ok {
		return
	}

	item, err := h.ledgerService.RecordRestock(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toLedgerRowResponse(item))
}

// Sale records an outbound sale against a row
func (h *LedgerHandler) Sale(c *gin.Context) {
	var req MovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	cmd, ok := h.movementCommand(c, req)
	if !ok {
		return
	}

	item, err := h.ledgerService.RecordSale(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toLedgerRowResponse(item))
}

// Return records a customer return back into stock
func (h *LedgerHandler) Return(c *gin.Context) {
	var req MovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	cmd, ok := h.movementCommand(c, req)
	if !ok {
		return
	}

	item, err := h.ledgerService.RecordReturn(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toLedgerRowResponse(item))
}

// Adjust records a signed stock count correction
func (h *LedgerHandler) Adjust(c *gin.Context) {
	var req AdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	cmd, ok := h.movementCommand(c, MovementRequest{
		VariantID:  req.VariantID,
		LocationID: req.LocationID,
		Quantity:   req.Delta,
		Reason:     req.Reason,
		Reference:  req.Reference,
		Actor:      req.Actor,
	})
	if !ok {
		return
	}

	item, err := h.ledgerService.RecordAdjustment(c.Request.Context(), cmd, req.Delta)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toLedgerRowResponse(item))
}

// Batch applies several movements in one call. Lines succeed or fail
// independently and the response reports each outcome in order.
func (h *LedgerHandler) Batch(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var req BatchMovementsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	entries := make([]inventoryapp.BatchMovementEntry, 0, len(req.Movements))
	for i, line := range req.Movements {
		variantID, err := uuid.Parse(line.VariantID)
		if err != nil {
			h.BadRequest(c, fmt.Sprintf("Invalid variant ID format at index %d", i))
			return
		}
		locationID, err := uuid.Parse(line.LocationID)
		if err != nil {
			h.BadRequest(c, fmt.Sprintf("Invalid location ID format at index %d", i))
			return
		}

		cmd := inventoryapp.MovementCommand{
			TenantID:   tenantID,
			VariantID:  variantID,
			LocationID: locationID,
			Quantity:   line.Quantity,
			Reason:     line.Reason,
			Reference:  line.Reference,
			Actor:      line.Actor,
		}
		if line.UnitCost != nil {
			cost, err := decimal.NewFromString(*line.UnitCost)
			if err != nil || cost.IsNegative() {
				h.BadRequest(c, fmt.Sprintf("Invalid unit cost at index %d", i))
				return
			}
			cmd.UnitCost = &cost
		}
		entries = append(entries, inventoryapp.BatchMovementEntry{
			Type:    inventory.MovementType(line.Type),
			Command: cmd,
			Delta:   line.Delta,
		})
	}

	result := h.ledgerService.RecordMovements(c.Request.Context(), entries)

	resp := BatchMovementsResponse{
		Applied: result.Applied,
		Failed:  result.Failed,
		Results: make([]BatchMovementEntryResponse, 0, len(result.Results)),
	}
	for _, outcome := range result.Results {
		entry := BatchMovementEntryResponse{Index: outcome.Index}
		if outcome.Err != nil {
			message := outcome.Err.Error()
			entry.Error = &message
		} else if outcome.Item != nil {
			row := toLedgerRowResponse(outcome.Item)
			entry.Row = &row
		}
		resp.Results = append(resp.Results, entry)
	}
	h.Success(c, resp)
}

// SetLevel sets a row's absolute on-hand level, recording whatever
// adjustment closes the gap to the current count
func (h *LedgerHandler) SetLevel(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var req StockLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	variantID, err := uuid.Parse(req.VariantID)
	if err != nil {
		h.BadRequest(c, "Invalid variant ID format")
		return
	}
	locationID, err := uuid.Parse(req.LocationID)
	if err != nil {
		h.BadRequest(c, "Invalid location ID format")
		return
	}

	cmd := inventoryapp.MovementCommand{
		TenantID:   tenantID,
		VariantID:  variantID,
		LocationID: locationID,
		Reason:     req.Reason,
		Reference:  req.Reference,
		Actor:      req.Actor,
	}
	item, err := h.ledgerService.SetStockLevel(c.Request.Context(), cmd, req.NewOnHand)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toLedgerRowResponse(item))
}

// SetSafetyStock sets the safety floor for a row
func (h *LedgerHandler) SetSafetyStock(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var req SafetyStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	variantID, err := uuid.Parse(req.VariantID)
	if err != nil {
		h.BadRequest(c, "Invalid variant ID format")
		return
	}
	locationID, err := uuid.Parse(req.LocationID)
	if err != nil {
		h.BadRequest(c, "Invalid location ID format")
		return
	}

	item, err := h.ledgerService.SetSafetyStock(c.Request.Context(), tenantID, variantID, locationID, req.Level)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toLedgerRowResponse(item))
}

// SetChannelBuffer sets or clears one channel's buffer on a row
func (h *LedgerHandler) SetChannelBuffer(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var req ChannelBufferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	variantID, err := uuid.Parse(req.VariantID)
	if err != nil {
		h.BadRequest(c, "Invalid variant ID format")
		return
	}
	locationID, err := uuid.Parse(req.LocationID)
	if err != nil {
		h.BadRequest(c, "Invalid location ID format")
		return
	}

	item, err := h.ledgerService.SetChannelBuffer(c.Request.Context(), tenantID, variantID, locationID, req.Channel, req.Quantity)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toLedgerRowResponse(item))
}

// GetRow retrieves one ledger row by variant and location
func (h *LedgerHandler) GetRow(c *gin.Context) {
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

	item, err := h.ledgerService.GetRow(c.Request.Context(), tenantID, variantID, locationID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toLedgerRowResponse(item))
}

// ListRows retrieves a paginated list of the tenant's ledger rows
func (h *LedgerHandler) ListRows(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	filter := parseFilter(c)

	result, err := h.ledgerService.ListRows(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, toLedgerRowResponses(result.Items), result.Total, result.Page, result.PageSize)
}

// GetAvailability returns the sellable quantity for a channel. With a
// location_id it reads one row; without one it sums the variant across all
// of the tenant's locations.
func (h *LedgerHandler) GetAvailability(c *gin.Context) {
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
	channel := c.Query("channel")
	if channel == "" {
		h.BadRequest(c, "channel is required")
		return
	}

	resp := AvailabilityResponse{
		VariantID: variantID.String(),
		Channel:   channel,
	}

	if locationIDStr := c.Query("location_id"); locationIDStr != "" {
		locationID, err := uuid.Parse(locationIDStr)
		if err != nil {
			h.BadRequest(c, "Invalid location ID format")
			return
		}
		available, err := h.ledgerService.GetAvailability(c.Request.Context(), tenantID, variantID, locationID, channel)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		resp.LocationID = locationID.String()
		resp.AvailableToSell = available
	} else {
		available, err := h.ledgerService.GetVariantAvailability(c.Request.Context(), tenantID, variantID, channel)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		resp.AvailableToSell = available
	}

	h.Success(c, resp)
}

// ListMovements retrieves movement history for a variant. With a location_id
// it reads one ledger row's log; without one it spans all locations.
func (h *LedgerHandler) ListMovements(c *gin.Context) {
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
	filter := parseFilter(c)

	var result shared.Paginated[*inventory.StockMovement]
	if locationIDStr := c.Query("location_id"); locationIDStr != "" {
		locationID, err := uuid.Parse(locationIDStr)
		if err != nil {
			h.BadRequest(c, "Invalid location ID format")
			return
		}
		result, err = h.ledgerService.GetMovementHistory(c.Request.Context(), tenantID, variantID, locationID, filter)
		if err != nil {
			h.HandleError(c, err)
			return
		}
	} else {
		result, err = h.ledgerService.GetVariantMovementHistory(c.Request.Context(), tenantID, variantID, filter)
		if err != nil {
			h.HandleError(c, err)
			return
		}
	}
	h.SuccessWithMeta(c, toMovementResponses(result.Items), result.Total, result.Page, result.PageSize)
}

// ListMovementsByReference retrieves the movements that share one external
// reference, such as an order or transfer ID
func (h *LedgerHandler) ListMovementsByReference(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	reference := c.Query("reference")
	if reference == "" {
		h.BadRequest(c, "reference is required")
		return
	}

	movements, err := h.ledgerService.GetMovementsByReference(c.Request.Context(), tenantID, reference)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toMovementResponses(movements))
}
