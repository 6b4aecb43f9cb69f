package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	inventoryapp "github.com/stockledger/backend/internal/application/inventory"
	"github.com/stockledger/backend/internal/domain/inventory"
)

// TransferHandler handles inter-location transfer endpoints
type TransferHandler struct {
	BaseHandler
	transferService *inventoryapp.TransferService
}

// NewTransferHandler creates a new TransferHandler
func NewTransferHandler(transferService *inventoryapp.TransferService) *TransferHandler {
	return &TransferHandler{
		transferService: transferService,
	}
}

// TransferResponse represents a transfer in API responses
type TransferResponse struct {
	ID             string  `json:"id"`
	TenantID       string  `json:"tenant_id"`
	VariantID      string  `json:"variant_id"`
	FromLocationID string  `json:"from_location_id"`
	ToLocationID   string  `json:"to_location_id"`
	Quantity       int64   `json:"quantity"`
	Status         string  `json:"status"`
	Reason         string  `json:"reason,omitempty"`
	Reference      string  `json:"reference,omitempty"`
	Notes          string  `json:"notes,omitempty"`
	RequestedBy    string  `json:"requested_by"`
	CompletedAt    *string `json:"completed_at,omitempty"`
	CancelledAt    *string `json:"cancelled_at,omitempty"`
	CreatedAt      string  `json:"created_at"`
	Version        int     `json:"version"`
}

// TransferRequest is the request body for requesting a transfer
type TransferRequest struct {
	VariantID      string `json:"variant_id" binding:"required"`
	FromLocationID string `json:"from_location_id" binding:"required"`
	ToLocationID   string `json:"to_location_id" binding:"required"`
	Quantity       int64  `json:"quantity" binding:"required,gt=0"`
	Reason         string `json:"reason"`
	Reference      string `json:"reference"`
	Notes          string `json:"notes"`
	RequestedBy    string `json:"requested_by" binding:"required"`
}

// TransferActionRequest is the request body for completing or cancelling a
// pending transfer
type TransferActionRequest struct {
	Actor string `json:"actor" binding:"required"`
}

func toTransferResponse(transfer *inventory.InventoryTransfer) TransferResponse {
	resp := TransferResponse{
		ID:             transfer.ID.String(),
		TenantID:       transfer.TenantID.String(),
		VariantID:      transfer.VariantID.String(),
		FromLocationID: transfer.FromLocationID.String(),
		ToLocationID:   transfer.ToLocationID.String(),
		Quantity:       transfer.Quantity,
		Status:         string(transfer.Status),
		Reason:         transfer.Reason,
		Reference:      transfer.Reference,
		Notes:          transfer.Notes,
		RequestedBy:    transfer.RequestedBy,
		CreatedAt:      transfer.CreatedAt.Format(time.RFC3339),
		Version:        transfer.Version,
	}
	if transfer.CompletedAt != nil {
		completed := transfer.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &completed
	}
	if transfer.CancelledAt != nil {
		cancelled := transfer.CancelledAt.Format(time.RFC3339)
		resp.CancelledAt = &cancelled
	}
	return resp
}

func toTransferResponses(transfers []*inventory.InventoryTransfer) []TransferResponse {
	out := make([]TransferResponse, 0, len(transfers))
	for _, transfer := range transfers {
		out = append(out, toTransferResponse(transfer))
	}
	return out
}

// transferCommand converts the request body into an application command
func (h *TransferHandler) transferCommand(c *gin.Context, req TransferRequest) (inventoryapp.TransferCommand, bool) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.HandleError(c, err)
		return inventoryapp.TransferCommand{}, false
	}
	variantID, err := uuid.Parse(req.VariantID)
	if err != nil {
		h.BadRequest(c, "Invalid variant ID format")
		return inventoryapp.TransferCommand{}, false
	}
	fromLocationID, err := uuid.Parse(req.FromLocationID)
	if err != nil {
		h.BadRequest(c, "Invalid source location ID format")
		return inventoryapp.TransferCommand{}, false
	}
	toLocationID, err := uuid.Parse(req.ToLocationID)
	if err != nil {
		h.BadRequest(c, "Invalid destination location ID format")
		return inventoryapp.TransferCommand{}, false
	}

	return inventoryapp.TransferCommand{
		TenantID:       tenantID,
		VariantID:      variantID,
		FromLocationID: fromLocationID,
		ToLocationID:   toLocationID,
		Quantity:       req.Quantity,
		Reason:         req.Reason,
		Reference:      req.Reference,
		Notes:          req.Notes,
		RequestedBy:    req.RequestedBy,
	}, true
}

// Create creates a transfer and debits its source location. The transfer
// stays pending, quantity in transit, until completed or cancelled.
func (h *TransferHandler) Create(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	cmd, ok := h.transferCommand(c, req)
	if !ok {
		return
	}

	transfer, err := h.transferService.CreateTransfer(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toTransferResponse(transfer))
}

// Validate runs the transfer creation checks without moving anything
func (h *TransferHandler) Validate(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	cmd, ok := h.transferCommand(c, req)
	if !ok {
		return
	}

	if err := h.transferService.ValidateTransfer(c.Request.Context(), cmd); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"valid": true})
}

// Complete credits a pending transfer's quantity to its destination
func (h *TransferHandler) Complete(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	transferID, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid transfer ID format")
		return
	}

	var req TransferActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	transfer, err := h.transferService.CompleteTransfer(c.Request.Context(), tenantID, transferID, req.Actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toTransferResponse(transfer))
}

// Cancel cancels a pending transfer and credits its quantity back to the
// source location
func (h *TransferHandler) Cancel(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	transferID, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid transfer ID format")
		return
	}

	var req TransferActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	transfer, err := h.transferService.CancelTransfer(c.Request.Context(), tenantID, transferID, req.Actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toTransferResponse(transfer))
}

// Suggestions proposes rebalancing transfers for a variant from per-location
// availability and sales velocity
func (h *TransferHandler) Suggestions(c *gin.Context) {
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

	suggestions, err := h.transferService.GetTransferSuggestions(c.Request.Context(), tenantID, variantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, suggestions)
}

// GetByID retrieves one transfer
func (h *TransferHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	transferID, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid transfer ID format")
		return
	}

	transfer, err := h.transferService.GetTransfer(c.Request.Context(), tenantID, transferID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toTransferResponse(transfer))
}

// List retrieves a paginated list of transfers, optionally by status
func (h *TransferHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	filter := parseFilter(c)

	var status inventory.TransferStatus
	if raw := c.Query("status"); raw != "" {
		status = inventory.TransferStatus(raw)
		if !status.IsValid() {
			h.BadRequest(c, "Invalid transfer status")
			return
		}
	}

	result, err := h.transferService.ListTransfers(c.Request.Context(), tenantID, status, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, toTransferResponses(result.Items), result.Total, result.Page, result.PageSize)
}
