package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	inventoryapp "github.com/stockledger/backend/internal/application/inventory"
	"github.com/stockledger/backend/internal/domain/inventory"
)

// ReservationHandler handles reservation lifecycle endpoints
type ReservationHandler struct {
	BaseHandler
	reservationService *inventoryapp.ReservationService
}

// NewReservationHandler creates a new ReservationHandler
func NewReservationHandler(reservationService *inventoryapp.ReservationService) *ReservationHandler {
	return &ReservationHandler{
		reservationService: reservationService,
	}
}

// ReservationResponse represents a reservation in API responses
type ReservationResponse struct {
	ID         string  `json:"id"`
	TenantID   string  `json:"tenant_id"`
	VariantID  string  `json:"variant_id"`
	LocationID string  `json:"location_id"`
	OrderID    string  `json:"order_id"`
	Channel    string  `json:"channel"`
	Quantity   int64   `json:"quantity"`
	Status     string  `json:"status"`
	ExpiresAt  string  `json:"expires_at"`
	ClosedAt   *string `json:"closed_at,omitempty"`
	CreatedAt  string  `json:"created_at"`
	Version    int     `json:"version"`
}

// ReserveRequest is the request body for placing a reservation
type ReserveRequest struct {
	VariantID  string `json:"variant_id" binding:"required"`
	LocationID string `json:"location_id" binding:"required"`
	OrderID    string `json:"order_id" binding:"required"`
	Channel    string `json:"channel" binding:"required"`
	Quantity   int64  `json:"quantity" binding:"required,gt=0"`
	Actor      string `json:"actor" binding:"required"`
	TTLSeconds int64  `json:"ttl_seconds" binding:"gte=0"`
}

// ReleaseRequest is the request body for releasing or consuming a reservation
type ReleaseRequest struct {
	Actor string `json:"actor" binding:"required"`
}

// ReleaseByOrderRequest is the request body for releasing every active
// reservation of an order
type ReleaseByOrderRequest struct {
	OrderID string `json:"order_id" binding:"required"`
	Actor   string `json:"actor" binding:"required"`
}

func toReservationResponse(reservation *inventory.InventoryReservation) ReservationResponse {
	resp := ReservationResponse{
		ID:         reservation.ID.String(),
		TenantID:   reservation.TenantID.String(),
		VariantID:  reservation.VariantID.String(),
		LocationID: reservation.LocationID.String(),
		OrderID:    reservation.OrderID,
		Channel:    reservation.Channel,
		Quantity:   reservation.Quantity,
		Status:     string(reservation.Status),
		ExpiresAt:  reservation.ExpiresAt.Format(time.RFC3339),
		CreatedAt:  reservation.CreatedAt.Format(time.RFC3339),
		Version:    reservation.Version,
	}
	if reservation.ClosedAt != nil {
		closed := reservation.ClosedAt.Format(time.RFC3339)
		resp.ClosedAt = &closed
	}
	return resp
}

// Reserve places a hold on stock for a pending order
func (h *ReservationHandler) Reserve(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var req ReserveRequest
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

	cmd := inventoryapp.ReserveCommand{
		TenantID:   tenantID,
		VariantID:  variantID,
		LocationID: locationID,
		OrderID:    req.OrderID,
		Channel:    req.Channel,
		Quantity:   req.Quantity,
		Actor:      req.Actor,
		TTL:        time.Duration(req.TTLSeconds) * time.Second,
	}

	reservation, err := h.reservationService.Reserve(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toReservationResponse(reservation))
}

// Release returns a reservation's quantity to the pool. Releasing a
// reservation that was already released or expired succeeds without effect.
func (h *ReservationHandler) Release(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	reservationID, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid reservation ID format")
		return
	}

	var req ReleaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	if err := h.reservationService.Release(c.Request.Context(), tenantID, reservationID, req.Actor); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"released": true})
}

// ReleaseByOrder releases every active reservation held by an order
func (h *ReservationHandler) ReleaseByOrder(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var req ReleaseByOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	released, err := h.reservationService.ReleaseByOrder(c.Request.Context(), tenantID, req.OrderID, req.Actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"released_count": released})
}

// Consume turns a reservation into a completed sale at fulfillment
func (h *ReservationHandler) Consume(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	reservationID, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid reservation ID format")
		return
	}

	var req ReleaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	if err := h.reservationService.Consume(c.Request.Context(), tenantID, reservationID, req.Actor); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"consumed": true})
}

// GetByID retrieves one reservation
func (h *ReservationHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	reservationID, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, "Invalid reservation ID format")
		return
	}

	reservation, err := h.reservationService.GetReservation(c.Request.Context(), tenantID, reservationID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toReservationResponse(reservation))
}

// CountActive returns the tenant's count of active reservations
func (h *ReservationHandler) CountActive(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	count, err := h.reservationService.CountActive(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"active_reservations": count})
}
