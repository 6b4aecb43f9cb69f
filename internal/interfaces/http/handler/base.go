package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/interfaces/http/dto"
)

// Error codes returned in the response envelope
const (
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeMissingTenant = "MISSING_TENANT"
	ErrCodeInternal      = "INTERNAL_ERROR"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getTenantID extracts the tenant ID from the X-Tenant-ID header.
// Every request must identify its tenant explicitly; there is no default.
func getTenantID(c *gin.Context) (uuid.UUID, error) {
	raw := c.GetHeader("X-Tenant-ID")
	if raw == "" {
		return uuid.Nil, shared.ErrMissingTenant
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, shared.ErrMissingTenant
	}
	return id, nil
}

// parseUUIDParam parses a UUID path parameter
func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, error) {
	return uuid.Parse(c.Param(name))
}

// parseFilter builds a query filter from pagination and ordering query params
func parseFilter(c *gin.Context) shared.Filter {
	filter := shared.DefaultFilter()
	if page, err := strconv.Atoi(c.Query("page")); err == nil && page > 0 {
		filter.Page = page
	}
	if pageSize, err := strconv.Atoi(c.Query("page_size")); err == nil && pageSize > 0 && pageSize <= 200 {
		filter.PageSize = pageSize
	}
	if orderBy := c.Query("order_by"); orderBy != "" {
		filter.OrderBy = orderBy
	}
	if orderDir := c.Query("order_dir"); orderDir == "asc" || orderDir == "desc" {
		filter.OrderDir = orderDir
	}
	return filter
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, dto.NewErrorResponse(ErrCodeBadRequest, message))
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, dto.NewErrorResponse(ErrCodeNotFound, message))
}

// Conflict sends a 409 conflict response
func (h *BaseHandler) Conflict(c *gin.Context, code, message string) {
	c.JSON(http.StatusConflict, dto.NewErrorResponse(code, message))
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(ErrCodeInternal, message))
}

// HandleError maps domain errors to HTTP responses
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var validationErr *inventory.ValidationError
	if errors.As(err, &validationErr) {
		h.BadRequest(c, validationErr.Error())
		return
	}

	var transferErr *inventory.InvalidTransferError
	if errors.As(err, &transferErr) {
		h.BadRequest(c, transferErr.Error())
		return
	}

	var insufficientErr *inventory.InsufficientInventoryError
	if errors.As(err, &insufficientErr) {
		h.Conflict(c, "INSUFFICIENT_INVENTORY", insufficientErr.Error())
		return
	}

	var stateErr *inventory.InvalidStateTransitionError
	if errors.As(err, &stateErr) {
		h.Conflict(c, "INVALID_STATE_TRANSITION", stateErr.Error())
		return
	}

	if errors.Is(err, shared.ErrNotFound) {
		h.NotFound(c, "Resource not found")
		return
	}

	if errors.Is(err, shared.ErrConcurrencyConflict) {
		h.Conflict(c, shared.ErrConcurrencyConflict.Code, shared.ErrConcurrencyConflict.Message)
		return
	}

	if errors.Is(err, shared.ErrMissingTenant) {
		h.BadRequest(c, shared.ErrMissingTenant.Message)
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		h.BadRequest(c, domainErr.Message)
		return
	}

	h.InternalError(c, "An unexpected error occurred")
}
