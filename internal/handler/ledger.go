package handler

import (
	"net/http"

	"metersquare/internal/dto"
	"metersquare/internal/service"

	"github.com/gin-gonic/gin"
)

type LedgerHandler struct{ svc service.LedgerService }

func NewLedgerHandler(svc service.LedgerService) *LedgerHandler {
	return &LedgerHandler{svc: svc}
}

// Dispatch POST /v1/movements/dispatch
func (h *LedgerHandler) Dispatch(c *gin.Context) {
	var req dto.DispatchRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Dispatch(c.Request.Context(), actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Return POST /v1/movements/return
func (h *LedgerHandler) Return(c *gin.Context) {
	var req dto.ReturnRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Return(c.Request.Context(), actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ListMovements GET /v1/movements
func (h *LedgerHandler) ListMovements(c *gin.Context) {
	var filter dto.MovementFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListMovements(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Dispatched GET /v1/dispatched
func (h *LedgerHandler) Dispatched(c *gin.Context) {
	resp, err := h.svc.Dispatched(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ProjectAssets GET /v1/projects/:id/assets
func (h *LedgerHandler) ProjectAssets(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ProjectAssets(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Dashboard GET /v1/dashboard
func (h *LedgerHandler) Dashboard(c *gin.Context) {
	resp, err := h.svc.Dashboard(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Verify GET /v1/ledger/verify
func (h *LedgerHandler) Verify(c *gin.Context) {
	resp, err := h.svc.Verify(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
