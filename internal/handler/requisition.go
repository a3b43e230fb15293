package handler

import (
	"context"
	"net/http"

	"metersquare/internal/dto"
	"metersquare/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RequisitionHandler struct{ svc service.RequisitionService }

func NewRequisitionHandler(svc service.RequisitionService) *RequisitionHandler {
	return &RequisitionHandler{svc: svc}
}

// Create POST /v1/requisitions
func (h *RequisitionHandler) Create(c *gin.Context) {
	var req dto.CreateRequisitionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Create(c.Request.Context(), actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// List GET /v1/requisitions
func (h *RequisitionHandler) List(c *gin.Context) {
	var filter dto.RequisitionFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.List(c.Request.Context(), actor(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Get GET /v1/requisitions/:id
func (h *RequisitionHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Update PUT /v1/requisitions/:id
func (h *RequisitionHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateRequisitionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Update(c.Request.Context(), actor(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Delete DELETE /v1/requisitions/:id
func (h *RequisitionHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), actor(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Send POST /v1/requisitions/:id/send
func (h *RequisitionHandler) Send(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.SendToFirstApprover(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type reviewAction func(ctx context.Context, actor service.Actor, id uuid.UUID, req dto.ReviewRequest) (*dto.RequisitionResponse, error)

type rejectAction func(ctx context.Context, actor service.Actor, id uuid.UUID, req dto.RejectRequest) (*dto.RequisitionResponse, error)

func (h *RequisitionHandler) review(action reviewAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var req dto.ReviewRequest
		if !bindOptional(c, &req) {
			return
		}
		resp, err := action(c.Request.Context(), actor(c), id, req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func (h *RequisitionHandler) reject(action rejectAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var req dto.RejectRequest
		if !bindAndValidate(c, &req) {
			return
		}
		resp, err := action(c.Request.Context(), actor(c), id, req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// FirstApprove POST /v1/requisitions/:id/first-approve
func (h *RequisitionHandler) FirstApprove() gin.HandlerFunc { return h.review(h.svc.FirstApprove) }

// FirstReject POST /v1/requisitions/:id/first-reject
func (h *RequisitionHandler) FirstReject() gin.HandlerFunc { return h.reject(h.svc.FirstReject) }

// SecondApprove POST /v1/requisitions/:id/second-approve
func (h *RequisitionHandler) SecondApprove() gin.HandlerFunc { return h.review(h.svc.SecondApprove) }

// SecondReject POST /v1/requisitions/:id/second-reject
func (h *RequisitionHandler) SecondReject() gin.HandlerFunc { return h.reject(h.svc.SecondReject) }

// Dispatch POST /v1/requisitions/:id/dispatch
func (h *RequisitionHandler) Dispatch() gin.HandlerFunc { return h.review(h.svc.Dispatch) }

// ConfirmReceipt POST /v1/requisitions/:id/confirm-receipt
func (h *RequisitionHandler) ConfirmReceipt() gin.HandlerFunc { return h.review(h.svc.ConfirmReceipt) }

// Cancel POST /v1/requisitions/:id/cancel
func (h *RequisitionHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.CancelRequisitionRequest
	if !bindOptional(c, &req) {
		return
	}
	resp, err := h.svc.Cancel(c.Request.Context(), actor(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
