package handler

import (
	"context"
	"net/http"

	"metersquare/internal/dto"
	"metersquare/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type MaintenanceHandler struct{ svc service.MaintenanceService }

func NewMaintenanceHandler(svc service.MaintenanceService) *MaintenanceHandler {
	return &MaintenanceHandler{svc: svc}
}

// List GET /v1/maintenance
func (h *MaintenanceHandler) List(c *gin.Context) {
	var filter dto.MaintenanceFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Get GET /v1/maintenance/:id
func (h *MaintenanceHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type maintenanceAction func(ctx context.Context, actor service.Actor, id uuid.UUID, req dto.MaintenanceActionRequest) (*dto.MaintenanceResponse, error)

// transition serves POST /v1/maintenance/:id/{start,complete,write-off}.
func (h *MaintenanceHandler) transition(action maintenanceAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var req dto.MaintenanceActionRequest
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

func (h *MaintenanceHandler) Start() gin.HandlerFunc    { return h.transition(h.svc.Start) }
func (h *MaintenanceHandler) Complete() gin.HandlerFunc { return h.transition(h.svc.Complete) }
func (h *MaintenanceHandler) WriteOff() gin.HandlerFunc { return h.transition(h.svc.WriteOff) }
