package service

import (
	"encoding/json"
	"math"

	"metersquare/internal/dto"
	"metersquare/internal/model"

	"github.com/google/uuid"
)

func uuidPtrString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func conditionPtrString(c *model.Condition) *string {
	if c == nil {
		return nil
	}
	s := string(*c)
	return &s
}

func totalPages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(limit)))
}

func mapCategory(c *model.AssetCategory) dto.CategoryResponse {
	return dto.CategoryResponse{
		ID:                c.ID.String(),
		Code:              c.Code,
		Name:              c.Name,
		Description:       c.Description,
		TrackingMode:      string(c.TrackingMode),
		TotalQuantity:     c.TotalQuantity,
		AvailableQuantity: c.AvailableQuantity,
		UnitPrice:         c.UnitPrice,
		Unit:              c.Unit,
		IsActive:          c.IsActive,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

func mapItem(it *model.AssetItem) dto.ItemResponse {
	resp := dto.ItemResponse{
		ID:               it.ID.String(),
		CategoryID:       it.CategoryID.String(),
		Code:             it.Code,
		SerialNumber:     it.SerialNumber,
		Description:      it.Description,
		Notes:            it.Notes,
		CurrentStatus:    string(it.CurrentStatus),
		CurrentCondition: string(it.CurrentCondition),
		CurrentProjectID: uuidPtrString(it.CurrentProjectID),
		IsActive:         it.IsActive,
		CreatedAt:        it.CreatedAt,
		UpdatedAt:        it.UpdatedAt,
	}
	if it.Category != nil {
		c := mapCategory(it.Category)
		resp.Category = &c
	}
	return resp
}

func mapItems(items []model.AssetItem) []dto.ItemResponse {
	out := make([]dto.ItemResponse, 0, len(items))
	for i := range items {
		out = append(out, mapItem(&items[i]))
	}
	return out
}

func mapMovement(m *model.AssetMovement) dto.MovementResponse {
	resp := dto.MovementResponse{
		ID:              m.ID.String(),
		CategoryID:      m.CategoryID.String(),
		ItemID:          uuidPtrString(m.ItemID),
		Type:            string(m.Type),
		Quantity:        m.Quantity,
		ProjectID:       m.ProjectID.String(),
		ConditionBefore: conditionPtrString(m.ConditionBefore),
		ConditionAfter:  conditionPtrString(m.ConditionAfter),
		ActorID:         m.ActorID.String(),
		ActorRole:       string(m.ActorRole),
		ReferenceNumber: m.ReferenceNumber,
		RequisitionID:   uuidPtrString(m.RequisitionID),
		Notes:           m.Notes,
		CreatedAt:       m.CreatedAt,
	}
	if m.Category != nil {
		resp.CategoryCode = m.Category.Code
		resp.CategoryName = m.Category.Name
	}
	if m.Item != nil {
		code := m.Item.Code
		resp.ItemCode = &code
	}
	return resp
}

func mapMovements(ms []model.AssetMovement) []dto.MovementResponse {
	out := make([]dto.MovementResponse, 0, len(ms))
	for i := range ms {
		out = append(out, mapMovement(&ms[i]))
	}
	return out
}

func mapMaintenance(m *model.AssetMaintenance) dto.MaintenanceResponse {
	resp := dto.MaintenanceResponse{
		ID:               m.ID.String(),
		CategoryID:       m.CategoryID.String(),
		ItemID:           uuidPtrString(m.ItemID),
		ReturnMovementID: uuidPtrString(m.ReturnMovementID),
		ProjectID:        uuidPtrString(m.ProjectID),
		Quantity:         m.Quantity,
		Status:           string(m.Status),
		IssueDescription: m.IssueDescription,
		ReportedBy:       m.ReportedBy.String(),
		RepairNotes:      m.RepairNotes,
		RepairCost:       m.RepairCost,
		ResultCondition:  conditionPtrString(m.ResultCondition),
		ResolvedBy:       uuidPtrString(m.ResolvedBy),
		StartedAt:        m.StartedAt,
		ResolvedAt:       m.ResolvedAt,
		CreatedAt:        m.CreatedAt,
	}
	if m.Category != nil {
		resp.CategoryCode = m.Category.Code
		c := mapCategory(m.Category)
		resp.Category = &c
	}
	if m.Item != nil {
		code := m.Item.Code
		resp.ItemCode = &code
		it := mapItem(m.Item)
		resp.Item = &it
	}
	return resp
}

func mapMaintenances(ms []model.AssetMaintenance) []dto.MaintenanceResponse {
	out := make([]dto.MaintenanceResponse, 0, len(ms))
	for i := range ms {
		out = append(out, mapMaintenance(&ms[i]))
	}
	return out
}

func mapRequisition(r *model.Requisition) dto.RequisitionResponse {
	resp := dto.RequisitionResponse{
		ID:                 r.ID.String(),
		Code:               r.Code,
		RequesterID:        r.RequesterID.String(),
		ProjectID:          r.ProjectID.String(),
		Purpose:            r.Purpose,
		Urgency:            string(r.Urgency),
		RequiredDate:       r.RequiredDate.Format(dateLayout),
		Notes:              r.Notes,
		Status:             string(r.Status),
		CategoryID:         uuidPtrString(r.CategoryID),
		Quantity:           r.Quantity,
		FirstReviewerID:    uuidPtrString(r.FirstReviewerID),
		FirstReviewedAt:    r.FirstReviewedAt,
		FirstReviewNotes:   r.FirstReviewNotes,
		FirstDecision:      r.FirstDecision,
		SecondReviewerID:   uuidPtrString(r.SecondReviewerID),
		SecondReviewedAt:   r.SecondReviewedAt,
		SecondReviewNotes:  r.SecondReviewNotes,
		SecondDecision:     r.SecondDecision,
		RejectionReason:    r.RejectionReason,
		DispatchedBy:       uuidPtrString(r.DispatchedBy),
		DispatchedAt:       r.DispatchedAt,
		DispatchNotes:      r.DispatchNotes,
		ReceivedAt:         r.ReceivedAt,
		ReceiptNotes:       r.ReceiptNotes,
		CancelledAt:        r.CancelledAt,
		CancellationReason: r.CancellationReason,
		IsDeleted:          r.IsDeleted,
		DeletedAt:          r.DeletedAt,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
		Lines:              make([]dto.RequisitionLineResponse, 0, len(r.Lines)),
	}
	for _, l := range r.Lines {
		line := dto.RequisitionLineResponse{
			ID:         l.ID.String(),
			CategoryID: l.CategoryID.String(),
			Quantity:   l.Quantity,
			Notes:      l.Notes,
		}
		if l.Category != nil {
			line.CategoryCode = l.Category.Code
			line.CategoryName = l.Category.Name
		}
		resp.Lines = append(resp.Lines, line)
	}
	for _, e := range r.Events {
		ev := dto.RequisitionEventResponse{
			ID:        e.ID.String(),
			Action:    e.Action,
			ToStatus:  string(e.ToStatus),
			ActorID:   e.ActorID.String(),
			ActorRole: string(e.ActorRole),
			Notes:     e.Notes,
			CreatedAt: e.CreatedAt,
		}
		if e.FromStatus != nil {
			s := string(*e.FromStatus)
			ev.FromStatus = &s
		}
		if len(e.Metadata) > 0 {
			ev.Metadata = json.RawMessage(e.Metadata)
		}
		resp.Events = append(resp.Events, ev)
	}
	return resp
}
