package service

import (
	"context"
	"time"

	"metersquare/internal/dto"
	"metersquare/internal/model"
	"metersquare/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaintenanceService drives the repair lifecycle of units pulled out of
// circulation by degraded returns.
type MaintenanceService interface {
	List(ctx context.Context, filter dto.MaintenanceFilter) (*dto.MaintenanceListResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.MaintenanceResponse, error)
	Start(ctx context.Context, actor Actor, id uuid.UUID, req dto.MaintenanceActionRequest) (*dto.MaintenanceResponse, error)
	// Complete puts the units back into available stock.
	Complete(ctx context.Context, actor Actor, id uuid.UUID, req dto.MaintenanceActionRequest) (*dto.MaintenanceResponse, error)
	// WriteOff removes the units from the category total for good.
	WriteOff(ctx context.Context, actor Actor, id uuid.UUID, req dto.MaintenanceActionRequest) (*dto.MaintenanceResponse, error)
}

type maintenanceService struct {
	repos  StockRepositories
	ledger *stockLedger
	cache  *DashboardCache
}

func NewMaintenanceService(repos StockRepositories, cache *DashboardCache) MaintenanceService {
	return &maintenanceService{repos: repos, ledger: newStockLedger(repos), cache: cache}
}

func (s *maintenanceService) List(ctx context.Context, filter dto.MaintenanceFilter) (*dto.MaintenanceListResponse, error) {
	categoryID, err := parseOptionalUUID("category_id", filter.CategoryID)
	if err != nil {
		return nil, err
	}
	records, total, err := s.repos.Maintenance.List(ctx, repository.MaintenanceFilter{
		Status:     filter.Status,
		CategoryID: categoryID,
		Page:       filter.Page,
		Limit:      filter.Limit,
	})
	if err != nil {
		return nil, err
	}
	return &dto.MaintenanceListResponse{
		Data:       mapMaintenances(records),
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages(total, filter.Limit),
	}, nil
}

func (s *maintenanceService) Get(ctx context.Context, id uuid.UUID) (*dto.MaintenanceResponse, error) {
	m, err := s.repos.Maintenance.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "asset_maintenance", id)
	}
	resp := mapMaintenance(m)
	return &resp, nil
}

func applyRepairDetails(m *model.AssetMaintenance, req dto.MaintenanceActionRequest) error {
	if req.RepairCost != nil {
		if req.RepairCost.IsNegative() {
			return newValidation("repair_cost", "must not be negative")
		}
		m.RepairCost = *req.RepairCost
	}
	if req.RepairNotes != nil {
		m.RepairNotes = req.RepairNotes
	}
	return nil
}

func (s *maintenanceService) Start(ctx context.Context, actor Actor, id uuid.UUID, req dto.MaintenanceActionRequest) (*dto.MaintenanceResponse, error) {
	if err := actor.require(model.RoleStoreKeeper, model.RoleAdmin); err != nil {
		return nil, err
	}
	err := runTx(ctx, s.repos.Maintenance.DB(), func(tx *gorm.DB) error {
		m, err := s.repos.Maintenance.LockByIDTx(tx, id)
		if err != nil {
			return notFoundOr(err, "asset_maintenance", id)
		}
		if m.Status != model.MaintenancePending {
			return newConflict(ReasonInvalidAction, "maintenance is %s, only pending records can be started", m.Status)
		}
		if err := applyRepairDetails(m, req); err != nil {
			return err
		}
		now := time.Now()
		m.Status = model.MaintenanceInProgress
		m.StartedAt = &now
		return s.repos.Maintenance.UpdateTx(tx, m)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *maintenanceService) Complete(ctx context.Context, actor Actor, id uuid.UUID, req dto.MaintenanceActionRequest) (*dto.MaintenanceResponse, error) {
	result := model.ConditionGood
	if req.ResultCondition != "" {
		c, ok := model.ParseCondition(req.ResultCondition)
		if !ok {
			return nil, newValidation("result_condition", "unknown condition")
		}
		if c.Degraded() {
			return nil, newValidation("result_condition", "a completed repair cannot leave the asset degraded; write it off instead")
		}
		result = c
	}
	return s.resolve(ctx, actor, id, req, model.MaintenanceCompleted, result)
}

func (s *maintenanceService) WriteOff(ctx context.Context, actor Actor, id uuid.UUID, req dto.MaintenanceActionRequest) (*dto.MaintenanceResponse, error) {
	result := model.ConditionDamaged
	if req.ResultCondition != "" {
		c, ok := model.ParseCondition(req.ResultCondition)
		if !ok {
			return nil, newValidation("result_condition", "unknown condition")
		}
		result = c
	}
	return s.resolve(ctx, actor, id, req, model.MaintenanceWrittenOff, result)
}

func (s *maintenanceService) resolve(ctx context.Context, actor Actor, id uuid.UUID, req dto.MaintenanceActionRequest, to model.MaintenanceStatus, result model.Condition) (*dto.MaintenanceResponse, error) {
	if err := actor.require(model.RoleStoreKeeper, model.RoleAdmin); err != nil {
		return nil, err
	}
	err := runTx(ctx, s.repos.Maintenance.DB(), func(tx *gorm.DB) error {
		m, err := s.repos.Maintenance.LockByIDTx(tx, id)
		if err != nil {
			return notFoundOr(err, "asset_maintenance", id)
		}
		if m.Status.Terminal() {
			return newConflict(ReasonInvalidAction, "maintenance is already %s", m.Status)
		}
		if err := applyRepairDetails(m, req); err != nil {
			return err
		}
		if _, _, err := s.ledger.resolveMaintenanceTx(tx, m, to, result); err != nil {
			return err
		}
		resolver := actor.UserID
		m.ResolvedBy = &resolver
		m.ResultCondition = &result
		return s.repos.Maintenance.UpdateTx(tx, m)
	})
	if err != nil {
		return nil, err
	}
	s.cache.invalidate(ctx)
	return s.Get(ctx, id)
}
