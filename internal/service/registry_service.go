package service

import (
	"context"
	"strings"

	"metersquare/internal/dto"
	"metersquare/internal/model"
	"metersquare/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const recentMovementsLimit = 10

// RegistryService manages asset categories and their serialized items.
type RegistryService interface {
	CreateCategory(ctx context.Context, actor Actor, req dto.CreateCategoryRequest) (*dto.CategoryResponse, error)
	UpdateCategory(ctx context.Context, actor Actor, id uuid.UUID, req dto.UpdateCategoryRequest) (*dto.CategoryResponse, error)
	DeactivateCategory(ctx context.Context, actor Actor, id uuid.UUID) (*dto.CategoryResponse, error)
	GetCategory(ctx context.Context, id uuid.UUID) (*dto.CategoryDetailResponse, error)
	ListCategories(ctx context.Context, filter dto.CategoryFilter) (*dto.CategoryListResponse, error)

	CreateItem(ctx context.Context, actor Actor, categoryID uuid.UUID, req dto.CreateItemRequest) (*dto.ItemResponse, error)
	UpdateItem(ctx context.Context, actor Actor, id uuid.UUID, req dto.UpdateItemRequest) (*dto.ItemResponse, error)
	GetItem(ctx context.Context, id uuid.UUID) (*dto.ItemResponse, error)
	ListItems(ctx context.Context, filter dto.ItemFilter) (*dto.ItemListResponse, error)
}

type registryService struct {
	categories repository.CategoryRepository
	items      repository.ItemRepository
	movements  repository.MovementRepository
	cache      *DashboardCache
}

func NewRegistryService(
	categories repository.CategoryRepository,
	items repository.ItemRepository,
	movements repository.MovementRepository,
	cache *DashboardCache,
) RegistryService {
	return &registryService{categories: categories, items: items, movements: movements, cache: cache}
}

func (s *registryService) CreateCategory(ctx context.Context, actor Actor, req dto.CreateCategoryRequest) (*dto.CategoryResponse, error) {
	if err := actor.require(model.RoleStoreKeeper, model.RoleAdmin); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, newValidation("name", "required")
	}
	mode := model.TrackingMode(req.TrackingMode)
	if !mode.Valid() {
		return nil, newValidation("tracking_mode", "must be quantity or individual")
	}
	if req.TotalQuantity < 0 {
		return nil, newValidation("total_quantity", "must not be negative")
	}
	if mode == model.TrackingIndividual && req.TotalQuantity != 0 {
		return nil, newValidation("total_quantity", "individually tracked categories start empty, add items instead")
	}
	if req.UnitPrice.IsNegative() {
		return nil, newValidation("unit_price", "must not be negative")
	}
	unit := strings.TrimSpace(req.Unit)
	if unit == "" {
		unit = "pcs"
	}

	createdBy := actor.UserID
	cat := &model.AssetCategory{
		Name:              name,
		Description:       req.Description,
		TrackingMode:      mode,
		TotalQuantity:     req.TotalQuantity,
		AvailableQuantity: req.TotalQuantity,
		UnitPrice:         req.UnitPrice,
		Unit:              unit,
		IsActive:          true,
		CreatedBy:         &createdBy,
	}

	err := runTx(ctx, s.categories.DB(), func(tx *gorm.DB) error {
		if req.Code != nil && strings.TrimSpace(*req.Code) != "" {
			code := strings.ToUpper(strings.TrimSpace(*req.Code))
			taken, err := s.categories.CodeExistsTx(tx, code)
			if err != nil {
				return err
			}
			if taken {
				return newConflict(ReasonDuplicateCode, "category code %s already exists", code)
			}
			cat.Code = code
		} else {
			code, err := nextFreeCode(tx, categoryPrefix(name), s.categories.CodeExistsTx)
			if err != nil {
				return err
			}
			cat.Code = code
		}
		return s.categories.CreateTx(tx, cat)
	})
	if err != nil {
		return nil, err
	}
	s.cache.invalidate(ctx)

	resp := mapCategory(cat)
	return &resp, nil
}

func (s *registryService) UpdateCategory(ctx context.Context, actor Actor, id uuid.UUID, req dto.UpdateCategoryRequest) (*dto.CategoryResponse, error) {
	if err := actor.require(model.RoleStoreKeeper, model.RoleAdmin); err != nil {
		return nil, err
	}

	var cat *model.AssetCategory
	err := runTx(ctx, s.categories.DB(), func(tx *gorm.DB) error {
		var err error
		cat, err = s.categories.LockByIDTx(tx, id)
		if err != nil {
			return notFoundOr(err, "asset_category", id)
		}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return newValidation("name", "must not be empty")
			}
			cat.Name = name
		}
		if req.Description != nil {
			cat.Description = req.Description
		}
		if req.Unit != nil && strings.TrimSpace(*req.Unit) != "" {
			cat.Unit = strings.TrimSpace(*req.Unit)
		}
		if req.UnitPrice != nil {
			if req.UnitPrice.IsNegative() {
				return newValidation("unit_price", "must not be negative")
			}
			cat.UnitPrice = *req.UnitPrice
		}

		if req.TrackingMode != nil && model.TrackingMode(*req.TrackingMode) != cat.TrackingMode {
			mode := model.TrackingMode(*req.TrackingMode)
			if !mode.Valid() {
				return newValidation("tracking_mode", "must be quantity or individual")
			}
			items, err := s.items.CountByCategoryTx(tx, cat.ID)
			if err != nil {
				return err
			}
			if items > 0 || cat.TotalQuantity > 0 {
				return newConflict(ReasonWrongTrackingMode,
					"tracking mode of %s can only change while it holds no stock", cat.Code)
			}
			cat.TrackingMode = mode
		}

		if req.TotalQuantity != nil && *req.TotalQuantity != cat.TotalQuantity {
			if cat.TrackingMode == model.TrackingIndividual {
				return newConflict(ReasonWrongTrackingMode,
					"total of %s follows its items, add or write off items instead", cat.Code)
			}
			delta := *req.TotalQuantity - cat.TotalQuantity
			if cat.AvailableQuantity+delta < 0 {
				return newValidation("total_quantity", "cannot drop below the units currently out of the store")
			}
			cat.TotalQuantity += delta
			cat.AvailableQuantity += delta
		}

		if err := checkCounters(cat); err != nil {
			return err
		}
		return s.categories.UpdateTx(tx, cat)
	})
	if err != nil {
		return nil, err
	}
	s.cache.invalidate(ctx)

	resp := mapCategory(cat)
	return &resp, nil
}

func (s *registryService) DeactivateCategory(ctx context.Context, actor Actor, id uuid.UUID) (*dto.CategoryResponse, error) {
	if err := actor.require(model.RoleStoreKeeper, model.RoleAdmin); err != nil {
		return nil, err
	}

	var cat *model.AssetCategory
	err := runTx(ctx, s.categories.DB(), func(tx *gorm.DB) error {
		var err error
		cat, err = s.categories.LockByIDTx(tx, id)
		if err != nil {
			return notFoundOr(err, "asset_category", id)
		}
		if !cat.IsActive {
			return nil
		}

		var out int64
		if cat.TrackingMode == model.TrackingIndividual {
			out, err = s.items.CountInStatusTx(tx, cat.ID, model.ItemDispatched)
		} else {
			out, err = s.movements.CategoryOutstandingTx(tx, cat.ID)
		}
		if err != nil {
			return err
		}
		if out > 0 {
			return newConflict(ReasonActiveDispatchExists,
				"category %s still has %d unit(s) dispatched", cat.Code, out)
		}

		cat.IsActive = false
		return s.categories.UpdateTx(tx, cat)
	})
	if err != nil {
		return nil, err
	}
	s.cache.invalidate(ctx)

	resp := mapCategory(cat)
	return &resp, nil
}

func (s *registryService) GetCategory(ctx context.Context, id uuid.UUID) (*dto.CategoryDetailResponse, error) {
	cat, err := s.categories.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "asset_category", id)
	}

	resp := &dto.CategoryDetailResponse{
		CategoryResponse: mapCategory(cat),
		Items:            []dto.ItemResponse{},
	}
	if cat.TrackingMode == model.TrackingIndividual {
		items, err := s.items.ListByCategory(ctx, cat.ID, true)
		if err != nil {
			return nil, err
		}
		resp.Items = mapItems(items)
	}
	recent, err := s.movements.Recent(ctx, &cat.ID, recentMovementsLimit)
	if err != nil {
		return nil, err
	}
	resp.RecentMovements = mapMovements(recent)
	return resp, nil
}

func (s *registryService) ListCategories(ctx context.Context, filter dto.CategoryFilter) (*dto.CategoryListResponse, error) {
	cats, total, err := s.categories.List(ctx, repository.CategoryFilter{
		ActiveOnly:   filter.ActiveOnly,
		TrackingMode: filter.TrackingMode,
		Search:       strings.TrimSpace(filter.Search),
		Page:         filter.Page,
		Limit:        filter.Limit,
	})
	if err != nil {
		return nil, err
	}
	data := make([]dto.CategoryResponse, 0, len(cats))
	for i := range cats {
		data = append(data, mapCategory(&cats[i]))
	}
	return &dto.CategoryListResponse{
		Data:       data,
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages(total, filter.Limit),
	}, nil
}

func (s *registryService) CreateItem(ctx context.Context, actor Actor, categoryID uuid.UUID, req dto.CreateItemRequest) (*dto.ItemResponse, error) {
	if err := actor.require(model.RoleStoreKeeper, model.RoleAdmin); err != nil {
		return nil, err
	}
	cond := model.ConditionGood
	if req.Condition != "" {
		c, ok := model.ParseCondition(req.Condition)
		if !ok {
			return nil, newValidation("condition", "unknown condition")
		}
		cond = c
	}

	var (
		cat  *model.AssetCategory
		item *model.AssetItem
	)
	err := runTx(ctx, s.categories.DB(), func(tx *gorm.DB) error {
		var err error
		cat, err = s.categories.LockByIDTx(tx, categoryID)
		if err != nil {
			return notFoundOr(err, "asset_category", categoryID)
		}
		if cat.TrackingMode != model.TrackingIndividual {
			return newConflict(ReasonWrongTrackingMode, "category %s is tracked by quantity and has no items", cat.Code)
		}
		if !cat.IsActive {
			return newConflict(ReasonInactive, "category %s is inactive", cat.Code)
		}

		var code string
		if req.Code != nil && strings.TrimSpace(*req.Code) != "" {
			code = strings.ToUpper(strings.TrimSpace(*req.Code))
			taken, err := s.items.CodeExistsTx(tx, code)
			if err != nil {
				return err
			}
			if taken {
				return newConflict(ReasonDuplicateCode, "item code %s already exists", code)
			}
		} else {
			n, err := s.items.CountByCategoryTx(tx, cat.ID)
			if err != nil {
				return err
			}
			for attempt := 0; ; attempt++ {
				n++
				code = itemCode(cat.Code, n)
				taken, err := s.items.CodeExistsTx(tx, code)
				if err != nil {
					return err
				}
				if !taken {
					break
				}
				if attempt >= maxCodeAttempts {
					return newConflict(ReasonDuplicateCode, "no free item code under %s", cat.Code)
				}
			}
		}

		item = &model.AssetItem{
			CategoryID:       cat.ID,
			Code:             code,
			SerialNumber:     req.SerialNumber,
			Description:      req.Description,
			Notes:            req.Notes,
			CurrentStatus:    model.ItemAvailable,
			CurrentCondition: cond,
			IsActive:         true,
		}
		if err := s.items.CreateTx(tx, item); err != nil {
			return err
		}
		cat.TotalQuantity++
		cat.AvailableQuantity++
		return s.categories.UpdateTx(tx, cat)
	})
	if err != nil {
		return nil, err
	}
	s.cache.invalidate(ctx)

	item.Category = cat
	resp := mapItem(item)
	return &resp, nil
}

func (s *registryService) UpdateItem(ctx context.Context, actor Actor, id uuid.UUID, req dto.UpdateItemRequest) (*dto.ItemResponse, error) {
	if err := actor.require(model.RoleStoreKeeper, model.RoleAdmin); err != nil {
		return nil, err
	}

	var item *model.AssetItem
	err := runTx(ctx, s.categories.DB(), func(tx *gorm.DB) error {
		items, err := s.items.LockByIDsTx(tx, []uuid.UUID{id})
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return &NotFoundError{Entity: "asset_item", ID: id}
		}
		item = &items[0]
		if req.SerialNumber != nil {
			item.SerialNumber = req.SerialNumber
		}
		if req.Description != nil {
			item.Description = req.Description
		}
		if req.Notes != nil {
			item.Notes = req.Notes
		}
		return s.items.UpdateTx(tx, item)
	})
	if err != nil {
		return nil, err
	}
	resp := mapItem(item)
	return &resp, nil
}

func (s *registryService) GetItem(ctx context.Context, id uuid.UUID) (*dto.ItemResponse, error) {
	item, err := s.items.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "asset_item", id)
	}
	resp := mapItem(item)
	return &resp, nil
}

func (s *registryService) ListItems(ctx context.Context, filter dto.ItemFilter) (*dto.ItemListResponse, error) {
	f := repository.ItemFilter{
		Status:     filter.Status,
		ActiveOnly: filter.ActiveOnly,
		Search:     strings.TrimSpace(filter.Search),
		Page:       filter.Page,
		Limit:      filter.Limit,
	}
	var err error
	if f.CategoryID, err = parseOptionalUUID("category_id", filter.CategoryID); err != nil {
		return nil, err
	}
	if f.ProjectID, err = parseOptionalUUID("project_id", filter.ProjectID); err != nil {
		return nil, err
	}

	items, total, err := s.items.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return &dto.ItemListResponse{
		Data:       mapItems(items),
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages(total, filter.Limit),
	}, nil
}

func parseOptionalUUID(field, raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, newValidation(field, "must be a valid uuid")
	}
	return &id, nil
}

func parseUUID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, newValidation(field, "must be a valid uuid")
	}
	return id, nil
}
