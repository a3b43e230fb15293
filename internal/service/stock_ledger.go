package service

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"metersquare/internal/model"
	"metersquare/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// stockLedger is the single writer of category counters and item status.
// Direct dispatch/return, maintenance resolution and requisition dispatch all
// go through it. Every method expects an open transaction and locks the
// category row before the items it touches.
type stockLedger struct {
	categories  repository.CategoryRepository
	items       repository.ItemRepository
	movements   repository.MovementRepository
	maintenance repository.MaintenanceRepository
}

// StockRepositories groups the repositories behind the stock ledger.
type StockRepositories struct {
	Categories  repository.CategoryRepository
	Items       repository.ItemRepository
	Movements   repository.MovementRepository
	Maintenance repository.MaintenanceRepository
}

func newStockLedger(r StockRepositories) *stockLedger {
	return &stockLedger{
		categories:  r.Categories,
		items:       r.Items,
		movements:   r.Movements,
		maintenance: r.Maintenance,
	}
}

// movementContext is shared by every movement one operation writes.
type movementContext struct {
	ProjectID       uuid.UUID
	Actor           Actor
	ReferenceNumber *string
	RequisitionID   *uuid.UUID
	Notes           *string
}

type dispatchLine struct {
	CategoryID uuid.UUID
	ItemIDs    []uuid.UUID
	Quantity   int
	// AutoSelect takes the lowest-coded available items of an
	// individual-mode category instead of explicit ItemIDs.
	AutoSelect bool
}

type returnOrder struct {
	CategoryID        uuid.UUID
	ItemIDs           []uuid.UUID
	Quantity          int
	DamagedQuantity   int
	Condition         model.Condition
	DamageDescription *string
}

// ledgerResult is everything one ledger operation wrote.
type ledgerResult struct {
	Categories  []*model.AssetCategory
	Movements   []model.AssetMovement
	Items       []model.AssetItem
	Maintenance []model.AssetMaintenance
	Skipped     []uuid.UUID
}

func notFoundOr(err error, entity string, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &NotFoundError{Entity: entity, ID: id}
	}
	return err
}

func checkCounters(c *model.AssetCategory) error {
	if c.AvailableQuantity < 0 || c.AvailableQuantity > c.TotalQuantity {
		return fmt.Errorf("counter invariant broken on %s: available=%d total=%d",
			c.Code, c.AvailableQuantity, c.TotalQuantity)
	}
	return nil
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// mergeDispatchLines folds lines of the same category together and orders
// them by category id, which is also the lock order.
func mergeDispatchLines(lines []dispatchLine) []dispatchLine {
	byCat := make(map[uuid.UUID]*dispatchLine, len(lines))
	for _, l := range lines {
		if cur, ok := byCat[l.CategoryID]; ok {
			cur.Quantity += l.Quantity
			cur.ItemIDs = append(cur.ItemIDs, l.ItemIDs...)
			cur.AutoSelect = cur.AutoSelect || l.AutoSelect
			continue
		}
		cp := l
		cp.ItemIDs = append([]uuid.UUID(nil), l.ItemIDs...)
		byCat[l.CategoryID] = &cp
	}
	out := make([]dispatchLine, 0, len(byCat))
	for _, l := range byCat {
		l.ItemIDs = dedupeIDs(l.ItemIDs)
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CategoryID.String() < out[j].CategoryID.String()
	})
	return out
}

func (l *stockLedger) newMovement(mc movementContext, categoryID uuid.UUID, itemID *uuid.UUID, typ model.MovementType, qty int) model.AssetMovement {
	return model.AssetMovement{
		CategoryID:      categoryID,
		ItemID:          itemID,
		Type:            typ,
		Quantity:        qty,
		ProjectID:       mc.ProjectID,
		ActorID:         mc.Actor.UserID,
		ActorRole:       mc.Actor.Role,
		ReferenceNumber: mc.ReferenceNumber,
		RequisitionID:   mc.RequisitionID,
		Notes:           mc.Notes,
	}
}

// dispatchTx validates every line before writing anything: all unavailable
// items and all shortages are collected and reported together, so a failed
// dispatch never leaves a partial deduction behind.
func (l *stockLedger) dispatchTx(tx *gorm.DB, mc movementContext, lines []dispatchLine) (*ledgerResult, error) {
	type planned struct {
		cat   *model.AssetCategory
		line  dispatchLine
		items []model.AssetItem
	}

	var (
		plan        []planned
		unavailable []UnavailableItem
		shortages   []Shortage
	)

	for _, line := range mergeDispatchLines(lines) {
		cat, err := l.categories.LockByIDTx(tx, line.CategoryID)
		if err != nil {
			return nil, notFoundOr(err, "asset_category", line.CategoryID)
		}
		if !cat.IsActive {
			return nil, newConflict(ReasonInactive, "category %s is inactive", cat.Code)
		}
		p := planned{cat: cat, line: line}

		switch cat.TrackingMode {
		case model.TrackingQuantity:
			if len(line.ItemIDs) > 0 {
				return nil, newConflict(ReasonWrongTrackingMode, "category %s is tracked by quantity, item_ids are not accepted", cat.Code)
			}
			if line.Quantity <= 0 {
				return nil, newValidation("quantity", "must be greater than zero")
			}
			if line.Quantity > cat.AvailableQuantity {
				shortages = append(shortages, Shortage{
					CategoryID: cat.ID, CategoryCode: cat.Code,
					Requested: line.Quantity, Available: cat.AvailableQuantity,
				})
			}

		case model.TrackingIndividual:
			if line.AutoSelect && len(line.ItemIDs) == 0 {
				if line.Quantity <= 0 {
					return nil, newValidation("quantity", "must be greater than zero")
				}
				items, err := l.items.LockAvailableTx(tx, cat.ID, line.Quantity)
				if err != nil {
					return nil, err
				}
				if len(items) < line.Quantity {
					shortages = append(shortages, Shortage{
						CategoryID: cat.ID, CategoryCode: cat.Code,
						Requested: line.Quantity, Available: len(items),
					})
				}
				p.items = items
				break
			}
			if len(line.ItemIDs) == 0 {
				return nil, newValidation("item_ids", "required for individually tracked categories")
			}
			items, err := l.items.LockByIDsTx(tx, line.ItemIDs)
			if err != nil {
				return nil, err
			}
			found := make(map[uuid.UUID]bool, len(items))
			for _, it := range items {
				found[it.ID] = true
			}
			for _, id := range line.ItemIDs {
				if !found[id] {
					return nil, &NotFoundError{Entity: "asset_item", ID: id}
				}
			}
			for _, it := range items {
				switch {
				case it.CategoryID != cat.ID:
					unavailable = append(unavailable, UnavailableItem{
						ItemID: it.ID, Code: it.Code, Status: string(it.CurrentStatus),
						Reason: "belongs to another category",
					})
				case !it.IsActive || it.CurrentStatus != model.ItemAvailable:
					unavailable = append(unavailable, UnavailableItem{
						ItemID: it.ID, Code: it.Code, Status: string(it.CurrentStatus),
					})
				}
			}
			p.items = items

		default:
			return nil, fmt.Errorf("category %s has unknown tracking mode %q", cat.Code, cat.TrackingMode)
		}
		plan = append(plan, p)
	}

	if len(unavailable) > 0 {
		return nil, &ItemUnavailableError{Items: unavailable}
	}
	if len(shortages) > 0 {
		return nil, &InsufficientStockError{Shortages: shortages}
	}

	res := &ledgerResult{}
	for _, p := range plan {
		if p.cat.TrackingMode == model.TrackingQuantity {
			mv := l.newMovement(mc, p.cat.ID, nil, model.MovementDispatch, p.line.Quantity)
			if err := l.movements.CreateTx(tx, &mv); err != nil {
				return nil, err
			}
			res.Movements = append(res.Movements, mv)
			p.cat.AvailableQuantity -= p.line.Quantity
		} else {
			for i := range p.items {
				it := &p.items[i]
				cond := it.CurrentCondition
				mv := l.newMovement(mc, p.cat.ID, &it.ID, model.MovementDispatch, 1)
				mv.ConditionBefore = &cond
				mv.ConditionAfter = &cond
				if err := l.movements.CreateTx(tx, &mv); err != nil {
					return nil, err
				}
				project := mc.ProjectID
				it.CurrentStatus = model.ItemDispatched
				it.CurrentProjectID = &project
				if err := l.items.UpdateTx(tx, it); err != nil {
					return nil, err
				}
				res.Movements = append(res.Movements, mv)
				res.Items = append(res.Items, *it)
			}
			p.cat.AvailableQuantity -= len(p.items)
		}
		if err := checkCounters(p.cat); err != nil {
			return nil, err
		}
		if err := l.categories.UpdateTx(tx, p.cat); err != nil {
			return nil, err
		}
		res.Categories = append(res.Categories, p.cat)
	}
	return res, nil
}

// returnTx books a return against one category. Degraded units are routed
// into maintenance instead of back into available stock.
func (l *stockLedger) returnTx(tx *gorm.DB, mc movementContext, order returnOrder) (*ledgerResult, error) {
	cat, err := l.categories.LockByIDTx(tx, order.CategoryID)
	if err != nil {
		return nil, notFoundOr(err, "asset_category", order.CategoryID)
	}
	res := &ledgerResult{Categories: []*model.AssetCategory{cat}}

	switch cat.TrackingMode {
	case model.TrackingIndividual:
		if err := l.returnItemsTx(tx, mc, cat, order, res); err != nil {
			return nil, err
		}
	case model.TrackingQuantity:
		if err := l.returnQuantityTx(tx, mc, cat, order, res); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("category %s has unknown tracking mode %q", cat.Code, cat.TrackingMode)
	}

	if err := checkCounters(cat); err != nil {
		return nil, err
	}
	if err := l.categories.UpdateTx(tx, cat); err != nil {
		return nil, err
	}
	return res, nil
}

func (l *stockLedger) returnItemsTx(tx *gorm.DB, mc movementContext, cat *model.AssetCategory, order returnOrder, res *ledgerResult) error {
	ids := dedupeIDs(order.ItemIDs)
	if len(ids) == 0 {
		return newValidation("item_ids", "required for individually tracked categories")
	}
	items, err := l.items.LockByIDsTx(tx, ids)
	if err != nil {
		return err
	}
	found := make(map[uuid.UUID]bool, len(items))
	for _, it := range items {
		found[it.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return &NotFoundError{Entity: "asset_item", ID: id}
		}
	}

	for i := range items {
		it := &items[i]
		eligible := it.CategoryID == cat.ID &&
			it.CurrentStatus == model.ItemDispatched &&
			it.CurrentProjectID != nil && *it.CurrentProjectID == mc.ProjectID
		if !eligible {
			res.Skipped = append(res.Skipped, it.ID)
			continue
		}

		before := it.CurrentCondition
		after := order.Condition
		mv := l.newMovement(mc, cat.ID, &it.ID, model.MovementReturn, 1)
		mv.ConditionBefore = &before
		mv.ConditionAfter = &after
		if err := l.movements.CreateTx(tx, &mv); err != nil {
			return err
		}
		res.Movements = append(res.Movements, mv)

		it.CurrentProjectID = nil
		it.CurrentCondition = after
		if after.Degraded() {
			it.CurrentStatus = model.ItemMaintenance
			m := l.newMaintenance(mc, cat.ID, &it.ID, &mv.ID, 1, order.DamageDescription)
			if err := l.maintenance.CreateTx(tx, &m); err != nil {
				return err
			}
			res.Maintenance = append(res.Maintenance, m)
		} else {
			it.CurrentStatus = model.ItemAvailable
			cat.AvailableQuantity++
		}
		if err := l.items.UpdateTx(tx, it); err != nil {
			return err
		}
		res.Items = append(res.Items, *it)
	}

	if len(res.Movements) == 0 {
		return newValidation("item_ids", "none of the items is dispatched to this project")
	}
	return nil
}

func (l *stockLedger) returnQuantityTx(tx *gorm.DB, mc movementContext, cat *model.AssetCategory, order returnOrder, res *ledgerResult) error {
	if len(order.ItemIDs) > 0 {
		return newConflict(ReasonWrongTrackingMode, "category %s is tracked by quantity, item_ids are not accepted", cat.Code)
	}
	if order.Quantity <= 0 {
		return newValidation("quantity", "must be greater than zero")
	}
	if order.DamagedQuantity < 0 || order.DamagedQuantity > order.Quantity {
		return newValidation("damaged_quantity", "must be between 0 and quantity")
	}

	outstanding, err := l.movements.OutstandingTx(tx, cat.ID, mc.ProjectID)
	if err != nil {
		return err
	}
	if int64(order.Quantity) > outstanding {
		return newConflict(ReasonExceedsOutstanding,
			"cannot return %d of %s: only %d outstanding at project %s",
			order.Quantity, cat.Code, outstanding, mc.ProjectID)
	}

	after := order.Condition
	mv := l.newMovement(mc, cat.ID, nil, model.MovementReturn, order.Quantity)
	mv.ConditionAfter = &after
	if err := l.movements.CreateTx(tx, &mv); err != nil {
		return err
	}
	res.Movements = append(res.Movements, mv)

	cat.AvailableQuantity += order.Quantity - order.DamagedQuantity
	if order.DamagedQuantity > 0 {
		m := l.newMaintenance(mc, cat.ID, nil, &mv.ID, order.DamagedQuantity, order.DamageDescription)
		if err := l.maintenance.CreateTx(tx, &m); err != nil {
			return err
		}
		res.Maintenance = append(res.Maintenance, m)
	}
	return nil
}

func (l *stockLedger) newMaintenance(mc movementContext, categoryID uuid.UUID, itemID, movementID *uuid.UUID, qty int, issue *string) model.AssetMaintenance {
	project := mc.ProjectID
	return model.AssetMaintenance{
		CategoryID:       categoryID,
		ItemID:           itemID,
		ReturnMovementID: movementID,
		ProjectID:        &project,
		Quantity:         qty,
		Status:           model.MaintenancePending,
		IssueDescription: issue,
		ReportedBy:       mc.Actor.UserID,
	}
}

// resolveMaintenanceTx applies the counter effect of a terminal maintenance
// transition. The caller has locked m and checked it is not terminal yet.
func (l *stockLedger) resolveMaintenanceTx(tx *gorm.DB, m *model.AssetMaintenance, to model.MaintenanceStatus, result model.Condition) (*model.AssetCategory, *model.AssetItem, error) {
	cat, err := l.categories.LockByIDTx(tx, m.CategoryID)
	if err != nil {
		return nil, nil, notFoundOr(err, "asset_category", m.CategoryID)
	}

	var item *model.AssetItem
	if m.ItemID != nil {
		items, err := l.items.LockByIDsTx(tx, []uuid.UUID{*m.ItemID})
		if err != nil {
			return nil, nil, err
		}
		if len(items) == 0 {
			return nil, nil, &NotFoundError{Entity: "asset_item", ID: *m.ItemID}
		}
		item = &items[0]
	}

	switch to {
	case model.MaintenanceCompleted:
		cat.AvailableQuantity += m.Quantity
		if item != nil {
			item.CurrentStatus = model.ItemAvailable
			item.CurrentCondition = result
		}
	case model.MaintenanceWrittenOff:
		cat.TotalQuantity -= m.Quantity
		if item != nil {
			item.CurrentStatus = model.ItemRetired
			item.IsActive = false
		}
	default:
		return nil, nil, fmt.Errorf("maintenance status %q is not terminal", to)
	}

	if err := checkCounters(cat); err != nil {
		return nil, nil, err
	}
	if item != nil {
		if err := l.items.UpdateTx(tx, item); err != nil {
			return nil, nil, err
		}
	}
	if err := l.categories.UpdateTx(tx, cat); err != nil {
		return nil, nil, err
	}

	now := time.Now()
	m.Status = to
	m.ResolvedAt = &now
	return cat, item, nil
}
