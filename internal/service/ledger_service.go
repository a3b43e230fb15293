package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"metersquare/internal/dto"
	"metersquare/internal/model"
	"metersquare/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// LedgerService books direct dispatches and returns and answers every
// "where is the stock" query.
type LedgerService interface {
	Dispatch(ctx context.Context, actor Actor, req dto.DispatchRequest) (*dto.MovementResultResponse, error)
	Return(ctx context.Context, actor Actor, req dto.ReturnRequest) (*dto.MovementResultResponse, error)
	ListMovements(ctx context.Context, filter dto.MovementFilter) (*dto.MovementListResponse, error)
	// Dispatched lists what every project currently holds.
	Dispatched(ctx context.Context) ([]dto.ProjectAssetsResponse, error)
	ProjectAssets(ctx context.Context, projectID uuid.UUID) (*dto.ProjectAssetsResponse, error)
	Dashboard(ctx context.Context) (*dto.DashboardResponse, error)
	// Verify recomputes the counters from the movement history and reports
	// every inconsistency.
	Verify(ctx context.Context) (*dto.LedgerReport, error)
}

type ledgerService struct {
	repos    StockRepositories
	projects repository.ProjectRepository
	ledger   *stockLedger
	cache    *DashboardCache
}

func NewLedgerService(repos StockRepositories, projects repository.ProjectRepository, cache *DashboardCache) LedgerService {
	return &ledgerService{
		repos:    repos,
		projects: projects,
		ledger:   newStockLedger(repos),
		cache:    cache,
	}
}

func ensureProject(ctx context.Context, projects repository.ProjectRepository, id uuid.UUID) error {
	p, err := projects.FindByID(ctx, id)
	if err != nil {
		return notFoundOr(err, "project", id)
	}
	if !p.IsActive {
		return newConflict(ReasonInactive, "project %s is not active", p.Code)
	}
	return nil
}

func parseUUIDs(field string, raw []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			return nil, newValidation(field, "must contain valid uuids")
		}
		out = append(out, id)
	}
	return out, nil
}

func mapLedgerResult(res *ledgerResult) *dto.MovementResultResponse {
	resp := &dto.MovementResultResponse{
		Movements:   mapMovements(res.Movements),
		Items:       mapItems(res.Items),
		Maintenance: mapMaintenances(res.Maintenance),
	}
	if len(res.Categories) > 0 {
		resp.Category = mapCategory(res.Categories[0])
	}
	for _, id := range res.Skipped {
		resp.SkippedItems = append(resp.SkippedItems, id.String())
	}
	return resp
}

func (s *ledgerService) Dispatch(ctx context.Context, actor Actor, req dto.DispatchRequest) (*dto.MovementResultResponse, error) {
	if err := actor.require(model.RoleStoreKeeper, model.RoleAdmin); err != nil {
		return nil, err
	}
	categoryID, err := parseUUID("category_id", req.CategoryID)
	if err != nil {
		return nil, err
	}
	projectID, err := parseUUID("project_id", req.ProjectID)
	if err != nil {
		return nil, err
	}
	itemIDs, err := parseUUIDs("item_ids", req.ItemIDs)
	if err != nil {
		return nil, err
	}
	if err := ensureProject(ctx, s.projects, projectID); err != nil {
		return nil, err
	}

	mc := movementContext{
		ProjectID:       projectID,
		Actor:           actor,
		ReferenceNumber: req.ReferenceNumber,
		Notes:           req.Notes,
	}
	var res *ledgerResult
	err = runTx(ctx, s.repos.Categories.DB(), func(tx *gorm.DB) error {
		var err error
		res, err = s.ledger.dispatchTx(tx, mc, []dispatchLine{{
			CategoryID: categoryID,
			ItemIDs:    itemIDs,
			Quantity:   req.Quantity,
		}})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.cache.invalidate(ctx)
	return mapLedgerResult(res), nil
}

func (s *ledgerService) Return(ctx context.Context, actor Actor, req dto.ReturnRequest) (*dto.MovementResultResponse, error) {
	if err := actor.require(model.RoleStoreKeeper, model.RoleAdmin); err != nil {
		return nil, err
	}
	categoryID, err := parseUUID("category_id", req.CategoryID)
	if err != nil {
		return nil, err
	}
	projectID, err := parseUUID("project_id", req.ProjectID)
	if err != nil {
		return nil, err
	}
	itemIDs, err := parseUUIDs("item_ids", req.ItemIDs)
	if err != nil {
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
	if _, err := s.projects.FindByID(ctx, projectID); err != nil {
		return nil, notFoundOr(err, "project", projectID)
	}

	mc := movementContext{
		ProjectID:       projectID,
		Actor:           actor,
		ReferenceNumber: req.ReferenceNumber,
		Notes:           req.Notes,
	}
	order := returnOrder{
		CategoryID:        categoryID,
		ItemIDs:           itemIDs,
		Quantity:          req.Quantity,
		DamagedQuantity:   req.DamagedQuantity,
		Condition:         cond,
		DamageDescription: req.DamageDescription,
	}
	var res *ledgerResult
	err = runTx(ctx, s.repos.Categories.DB(), func(tx *gorm.DB) error {
		var err error
		res, err = s.ledger.returnTx(tx, mc, order)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.cache.invalidate(ctx)
	return mapLedgerResult(res), nil
}

func (s *ledgerService) ListMovements(ctx context.Context, filter dto.MovementFilter) (*dto.MovementListResponse, error) {
	f := repository.MovementFilter{Type: filter.Type, Page: filter.Page, Limit: filter.Limit}
	var err error
	if f.CategoryID, err = parseOptionalUUID("category_id", filter.CategoryID); err != nil {
		return nil, err
	}
	if f.ProjectID, err = parseOptionalUUID("project_id", filter.ProjectID); err != nil {
		return nil, err
	}
	if filter.From != "" {
		from, err := time.Parse(dateLayout, filter.From)
		if err != nil {
			return nil, newValidation("from", "must be YYYY-MM-DD")
		}
		f.From = &from
	}
	if filter.To != "" {
		to, err := time.Parse(dateLayout, filter.To)
		if err != nil {
			return nil, newValidation("to", "must be YYYY-MM-DD")
		}
		// inclusive end date
		to = to.AddDate(0, 0, 1)
		f.To = &to
	}

	ms, total, err := s.repos.Movements.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return &dto.MovementListResponse{
		Data:       mapMovements(ms),
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages(total, filter.Limit),
	}, nil
}

func (s *ledgerService) Dispatched(ctx context.Context) ([]dto.ProjectAssetsResponse, error) {
	return s.holdings(ctx, nil)
}

func (s *ledgerService) ProjectAssets(ctx context.Context, projectID uuid.UUID) (*dto.ProjectAssetsResponse, error) {
	if _, err := s.projects.FindByID(ctx, projectID); err != nil {
		return nil, notFoundOr(err, "project", projectID)
	}
	groups, err := s.holdings(ctx, &projectID)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return &dto.ProjectAssetsResponse{ProjectID: projectID.String(), Assets: []dto.ProjectAssetLine{}}, nil
	}
	return &groups[0], nil
}

// holdings combines item status (individual mode) with the ledger balance
// (quantity mode) into per-project asset lines.
func (s *ledgerService) holdings(ctx context.Context, projectID *uuid.UUID) ([]dto.ProjectAssetsResponse, error) {
	cats, err := s.repos.Categories.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*model.AssetCategory, len(cats))
	for i := range cats {
		byID[cats[i].ID] = &cats[i]
	}

	type key struct{ project, category uuid.UUID }
	lines := make(map[key]*dto.ProjectAssetLine)
	lineFor := func(project uuid.UUID, cat *model.AssetCategory) *dto.ProjectAssetLine {
		k := key{project, cat.ID}
		if l, ok := lines[k]; ok {
			return l
		}
		l := &dto.ProjectAssetLine{
			CategoryID:   cat.ID.String(),
			CategoryCode: cat.Code,
			CategoryName: cat.Name,
			TrackingMode: string(cat.TrackingMode),
		}
		lines[k] = l
		return l
	}

	balances, err := s.repos.Movements.Balances(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for _, b := range balances {
		cat, ok := byID[b.CategoryID]
		if !ok || cat.TrackingMode != model.TrackingQuantity || b.Outstanding() <= 0 {
			continue
		}
		lineFor(b.ProjectID, cat).Quantity += b.Outstanding()
	}

	items, err := s.repos.Items.ListDispatched(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		it := &items[i]
		cat, ok := byID[it.CategoryID]
		if !ok || it.CurrentProjectID == nil {
			continue
		}
		l := lineFor(*it.CurrentProjectID, cat)
		l.Quantity++
		l.Items = append(l.Items, mapItem(it))
	}

	byProject := make(map[uuid.UUID]*dto.ProjectAssetsResponse)
	for k, l := range lines {
		p, ok := byProject[k.project]
		if !ok {
			p = &dto.ProjectAssetsResponse{ProjectID: k.project.String()}
			byProject[k.project] = p
		}
		p.TotalUnits += l.Quantity
		p.Assets = append(p.Assets, *l)
	}

	out := make([]dto.ProjectAssetsResponse, 0, len(byProject))
	for _, p := range byProject {
		sort.Slice(p.Assets, func(i, j int) bool { return p.Assets[i].CategoryCode < p.Assets[j].CategoryCode })
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProjectID < out[j].ProjectID })
	return out, nil
}

func (s *ledgerService) Dashboard(ctx context.Context) (*dto.DashboardResponse, error) {
	if cached, ok := s.cache.get(ctx); ok {
		return cached, nil
	}

	cats, err := s.repos.Categories.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	d := &dto.DashboardResponse{TotalValuation: decimal.Zero}
	for i := range cats {
		c := &cats[i]
		if !c.IsActive {
			continue
		}
		d.CategoryCount++
		d.TotalValuation = d.TotalValuation.Add(c.Valuation())
		d.TotalQuantity += int64(c.TotalQuantity)
		d.TotalAvailable += int64(c.AvailableQuantity)
	}

	balances, err := s.repos.Movements.Balances(ctx, nil)
	if err != nil {
		return nil, err
	}
	for _, b := range balances {
		if b.Outstanding() > 0 {
			d.TotalDispatched += b.Outstanding()
		}
	}

	if d.PendingMaintenance, err = s.repos.Maintenance.CountOpen(ctx); err != nil {
		return nil, err
	}
	recent, err := s.repos.Movements.Recent(ctx, nil, recentMovementsLimit)
	if err != nil {
		return nil, err
	}
	d.RecentMovements = mapMovements(recent)

	s.cache.set(ctx, d)
	return d, nil
}

func (s *ledgerService) Verify(ctx context.Context) (*dto.LedgerReport, error) {
	cats, err := s.repos.Categories.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	balances, err := s.repos.Movements.Balances(ctx, nil)
	if err != nil {
		return nil, err
	}
	statusCounts, err := s.repos.Items.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	openMaint, err := s.repos.Maintenance.OpenQuantities(ctx)
	if err != nil {
		return nil, err
	}

	outstanding := make(map[uuid.UUID]int64)
	report := &dto.LedgerReport{CheckedCategories: len(cats), Violations: []dto.LedgerViolation{}}
	codes := make(map[uuid.UUID]string, len(cats))
	for _, c := range cats {
		codes[c.ID] = c.Code
	}
	for _, b := range balances {
		outstanding[b.CategoryID] += b.Outstanding()
		if b.Outstanding() < 0 {
			project := b.ProjectID.String()
			report.Violations = append(report.Violations, dto.LedgerViolation{
				CategoryID:   b.CategoryID.String(),
				CategoryCode: codes[b.CategoryID],
				ProjectID:    &project,
				Check:        "negative_outstanding",
				Detail:       fmt.Sprintf("returned %d but dispatched only %d", b.Returned, b.Dispatched),
			})
		}
	}
	counts := make(map[uuid.UUID]map[model.ItemStatus]int64)
	for _, sc := range statusCounts {
		if counts[sc.CategoryID] == nil {
			counts[sc.CategoryID] = make(map[model.ItemStatus]int64)
		}
		counts[sc.CategoryID][sc.Status] = sc.Count
	}

	for i := range cats {
		c := &cats[i]
		violate := func(check, format string, args ...any) {
			report.Violations = append(report.Violations, dto.LedgerViolation{
				CategoryID:   c.ID.String(),
				CategoryCode: c.Code,
				Check:        check,
				Detail:       fmt.Sprintf(format, args...),
			})
		}
		if err := checkCounters(c); err != nil {
			violate("counter_bounds", "available=%d total=%d", c.AvailableQuantity, c.TotalQuantity)
		}

		switch c.TrackingMode {
		case model.TrackingIndividual:
			st := counts[c.ID]
			live := st[model.ItemAvailable] + st[model.ItemDispatched] + st[model.ItemMaintenance]
			if int64(c.TotalQuantity) != live {
				violate("individual_total", "total=%d but %d items are not retired", c.TotalQuantity, live)
			}
			if int64(c.AvailableQuantity) != st[model.ItemAvailable] {
				violate("individual_available", "available=%d but %d items are available", c.AvailableQuantity, st[model.ItemAvailable])
			}
			if st[model.ItemDispatched] != outstanding[c.ID] {
				violate("individual_outstanding", "%d items dispatched but ledger shows %d outstanding", st[model.ItemDispatched], outstanding[c.ID])
			}
		case model.TrackingQuantity:
			out := int64(c.TotalQuantity - c.AvailableQuantity)
			expected := outstanding[c.ID] + openMaint[c.ID]
			if out != expected {
				violate("quantity_balance", "total-available=%d but outstanding+maintenance=%d", out, expected)
			}
		}
	}
	return report, nil
}
