package service_test

import (
	"context"
	"sort"
	"strings"
	"time"

	"metersquare/internal/dto"
	"metersquare/internal/model"
	"metersquare/internal/repository"
	"metersquare/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"
)

// ── In-memory store shared by every repository stub ──────────────────────────
//
// Reads hand out copies and writes replace the stored value, so a service
// only changes state through UpdateTx/CreateTx like it would with Postgres.
// DB() returns nil, which makes runTx call the closure without a transaction.

type memStore struct {
	categories   map[uuid.UUID]model.AssetCategory
	items        map[uuid.UUID]model.AssetItem
	movements    []model.AssetMovement
	maintenance  map[uuid.UUID]model.AssetMaintenance
	requisitions map[uuid.UUID]model.Requisition
	events       []model.RequisitionEvent
	users        map[uuid.UUID]model.User
	projects     map[uuid.UUID]model.Project
	assignments  []model.ProjectAssignment
	seq          int64
	clock        time.Time
}

func newMemStore() *memStore {
	return &memStore{
		categories:   make(map[uuid.UUID]model.AssetCategory),
		items:        make(map[uuid.UUID]model.AssetItem),
		maintenance:  make(map[uuid.UUID]model.AssetMaintenance),
		requisitions: make(map[uuid.UUID]model.Requisition),
		users:        make(map[uuid.UUID]model.User),
		projects:     make(map[uuid.UUID]model.Project),
		clock:        time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
	}
}

// now is strictly increasing so ordering by CreatedAt is deterministic.
func (s *memStore) now() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memStore) repos() service.StockRepositories {
	return service.StockRepositories{
		Categories:  &memCategories{s},
		Items:       &memItems{s},
		Movements:   &memMovements{s},
		Maintenance: &memMaintenance{s},
	}
}

// ── Categories ───────────────────────────────────────────────────────────────

type memCategories struct{ s *memStore }

var _ repository.CategoryRepository = (*memCategories)(nil)

func (r *memCategories) CreateTx(_ *gorm.DB, c *model.AssetCategory) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = r.s.now()
	c.UpdatedAt = c.CreatedAt
	r.s.categories[c.ID] = *c
	return nil
}

func (r *memCategories) UpdateTx(_ *gorm.DB, c *model.AssetCategory) error {
	if _, ok := r.s.categories[c.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	c.UpdatedAt = r.s.now()
	r.s.categories[c.ID] = *c
	return nil
}

func (r *memCategories) FindByID(_ context.Context, id uuid.UUID) (*model.AssetCategory, error) {
	c, ok := r.s.categories[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (r *memCategories) FindByIDsTx(_ *gorm.DB, ids []uuid.UUID) ([]model.AssetCategory, error) {
	var out []model.AssetCategory
	for _, id := range ids {
		if c, ok := r.s.categories[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memCategories) LockByIDTx(_ *gorm.DB, id uuid.UUID) (*model.AssetCategory, error) {
	return r.FindByID(context.Background(), id)
}

func (r *memCategories) CodeExistsTx(_ *gorm.DB, code string) (bool, error) {
	for _, c := range r.s.categories {
		if c.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *memCategories) List(ctx context.Context, f repository.CategoryFilter) ([]model.AssetCategory, int64, error) {
	all, _ := r.ListAll(ctx)
	var out []model.AssetCategory
	for _, c := range all {
		if f.ActiveOnly && !c.IsActive {
			continue
		}
		if f.TrackingMode != "" && string(c.TrackingMode) != f.TrackingMode {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, c)
	}
	return out, int64(len(out)), nil
}

func (r *memCategories) ListAll(_ context.Context) ([]model.AssetCategory, error) {
	out := make([]model.AssetCategory, 0, len(r.s.categories))
	for _, c := range r.s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *memCategories) DB() *gorm.DB { return nil }

// ── Items ────────────────────────────────────────────────────────────────────

type memItems struct{ s *memStore }

var _ repository.ItemRepository = (*memItems)(nil)

func (r *memItems) CreateTx(_ *gorm.DB, it *model.AssetItem) error {
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	it.CreatedAt = r.s.now()
	it.UpdatedAt = it.CreatedAt
	r.s.items[it.ID] = *it
	return nil
}

func (r *memItems) UpdateTx(_ *gorm.DB, it *model.AssetItem) error {
	if _, ok := r.s.items[it.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	stored := *it
	stored.Category = nil
	stored.UpdatedAt = r.s.now()
	r.s.items[it.ID] = stored
	return nil
}

func (r *memItems) FindByID(_ context.Context, id uuid.UUID) (*model.AssetItem, error) {
	it, ok := r.s.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &it, nil
}

func (r *memItems) sorted(keep func(model.AssetItem) bool) []model.AssetItem {
	var out []model.AssetItem
	for _, it := range r.s.items {
		if keep(it) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (r *memItems) LockByIDsTx(_ *gorm.DB, ids []uuid.UUID) ([]model.AssetItem, error) {
	var out []model.AssetItem
	for _, id := range ids {
		if it, ok := r.s.items[id]; ok {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (r *memItems) LockAvailableTx(_ *gorm.DB, categoryID uuid.UUID, n int) ([]model.AssetItem, error) {
	out := r.sorted(func(it model.AssetItem) bool {
		return it.CategoryID == categoryID && it.IsActive && it.CurrentStatus == model.ItemAvailable
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (r *memItems) CodeExistsTx(_ *gorm.DB, code string) (bool, error) {
	for _, it := range r.s.items {
		if it.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *memItems) CountByCategoryTx(_ *gorm.DB, categoryID uuid.UUID) (int64, error) {
	var n int64
	for _, it := range r.s.items {
		if it.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

func (r *memItems) CountInStatusTx(_ *gorm.DB, categoryID uuid.UUID, status model.ItemStatus) (int64, error) {
	var n int64
	for _, it := range r.s.items {
		if it.CategoryID == categoryID && it.CurrentStatus == status {
			n++
		}
	}
	return n, nil
}

func (r *memItems) CountByStatus(_ context.Context) ([]repository.StatusCount, error) {
	type key struct {
		cat    uuid.UUID
		status model.ItemStatus
	}
	counts := make(map[key]int64)
	for _, it := range r.s.items {
		counts[key{it.CategoryID, it.CurrentStatus}]++
	}
	out := make([]repository.StatusCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, repository.StatusCount{CategoryID: k.cat, Status: k.status, Count: n})
	}
	return out, nil
}

func (r *memItems) List(_ context.Context, f repository.ItemFilter) ([]model.AssetItem, int64, error) {
	out := r.sorted(func(it model.AssetItem) bool {
		if f.CategoryID != nil && it.CategoryID != *f.CategoryID {
			return false
		}
		if f.ProjectID != nil && (it.CurrentProjectID == nil || *it.CurrentProjectID != *f.ProjectID) {
			return false
		}
		if f.Status != "" && string(it.CurrentStatus) != f.Status {
			return false
		}
		return !f.ActiveOnly || it.IsActive
	})
	return out, int64(len(out)), nil
}

func (r *memItems) ListByCategory(_ context.Context, categoryID uuid.UUID, activeOnly bool) ([]model.AssetItem, error) {
	return r.sorted(func(it model.AssetItem) bool {
		return it.CategoryID == categoryID && (!activeOnly || it.IsActive)
	}), nil
}

func (r *memItems) ListDispatched(_ context.Context, projectID *uuid.UUID) ([]model.AssetItem, error) {
	return r.sorted(func(it model.AssetItem) bool {
		if it.CurrentStatus != model.ItemDispatched {
			return false
		}
		return projectID == nil || (it.CurrentProjectID != nil && *it.CurrentProjectID == *projectID)
	}), nil
}

// ── Movements ────────────────────────────────────────────────────────────────

type memMovements struct{ s *memStore }

var _ repository.MovementRepository = (*memMovements)(nil)

func (r *memMovements) CreateTx(_ *gorm.DB, m *model.AssetMovement) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = r.s.now()
	r.s.movements = append(r.s.movements, *m)
	return nil
}

func (r *memMovements) List(_ context.Context, f repository.MovementFilter) ([]model.AssetMovement, int64, error) {
	var out []model.AssetMovement
	for _, m := range r.s.movements {
		switch {
		case f.CategoryID != nil && m.CategoryID != *f.CategoryID,
			f.ProjectID != nil && m.ProjectID != *f.ProjectID,
			f.RequisitionID != nil && (m.RequisitionID == nil || *m.RequisitionID != *f.RequisitionID),
			f.Type != "" && string(m.Type) != f.Type,
			f.From != nil && m.CreatedAt.Before(*f.From),
			f.To != nil && !m.CreatedAt.Before(*f.To):
			continue
		}
		out = append(out, m)
	}
	return out, int64(len(out)), nil
}

func (r *memMovements) Recent(_ context.Context, categoryID *uuid.UUID, n int) ([]model.AssetMovement, error) {
	var out []model.AssetMovement
	for i := len(r.s.movements) - 1; i >= 0 && len(out) < n; i-- {
		m := r.s.movements[i]
		if categoryID != nil && m.CategoryID != *categoryID {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *memMovements) OutstandingTx(_ *gorm.DB, categoryID, projectID uuid.UUID) (int64, error) {
	var n int64
	for _, m := range r.s.movements {
		if m.CategoryID != categoryID || m.ProjectID != projectID {
			continue
		}
		if m.Type == model.MovementDispatch {
			n += int64(m.Quantity)
		} else {
			n -= int64(m.Quantity)
		}
	}
	return n, nil
}

func (r *memMovements) CategoryOutstandingTx(_ *gorm.DB, categoryID uuid.UUID) (int64, error) {
	var n int64
	for _, m := range r.s.movements {
		if m.CategoryID != categoryID {
			continue
		}
		if m.Type == model.MovementDispatch {
			n += int64(m.Quantity)
		} else {
			n -= int64(m.Quantity)
		}
	}
	return n, nil
}

func (r *memMovements) Balances(_ context.Context, projectID *uuid.UUID) ([]repository.Balance, error) {
	type key struct{ cat, project uuid.UUID }
	acc := make(map[key]*repository.Balance)
	var order []key
	for _, m := range r.s.movements {
		if projectID != nil && m.ProjectID != *projectID {
			continue
		}
		k := key{m.CategoryID, m.ProjectID}
		b, ok := acc[k]
		if !ok {
			b = &repository.Balance{CategoryID: m.CategoryID, ProjectID: m.ProjectID}
			acc[k] = b
			order = append(order, k)
		}
		if m.Type == model.MovementDispatch {
			b.Dispatched += int64(m.Quantity)
		} else {
			b.Returned += int64(m.Quantity)
		}
	}
	out := make([]repository.Balance, 0, len(order))
	for _, k := range order {
		out = append(out, *acc[k])
	}
	return out, nil
}

// ── Maintenance ──────────────────────────────────────────────────────────────

type memMaintenance struct{ s *memStore }

var _ repository.MaintenanceRepository = (*memMaintenance)(nil)

func (r *memMaintenance) CreateTx(_ *gorm.DB, m *model.AssetMaintenance) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = r.s.now()
	m.UpdatedAt = m.CreatedAt
	r.s.maintenance[m.ID] = *m
	return nil
}

func (r *memMaintenance) UpdateTx(_ *gorm.DB, m *model.AssetMaintenance) error {
	if _, ok := r.s.maintenance[m.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	m.UpdatedAt = r.s.now()
	r.s.maintenance[m.ID] = *m
	return nil
}

func (r *memMaintenance) FindByID(_ context.Context, id uuid.UUID) (*model.AssetMaintenance, error) {
	m, ok := r.s.maintenance[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &m, nil
}

func (r *memMaintenance) LockByIDTx(_ *gorm.DB, id uuid.UUID) (*model.AssetMaintenance, error) {
	return r.FindByID(context.Background(), id)
}

func (r *memMaintenance) List(_ context.Context, f repository.MaintenanceFilter) ([]model.AssetMaintenance, int64, error) {
	var out []model.AssetMaintenance
	for _, m := range r.s.maintenance {
		if f.Status != "" && string(m.Status) != f.Status {
			continue
		}
		if f.CategoryID != nil && m.CategoryID != *f.CategoryID {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (r *memMaintenance) CountOpen(_ context.Context) (int64, error) {
	var n int64
	for _, m := range r.s.maintenance {
		if !m.Status.Terminal() {
			n++
		}
	}
	return n, nil
}

func (r *memMaintenance) OpenQuantities(_ context.Context) (map[uuid.UUID]int64, error) {
	out := make(map[uuid.UUID]int64)
	for _, m := range r.s.maintenance {
		if !m.Status.Terminal() {
			out[m.CategoryID] += int64(m.Quantity)
		}
	}
	return out, nil
}

func (r *memMaintenance) DB() *gorm.DB { return nil }

// ── Requisitions ─────────────────────────────────────────────────────────────

type memRequisitions struct{ s *memStore }

var _ repository.RequisitionRepository = (*memRequisitions)(nil)

func (r *memRequisitions) snapshot(req model.Requisition) model.Requisition {
	req.Lines = append([]model.RequisitionLine(nil), req.Lines...)
	req.Events = nil
	for _, e := range r.s.events {
		if e.RequisitionID == req.ID {
			req.Events = append(req.Events, e)
		}
	}
	return req
}

func (r *memRequisitions) CreateTx(_ *gorm.DB, req *model.Requisition) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	req.CreatedAt = r.s.now()
	req.UpdatedAt = req.CreatedAt
	for i := range req.Lines {
		req.Lines[i].ID = uuid.New()
		req.Lines[i].RequisitionID = req.ID
	}
	stored := *req
	stored.Lines = append([]model.RequisitionLine(nil), req.Lines...)
	r.s.requisitions[req.ID] = stored
	return nil
}

func (r *memRequisitions) UpdateTx(_ *gorm.DB, req *model.Requisition) error {
	cur, ok := r.s.requisitions[req.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored := *req
	stored.Lines = cur.Lines
	stored.Events = nil
	stored.UpdatedAt = r.s.now()
	r.s.requisitions[req.ID] = stored
	return nil
}

func (r *memRequisitions) ReplaceLinesTx(_ *gorm.DB, requisitionID uuid.UUID, lines []model.RequisitionLine) error {
	cur, ok := r.s.requisitions[requisitionID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for i := range lines {
		lines[i].ID = uuid.New()
		lines[i].RequisitionID = requisitionID
	}
	cur.Lines = append([]model.RequisitionLine(nil), lines...)
	r.s.requisitions[requisitionID] = cur
	return nil
}

func (r *memRequisitions) FindByID(_ context.Context, id uuid.UUID) (*model.Requisition, error) {
	req, ok := r.s.requisitions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	snap := r.snapshot(req)
	return &snap, nil
}

func (r *memRequisitions) LockByIDTx(_ *gorm.DB, id uuid.UUID) (*model.Requisition, error) {
	return r.FindByID(context.Background(), id)
}

func (r *memRequisitions) List(_ context.Context, f repository.RequisitionFilter) ([]model.Requisition, int64, error) {
	var out []model.Requisition
	for _, req := range r.s.requisitions {
		switch {
		case !f.IncludeDeleted && req.IsDeleted,
			f.Status != "" && string(req.Status) != f.Status,
			f.ProjectID != nil && req.ProjectID != *f.ProjectID,
			f.RequesterID != nil && req.RequesterID != *f.RequesterID:
			continue
		}
		out = append(out, r.snapshot(req))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (r *memRequisitions) AddEventTx(_ *gorm.DB, e *model.RequisitionEvent) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.CreatedAt = r.s.now()
	r.s.events = append(r.s.events, *e)
	return nil
}

func (r *memRequisitions) NextSequenceTx(_ *gorm.DB) (int64, error) {
	r.s.seq++
	return r.s.seq, nil
}

func (r *memRequisitions) DB() *gorm.DB { return nil }

// ── Users and projects ───────────────────────────────────────────────────────

type memUsers struct{ s *memStore }

var _ repository.UserRepository = (*memUsers)(nil)

func (r *memUsers) Upsert(_ context.Context, u *model.User) error {
	for id, existing := range r.s.users {
		if existing.Username == u.Username {
			u.ID = id
			u.CreatedAt = existing.CreatedAt
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
		u.CreatedAt = r.s.now()
	}
	r.s.users[u.ID] = *u
	return nil
}

func (r *memUsers) FindByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range r.s.users {
		if !u.IsActive {
			continue
		}
		if u.Username == username || (u.Email != nil && strings.EqualFold(*u.Email, username)) {
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memUsers) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := r.s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (r *memUsers) FindByIDs(_ context.Context, ids []uuid.UUID) ([]model.User, error) {
	var out []model.User
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok && u.IsActive {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *memUsers) ListActiveByRole(_ context.Context, role model.Role) ([]model.User, error) {
	var out []model.User
	for _, u := range r.s.users {
		if u.IsActive && u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

type memProjects struct{ s *memStore }

var _ repository.ProjectRepository = (*memProjects)(nil)

func (r *memProjects) FindByID(_ context.Context, id uuid.UUID) (*model.Project, error) {
	p, ok := r.s.projects[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (r *memProjects) AssignedUserIDs(_ context.Context, projectID uuid.UUID, role model.Role) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, a := range r.s.assignments {
		if a.ProjectID == projectID && a.Role == role {
			out = append(out, a.UserID)
		}
	}
	return out, nil
}

// ── Notifier mock ────────────────────────────────────────────────────────────

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Notify(ctx context.Context, n dto.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// events returns the event names passed to Notify, in call order.
func (m *mockNotifier) events() []string {
	var out []string
	for _, c := range m.Calls {
		if c.Method == "Notify" {
			out = append(out, c.Arguments.Get(1).(dto.Notification).Event)
		}
	}
	return out
}
