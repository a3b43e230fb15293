package service_test

import (
	"context"
	"testing"

	"metersquare/internal/dto"
	"metersquare/internal/model"
	"metersquare/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fixture wires every service over one memStore with one active project and
// one user per role.
type fixture struct {
	t        *testing.T
	ctx      context.Context
	store    *memStore
	notifier *mockNotifier

	registry    service.RegistryService
	ledger      service.LedgerService
	maintenance service.MaintenanceService
	requisition service.RequisitionService

	project uuid.UUID

	admin      service.Actor
	engineer   service.Actor
	manager    service.Actor
	production service.Actor
	keeper     service.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := newMemStore()
	n := &mockNotifier{}
	n.On("Notify", mock.Anything, mock.Anything).Return(nil).Maybe()

	f := &fixture{t: t, ctx: context.Background(), store: st, notifier: n}
	f.project = f.addProject("PRJ-001", true)

	f.admin = f.addUser("admin", model.RoleAdmin)
	f.engineer = f.addUser("engineer", model.RoleSiteEngineer)
	f.manager = f.addUser("manager", model.RoleProjectManager)
	f.production = f.addUser("production", model.RoleProductionManager)
	f.keeper = f.addUser("keeper", model.RoleStoreKeeper)

	repos := st.repos()
	f.registry = service.NewRegistryService(repos.Categories, repos.Items, repos.Movements, nil)
	f.ledger = service.NewLedgerService(repos, &memProjects{st}, nil)
	f.maintenance = service.NewMaintenanceService(repos, nil)
	f.requisition = service.NewRequisitionService(&memRequisitions{st}, repos, &memProjects{st}, &memUsers{st}, n, nil)
	return f
}

func (f *fixture) addProject(code string, active bool) uuid.UUID {
	p := model.Project{ID: uuid.New(), Code: code, Name: code, IsActive: active}
	f.store.projects[p.ID] = p
	return p.ID
}

func (f *fixture) addUser(username string, role model.Role) service.Actor {
	email := username + "@metersquare.test"
	u := model.User{
		ID: uuid.New(), Username: username, Name: username, Email: &email,
		PasswordHash: "x", Role: role, IsActive: true,
	}
	f.store.users[u.ID] = u
	return service.Actor{UserID: u.ID, Name: u.Name, Role: role}
}

func (f *fixture) assign(projectID uuid.UUID, a service.Actor) {
	f.store.assignments = append(f.store.assignments, model.ProjectAssignment{
		ID: uuid.New(), ProjectID: projectID, UserID: a.UserID, Role: a.Role,
	})
}

func (f *fixture) quantityCategory(name string, total int) *dto.CategoryResponse {
	f.t.Helper()
	cat, err := f.registry.CreateCategory(f.ctx, f.keeper, dto.CreateCategoryRequest{
		Name:          name,
		TrackingMode:  string(model.TrackingQuantity),
		TotalQuantity: total,
		UnitPrice:     decimal.NewFromInt(100),
	})
	require.NoError(f.t, err)
	return cat
}

// individualCategory creates the category plus n items in the store.
func (f *fixture) individualCategory(name string, n int) (*dto.CategoryResponse, []dto.ItemResponse) {
	f.t.Helper()
	cat, err := f.registry.CreateCategory(f.ctx, f.keeper, dto.CreateCategoryRequest{
		Name:         name,
		TrackingMode: string(model.TrackingIndividual),
		UnitPrice:    decimal.NewFromInt(2500),
	})
	require.NoError(f.t, err)
	catID := uuid.MustParse(cat.ID)

	items := make([]dto.ItemResponse, 0, n)
	for i := 0; i < n; i++ {
		it, err := f.registry.CreateItem(f.ctx, f.keeper, catID, dto.CreateItemRequest{})
		require.NoError(f.t, err)
		items = append(items, *it)
	}
	return cat, items
}

func (f *fixture) category(id string) model.AssetCategory {
	f.t.Helper()
	c, ok := f.store.categories[uuid.MustParse(id)]
	require.True(f.t, ok, "category %s missing", id)
	return c
}

func (f *fixture) item(id string) model.AssetItem {
	f.t.Helper()
	it, ok := f.store.items[uuid.MustParse(id)]
	require.True(f.t, ok, "item %s missing", id)
	return it
}

// requireConsistent runs the ledger verification and fails on any violation.
func (f *fixture) requireConsistent() {
	f.t.Helper()
	report, err := f.ledger.Verify(f.ctx)
	require.NoError(f.t, err)
	require.Empty(f.t, report.Violations)
}
