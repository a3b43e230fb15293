package service_test

import (
	"testing"

	"metersquare/internal/dto"
	"metersquare/internal/model"
	"metersquare/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CategoryCodesAreDerivedAndUnique(t *testing.T) {
	f := newFixture(t)

	first := f.quantityCategory("Scaffolding Pipe", 1)
	second := f.quantityCategory("scaffold clamp", 1)
	third := f.quantityCategory("Échafaudage", 1)
	assert.Equal(t, "SCA", first.Code)
	assert.Equal(t, "SCA1", second.Code)
	assert.Equal(t, "ECH", third.Code)

	explicit := "pump01"
	cat, err := f.registry.CreateCategory(f.ctx, f.keeper, dto.CreateCategoryRequest{
		Code: &explicit, Name: "Water Pump", TrackingMode: "quantity",
	})
	require.NoError(t, err)
	assert.Equal(t, "PUMP01", cat.Code)
	assert.Equal(t, "pcs", cat.Unit)

	_, err = f.registry.CreateCategory(f.ctx, f.keeper, dto.CreateCategoryRequest{
		Code: &explicit, Name: "Another Pump", TrackingMode: "quantity",
	})
	var conflict *service.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, service.ReasonDuplicateCode, conflict.Reason)
}

func TestRegistry_CreateCategoryValidation(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name  string
		req   dto.CreateCategoryRequest
		field string
	}{
		{"blank name", dto.CreateCategoryRequest{Name: "  ", TrackingMode: "quantity"}, "name"},
		{"bad mode", dto.CreateCategoryRequest{Name: "Tarp", TrackingMode: "bulk"}, "tracking_mode"},
		{"negative total", dto.CreateCategoryRequest{Name: "Tarp", TrackingMode: "quantity", TotalQuantity: -1}, "total_quantity"},
		{"individual with total", dto.CreateCategoryRequest{Name: "Tarp", TrackingMode: "individual", TotalQuantity: 2}, "total_quantity"},
		{"negative price", dto.CreateCategoryRequest{Name: "Tarp", TrackingMode: "quantity", UnitPrice: decimal.NewFromInt(-5)}, "unit_price"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.registry.CreateCategory(f.ctx, f.keeper, tc.req)
			var verr *service.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tc.field)
		})
	}

	_, err := f.registry.CreateCategory(f.ctx, f.engineer, dto.CreateCategoryRequest{Name: "Tarp", TrackingMode: "quantity"})
	var aerr *service.AuthorizationError
	assert.ErrorAs(t, err, &aerr)
}

func TestRegistry_CreateItemRules(t *testing.T) {
	f := newFixture(t)
	qty := f.quantityCategory("Sandbags", 50)

	_, err := f.registry.CreateItem(f.ctx, f.keeper, uuid.MustParse(qty.ID), dto.CreateItemRequest{})
	var conflict *service.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, service.ReasonWrongTrackingMode, conflict.Reason)

	cat, items := f.individualCategory("Total Station", 1)
	code := "ts-special"
	it, err := f.registry.CreateItem(f.ctx, f.keeper, uuid.MustParse(cat.ID), dto.CreateItemRequest{Code: &code, Condition: "new"})
	require.NoError(t, err)
	assert.Equal(t, "TS-SPECIAL", it.Code)
	assert.Equal(t, "new", it.CurrentCondition)
	require.NotNil(t, it.Category)
	assert.Equal(t, 2, it.Category.TotalQuantity)

	_, err = f.registry.CreateItem(f.ctx, f.keeper, uuid.MustParse(cat.ID), dto.CreateItemRequest{Code: &items[0].Code})
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, service.ReasonDuplicateCode, conflict.Reason)

	_, err = f.registry.CreateItem(f.ctx, f.keeper, uuid.MustParse(cat.ID), dto.CreateItemRequest{Condition: "shiny"})
	var verr *service.ValidationError
	require.ErrorAs(t, err, &verr)

	f.requireConsistent()
}

func TestRegistry_UpdateCategoryAdjustsCounters(t *testing.T) {
	f := newFixture(t)
	cat := f.quantityCategory("Wheelbarrow", 5)
	id := uuid.MustParse(cat.ID)

	_, err := f.ledger.Dispatch(f.ctx, f.keeper, dto.DispatchRequest{
		CategoryID: cat.ID, ProjectID: f.project.String(), Quantity: 3,
	})
	require.NoError(t, err)

	total := 8
	updated, err := f.registry.UpdateCategory(f.ctx, f.keeper, id, dto.UpdateCategoryRequest{TotalQuantity: &total})
	require.NoError(t, err)
	assert.Equal(t, 8, updated.TotalQuantity)
	assert.Equal(t, 5, updated.AvailableQuantity)

	// 3 units are on site, so the total cannot drop below 3.
	total = 2
	_, err = f.registry.UpdateCategory(f.ctx, f.keeper, id, dto.UpdateCategoryRequest{TotalQuantity: &total})
	var verr *service.ValidationError
	require.ErrorAs(t, err, &verr)

	mode := "individual"
	_, err = f.registry.UpdateCategory(f.ctx, f.keeper, id, dto.UpdateCategoryRequest{TrackingMode: &mode})
	var conflict *service.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, service.ReasonWrongTrackingMode, conflict.Reason)

	f.requireConsistent()
}

func TestRegistry_DeactivateBlockedWhileDispatched(t *testing.T) {
	f := newFixture(t)
	cat, items := f.individualCategory("Compactor", 1)
	id := uuid.MustParse(cat.ID)

	_, err := f.ledger.Dispatch(f.ctx, f.keeper, dto.DispatchRequest{
		CategoryID: cat.ID, ProjectID: f.project.String(), ItemIDs: []string{items[0].ID},
	})
	require.NoError(t, err)

	_, err = f.registry.DeactivateCategory(f.ctx, f.keeper, id)
	var conflict *service.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, service.ReasonActiveDispatchExists, conflict.Reason)

	_, err = f.ledger.Return(f.ctx, f.keeper, dto.ReturnRequest{
		CategoryID: cat.ID, ProjectID: f.project.String(), ItemIDs: []string{items[0].ID},
	})
	require.NoError(t, err)

	resp, err := f.registry.DeactivateCategory(f.ctx, f.keeper, id)
	require.NoError(t, err)
	assert.False(t, resp.IsActive)

	// Inactive categories take no new dispatches or items.
	_, err = f.ledger.Dispatch(f.ctx, f.keeper, dto.DispatchRequest{
		CategoryID: cat.ID, ProjectID: f.project.String(), ItemIDs: []string{items[0].ID},
	})
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, service.ReasonInactive, conflict.Reason)

	_, err = f.registry.CreateItem(f.ctx, f.keeper, id, dto.CreateItemRequest{})
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, service.ReasonInactive, conflict.Reason)

	list, err := f.registry.ListCategories(f.ctx, dto.CategoryFilter{ActiveOnly: true, Page: 1, Limit: 50})
	require.NoError(t, err)
	assert.Empty(t, list.Data)
}

func TestRegistry_GetCategoryIncludesItemsAndMovements(t *testing.T) {
	f := newFixture(t)
	cat, items := f.individualCategory("Theodolite", 2)

	_, err := f.ledger.Dispatch(f.ctx, f.keeper, dto.DispatchRequest{
		CategoryID: cat.ID, ProjectID: f.project.String(), ItemIDs: []string{items[1].ID},
	})
	require.NoError(t, err)

	detail, err := f.registry.GetCategory(f.ctx, uuid.MustParse(cat.ID))
	require.NoError(t, err)
	assert.Len(t, detail.Items, 2)
	require.Len(t, detail.RecentMovements, 1)
	assert.Equal(t, items[1].ID, *detail.RecentMovements[0].ItemID)

	_, err = f.registry.GetCategory(f.ctx, uuid.New())
	var nf *service.NotFoundError
	assert.ErrorAs(t, err, &nf)

	dispatched, err := f.registry.ListItems(f.ctx, dto.ItemFilter{Status: string(model.ItemDispatched), Page: 1, Limit: 50})
	require.NoError(t, err)
	require.Len(t, dispatched.Data, 1)
	assert.Equal(t, items[1].Code, dispatched.Data[0].Code)
}

func TestRegistry_UpdateItemDescriptiveFieldsOnly(t *testing.T) {
	f := newFixture(t)
	_, items := f.individualCategory("Rotary Hammer", 1)
	serial := "RH-99812"

	it, err := f.registry.UpdateItem(f.ctx, f.keeper, uuid.MustParse(items[0].ID), dto.UpdateItemRequest{SerialNumber: &serial})
	require.NoError(t, err)
	require.NotNil(t, it.SerialNumber)
	assert.Equal(t, serial, *it.SerialNumber)
	assert.Equal(t, "available", it.CurrentStatus)

	_, err = f.registry.UpdateItem(f.ctx, f.keeper, uuid.New(), dto.UpdateItemRequest{})
	var nf *service.NotFoundError
	assert.ErrorAs(t, err, &nf)
}
