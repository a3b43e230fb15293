//go:build integration

package router_test

// End-to-end tests against real Postgres + Redis via testcontainers.
// Run with: go test -tags integration ./internal/router/... -v

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"metersquare/internal/config"
	"metersquare/internal/infra"
	"metersquare/internal/model"
	"metersquare/internal/repository"
	"metersquare/internal/router"
	"metersquare/internal/service"
	"metersquare/internal/worker"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"gorm.io/gorm"
)

// ── Helpers ──────────────────────────────────────────────────────────────────

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func do(t *testing.T, srv *httptest.Server, method, path string, body *bytes.Buffer, token string) *http.Response {
	t.Helper()
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequest(method, srv.URL+path, body)
	} else {
		req, err = http.NewRequest(method, srv.URL+path, nil)
	}
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

// expect asserts the status and decodes the body into dest when non-nil.
func expect(t *testing.T, resp *http.Response, status int, dest any) {
	t.Helper()
	if resp.StatusCode != status {
		var body map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		require.Failf(t, "unexpected status", "want %d, got %d: %v", status, resp.StatusCode, body)
	}
	if dest == nil {
		resp.Body.Close()
		return
	}
	decodeJSON(t, resp, dest)
}

// ── Test Suite Setup ─────────────────────────────────────────────────────────

const seedPassword = "e2e-password-2026"

type testEnv struct {
	server  *httptest.Server
	db      *gorm.DB
	rdb     *redis.Client
	project string
	tokens  map[model.Role]string
}

func (e *testEnv) token(r model.Role) string { return e.tokens[r] }

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		tcPostgres.WithDatabase("metersquare_test"),
		tcPostgres.WithUsername("metersquare"),
		tcPostgres.WithPassword("metersquare"),
		testcontainers.WithWaitStrategy(tcPostgres.BasicWaitStrategies()...),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })
	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rdC, err := tcRedis.RunContainer(ctx, testcontainers.WithImage("redis:7-alpine"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })
	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := &config.Config{
		Port:                     8000,
		Env:                      "test",
		JWTSecret:                "e2e-secret-key-of-enough-length",
		JWTExpirationHours:       8,
		JWTRefreshHours:          24,
		DatabaseURL:              pgURL,
		RedisURL:                 rdURL,
		LockTimeoutMS:            3000,
		DashboardCacheTTLSeconds: 60,
		RateLimitPerMinute:       100,
	}

	require.NoError(t, infra.RunMigrations(cfg.DatabaseURL, false))
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	require.NoError(t, err)
	rdb, err := infra.NewRedis(cfg.RedisURL)
	require.NoError(t, err)

	// Users come from the seed command path; projects from the external directory.
	auth := service.NewAuthService(repository.NewUserRepository(db), cfg)
	users := map[model.Role]string{}
	for _, role := range []model.Role{
		model.RoleAdmin, model.RoleSiteEngineer, model.RoleProjectManager,
		model.RoleProductionManager, model.RoleStoreKeeper,
	} {
		email := string(role) + "@e2e.test"
		u, err := auth.SeedUser(ctx, string(role), "E2E "+string(role), &email, role, seedPassword)
		require.NoError(t, err)
		users[role] = u.ID
	}
	projectID := uuid.NewString()
	require.NoError(t, db.Exec(`INSERT INTO projects (id, code, name) VALUES (?, 'PRJ-E2E', 'E2E Tower')`, projectID).Error)
	require.NoError(t, db.Exec(`INSERT INTO project_assignments (project_id, user_id, role) VALUES (?, ?, 'project_manager')`,
		projectID, users[model.RoleProjectManager]).Error)

	r := router.New(cfg, db, rdb, router.Deps{Notifier: worker.NewDispatcher(rdb)})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	env := &testEnv{server: srv, db: db, rdb: rdb, project: projectID, tokens: map[model.Role]string{}}
	for role := range users {
		resp := do(t, srv, "POST", "/v1/auth/login",
			jsonBody(t, map[string]string{"username": string(role), "password": seedPassword}), "")
		var body struct {
			AccessToken string `json:"access_token"`
		}
		expect(t, resp, http.StatusOK, &body)
		require.NotEmpty(t, body.AccessToken)
		env.tokens[role] = body.AccessToken
	}
	return env
}

type category struct {
	ID                string `json:"id"`
	Code              string `json:"code"`
	TotalQuantity     int    `json:"total_quantity"`
	AvailableQuantity int    `json:"available_quantity"`
}

func (e *testEnv) createCategory(t *testing.T, name, mode string, total int) category {
	t.Helper()
	resp := do(t, e.server, "POST", "/v1/categories", jsonBody(t, map[string]any{
		"name": name, "tracking_mode": mode, "total_quantity": total, "unit_price": 100,
	}), e.token(model.RoleStoreKeeper))
	var c category
	expect(t, resp, http.StatusCreated, &c)
	return c
}

func (e *testEnv) createItem(t *testing.T, categoryID string) string {
	t.Helper()
	resp := do(t, e.server, "POST", "/v1/categories/"+categoryID+"/items",
		jsonBody(t, map[string]any{"condition": "good"}), e.token(model.RoleStoreKeeper))
	var it struct {
		ID string `json:"id"`
	}
	expect(t, resp, http.StatusCreated, &it)
	return it.ID
}

func (e *testEnv) getCategory(t *testing.T, id string) category {
	t.Helper()
	var c category
	expect(t, do(t, e.server, "GET", "/v1/categories/"+id, nil, e.token(model.RoleStoreKeeper)), http.StatusOK, &c)
	return c
}

func (e *testEnv) requireLedgerConsistent(t *testing.T) {
	t.Helper()
	var report struct {
		CheckedCategories int              `json:"checked_categories"`
		Violations        []map[string]any `json:"violations"`
	}
	expect(t, do(t, e.server, "GET", "/v1/ledger/verify", nil, e.token(model.RoleAdmin)), http.StatusOK, &report)
	require.Empty(t, report.Violations)
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestE2E_RequisitionLifecycle(t *testing.T) {
	env := setupTestEnv(t)
	pipes := env.createCategory(t, "Scaffold Pipe", "quantity", 10)
	lasers := env.createCategory(t, "Laser Level", "individual", 0)
	env.createItem(t, lasers.ID)
	env.createItem(t, lasers.ID)

	type requisition struct {
		ID        string `json:"id"`
		Code      string `json:"code"`
		Status    string `json:"status"`
		Movements []struct {
			RequisitionID *string `json:"requisition_id"`
		} `json:"movements"`
		Events []struct {
			Action string `json:"action"`
		} `json:"events"`
	}

	var req requisition
	expect(t, do(t, env.server, "POST", "/v1/requisitions", jsonBody(t, map[string]any{
		"project_id": env.project, "purpose": "tower crane base", "required_date": "2026-11-02",
		"lines": []map[string]any{
			{"category_id": pipes.ID, "quantity": 4},
			{"category_id": lasers.ID, "quantity": 1},
		},
	}), env.token(model.RoleSiteEngineer)), http.StatusCreated, &req)
	assert.Equal(t, "draft", req.Status)
	assert.Regexp(t, `^REQ-\d{4}-\d{5}$`, req.Code)

	base := "/v1/requisitions/" + req.ID
	steps := []struct {
		path   string
		role   model.Role
		status string
	}{
		{"/send", model.RoleSiteEngineer, "pending_first_approval"},
		{"/first-approve", model.RoleProjectManager, "pending_second_approval"},
		{"/second-approve", model.RoleProductionManager, "second_approved"},
		{"/dispatch", model.RoleStoreKeeper, "dispatched"},
		{"/confirm-receipt", model.RoleSiteEngineer, "completed"},
	}
	for _, s := range steps {
		expect(t, do(t, env.server, "POST", base+s.path, nil, env.token(s.role)), http.StatusOK, &req)
		require.Equal(t, s.status, req.Status, s.path)
	}
	require.Len(t, req.Movements, 2)
	for _, m := range req.Movements {
		require.NotNil(t, m.RequisitionID)
		assert.Equal(t, req.ID, *m.RequisitionID)
	}
	assert.Len(t, req.Events, 6)

	assert.Equal(t, 6, env.getCategory(t, pipes.ID).AvailableQuantity)
	assert.Equal(t, 1, env.getCategory(t, lasers.ID).AvailableQuantity)

	var assets struct {
		TotalUnits int64 `json:"total_units"`
	}
	expect(t, do(t, env.server, "GET", "/v1/projects/"+env.project+"/assets", nil, env.token(model.RoleSiteEngineer)), http.StatusOK, &assets)
	assert.EqualValues(t, 5, assets.TotalUnits)

	// sent, first approved, second approved, dispatched
	queued, err := env.rdb.LLen(context.Background(), worker.QueueNotifications).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 4, queued)

	env.requireLedgerConsistent(t)
}

func TestE2E_RequisitionDispatchShortage(t *testing.T) {
	env := setupTestEnv(t)
	cat := env.createCategory(t, "Fence Panel", "quantity", 5)

	var req struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	expect(t, do(t, env.server, "POST", "/v1/requisitions", jsonBody(t, map[string]any{
		"project_id": env.project, "purpose": "perimeter", "required_date": "2026-11-02",
		"category_id": cat.ID, "quantity": 4,
	}), env.token(model.RoleSiteEngineer)), http.StatusCreated, &req)
	base := "/v1/requisitions/" + req.ID
	expect(t, do(t, env.server, "POST", base+"/send", nil, env.token(model.RoleSiteEngineer)), http.StatusOK, nil)
	expect(t, do(t, env.server, "POST", base+"/first-approve", nil, env.token(model.RoleAdmin)), http.StatusOK, nil)
	expect(t, do(t, env.server, "POST", base+"/second-approve", nil, env.token(model.RoleProductionManager)), http.StatusOK, nil)

	// A direct dispatch drains the stock first.
	expect(t, do(t, env.server, "POST", "/v1/movements/dispatch", jsonBody(t, map[string]any{
		"category_id": cat.ID, "project_id": env.project, "quantity": 3,
	}), env.token(model.RoleStoreKeeper)), http.StatusCreated, nil)

	var apiErr struct {
		Kind      string `json:"kind"`
		Shortages []struct {
			Requested int `json:"requested"`
			Available int `json:"available"`
		} `json:"shortages"`
	}
	expect(t, do(t, env.server, "POST", base+"/dispatch", nil, env.token(model.RoleStoreKeeper)), http.StatusConflict, &apiErr)
	assert.Equal(t, "insufficient_stock", apiErr.Kind)
	require.Len(t, apiErr.Shortages, 1)
	assert.Equal(t, 4, apiErr.Shortages[0].Requested)
	assert.Equal(t, 2, apiErr.Shortages[0].Available)

	expect(t, do(t, env.server, "GET", base, nil, env.token(model.RoleSiteEngineer)), http.StatusOK, &req)
	assert.Equal(t, "second_approved", req.Status)
	env.requireLedgerConsistent(t)
}

func TestE2E_ConcurrentItemDispatch(t *testing.T) {
	env := setupTestEnv(t)
	cat := env.createCategory(t, "Total Station", "individual", 0)
	item := env.createItem(t, cat.ID)

	const workers = 8
	statuses := make([]int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body, _ := json.Marshal(map[string]any{
				"category_id": cat.ID, "project_id": env.project, "item_ids": []string{item},
			})
			req, _ := http.NewRequest("POST", env.server.URL+"/v1/movements/dispatch", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+env.token(model.RoleStoreKeeper))
			resp, err := env.server.Client().Do(req)
			if err != nil {
				return
			}
			resp.Body.Close()
			statuses[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	created := 0
	for _, s := range statuses {
		switch s {
		case http.StatusCreated:
			created++
		case http.StatusConflict, http.StatusServiceUnavailable:
		default:
			t.Errorf("unexpected status %d", s)
		}
	}
	assert.Equal(t, 1, created)

	var movements struct {
		Total int64 `json:"total"`
	}
	expect(t, do(t, env.server, "GET", "/v1/movements?category_id="+cat.ID, nil, env.token(model.RoleStoreKeeper)), http.StatusOK, &movements)
	assert.EqualValues(t, 1, movements.Total)
	env.requireLedgerConsistent(t)
}

func TestE2E_ConcurrentQuantityDispatchNeverOversells(t *testing.T) {
	env := setupTestEnv(t)
	cat := env.createCategory(t, "Shoring Prop", "quantity", 5)

	const workers = 12
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body, _ := json.Marshal(map[string]any{
				"category_id": cat.ID, "project_id": env.project, "quantity": 1,
			})
			req, _ := http.NewRequest("POST", env.server.URL+"/v1/movements/dispatch", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+env.token(model.RoleStoreKeeper))
			resp, err := env.server.Client().Do(req)
			if err != nil {
				return
			}
			resp.Body.Close()
			if resp.StatusCode == http.StatusCreated {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	c := env.getCategory(t, cat.ID)
	assert.Equal(t, 5-created, c.AvailableQuantity)
	assert.GreaterOrEqual(t, c.AvailableQuantity, 0)
	assert.LessOrEqual(t, created, 5)
	env.requireLedgerConsistent(t)
}

func TestE2E_ReturnDamagedThenRepair(t *testing.T) {
	env := setupTestEnv(t)
	cat := env.createCategory(t, "Concrete Mixer", "quantity", 4)
	keeper := env.token(model.RoleStoreKeeper)

	expect(t, do(t, env.server, "POST", "/v1/movements/dispatch", jsonBody(t, map[string]any{
		"category_id": cat.ID, "project_id": env.project, "quantity": 3,
	}), keeper), http.StatusCreated, nil)

	// More than is outstanding cannot come back.
	var apiErr struct {
		Kind   string `json:"kind"`
		Reason string `json:"reason"`
	}
	expect(t, do(t, env.server, "POST", "/v1/movements/return", jsonBody(t, map[string]any{
		"category_id": cat.ID, "project_id": env.project, "quantity": 4,
	}), keeper), http.StatusConflict, &apiErr)
	assert.Equal(t, "exceeds_outstanding", apiErr.Reason)

	var result struct {
		Maintenance []struct {
			ID string `json:"id"`
		} `json:"maintenance"`
	}
	expect(t, do(t, env.server, "POST", "/v1/movements/return", jsonBody(t, map[string]any{
		"category_id": cat.ID, "project_id": env.project, "quantity": 3, "damaged_quantity": 1,
	}), keeper), http.StatusCreated, &result)
	require.Len(t, result.Maintenance, 1)
	assert.Equal(t, 3, env.getCategory(t, cat.ID).AvailableQuantity)

	var dash struct {
		PendingMaintenance int64 `json:"pending_maintenance"`
	}
	expect(t, do(t, env.server, "GET", "/v1/dashboard", nil, keeper), http.StatusOK, &dash)
	assert.EqualValues(t, 1, dash.PendingMaintenance)

	mt := "/v1/maintenance/" + result.Maintenance[0].ID
	expect(t, do(t, env.server, "POST", mt+"/complete", jsonBody(t, map[string]any{"repair_cost": 80}), keeper), http.StatusOK, nil)
	expect(t, do(t, env.server, "POST", mt+"/complete", nil, keeper), http.StatusConflict, nil)
	assert.Equal(t, 4, env.getCategory(t, cat.ID).AvailableQuantity)

	// The write invalidated the cached summary.
	expect(t, do(t, env.server, "GET", "/v1/dashboard", nil, keeper), http.StatusOK, &dash)
	assert.EqualValues(t, 0, dash.PendingMaintenance)
	env.requireLedgerConsistent(t)
}

func TestE2E_AccessControlAndHealth(t *testing.T) {
	env := setupTestEnv(t)

	resp := do(t, env.server, "POST", "/v1/categories", jsonBody(t, map[string]any{
		"name": "Forbidden", "tracking_mode": "quantity",
	}), env.token(model.RoleSiteEngineer))
	expect(t, resp, http.StatusForbidden, nil)

	expect(t, do(t, env.server, "GET", "/v1/categories", nil, ""), http.StatusUnauthorized, nil)
	expect(t, do(t, env.server, "GET", "/v1/ledger/verify", nil, env.token(model.RoleStoreKeeper)), http.StatusForbidden, nil)

	bad := do(t, env.server, "POST", "/v1/auth/login", jsonBody(t, map[string]string{
		"username": "admin", "password": "not-the-password",
	}), "")
	expect(t, bad, http.StatusUnauthorized, nil)

	var health map[string]any
	expect(t, do(t, env.server, "GET", "/health", nil, ""), http.StatusOK, &health)
	assert.Equal(t, "connected", health["db"])
	assert.Equal(t, "connected", health["redis"])
	assert.Equal(t, "disabled", health["notifications"])

	// Duplicate explicit codes surface as a conflict from the unique index path.
	code := "DUP1"
	for i, want := range []int{http.StatusCreated, http.StatusConflict} {
		resp := do(t, env.server, "POST", "/v1/categories", jsonBody(t, map[string]any{
			"code": code, "name": fmt.Sprintf("Dup %d", i), "tracking_mode": "quantity",
		}), env.token(model.RoleStoreKeeper))
		expect(t, resp, want, nil)
	}
}

func TestE2E_ConcurrentRequisitionDispatchSucceedsOnce(t *testing.T) {
	env := setupTestEnv(t)
	cat := env.createCategory(t, "Formwork Panel", "quantity", 10)

	var req struct {
		ID string `json:"id"`
	}
	expect(t, do(t, env.server, "POST", "/v1/requisitions", jsonBody(t, map[string]any{
		"project_id": env.project, "purpose": "slab pour", "required_date": "2026-11-09",
		"lines": []map[string]any{{"category_id": cat.ID, "quantity": 3}},
	}), env.token(model.RoleSiteEngineer)), http.StatusCreated, &req)
	base := "/v1/requisitions/" + req.ID
	expect(t, do(t, env.server, "POST", base+"/send", nil, env.token(model.RoleSiteEngineer)), http.StatusOK, nil)
	expect(t, do(t, env.server, "POST", base+"/first-approve", nil, env.token(model.RoleProjectManager)), http.StatusOK, nil)
	expect(t, do(t, env.server, "POST", base+"/second-approve", nil, env.token(model.RoleProductionManager)), http.StatusOK, nil)

	statuses := make([]int, 2)
	var wg sync.WaitGroup
	for i := range statuses {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, _ := http.NewRequest("POST", env.server.URL+base+"/dispatch", nil)
			r.Header.Set("Authorization", "Bearer "+env.token(model.RoleStoreKeeper))
			resp, err := env.server.Client().Do(r)
			if err != nil {
				return
			}
			resp.Body.Close()
			statuses[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, s := range statuses {
		if s == http.StatusOK {
			ok++
		} else {
			assert.Contains(t, []int{http.StatusConflict, http.StatusServiceUnavailable}, s)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 7, env.getCategory(t, cat.ID).AvailableQuantity)
	env.requireLedgerConsistent(t)
}
