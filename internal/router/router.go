package router

import (
	_ "embed"
	"net/http"
	"time"

	"metersquare/internal/config"
	"metersquare/internal/handler"
	"metersquare/internal/infra"
	"metersquare/internal/middleware"
	"metersquare/internal/model"
	"metersquare/internal/repository"
	"metersquare/internal/service"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// openAPIDoc is the hand-maintained OpenAPI 3 description of the routes below.
//
//go:embed openapi.json
var openAPIDoc []byte

// Deps are the collaborators built by the composition root.
type Deps struct {
	Notifier service.Notifier
	Breaker  *infra.CircuitBreaker
}

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, deps Deps) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	service.SetLockTimeout(cfg.LockTimeout())

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(middleware.ErrorHandler())
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Repositories ─────────────────────────────────────────────────────────
	stock := service.StockRepositories{
		Categories:  repository.NewCategoryRepository(db),
		Items:       repository.NewItemRepository(db),
		Movements:   repository.NewMovementRepository(db),
		Maintenance: repository.NewMaintenanceRepository(db),
	}
	userRepo := repository.NewUserRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	requisitionRepo := repository.NewRequisitionRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	cache := service.NewDashboardCache(rdb, cfg.DashboardCacheTTL())

	authSvc := service.NewAuthService(userRepo, cfg)
	registrySvc := service.NewRegistryService(stock.Categories, stock.Items, stock.Movements, cache)
	ledgerSvc := service.NewLedgerService(stock, projectRepo, cache)
	maintenanceSvc := service.NewMaintenanceService(stock, cache)
	requisitionSvc := service.NewRequisitionService(requisitionRepo, stock, projectRepo, userRepo, deps.Notifier, cache)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	registryH := handler.NewRegistryHandler(registrySvc)
	ledgerH := handler.NewLedgerHandler(ledgerSvc)
	maintenanceH := handler.NewMaintenanceHandler(maintenanceSvc)
	requisitionH := handler.NewRequisitionHandler(requisitionSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, deps.Breaker))

	// Auth (public)
	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", middleware.LoginRateLimiter(cfg.RateLimitPerMinute), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	// Protected routes. Reads are open to every authenticated role; writes
	// are gated per endpoint.
	stockWriters := middleware.RequireRole(model.RoleStoreKeeper, model.RoleAdmin)
	requesters := middleware.RequireRole(model.RoleSiteEngineer, model.RoleAdmin)
	firstApprovers := middleware.RequireRole(model.RoleProjectManager, model.RoleAdmin)
	secondApprovers := middleware.RequireRole(model.RoleProductionManager, model.RoleAdmin)

	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	{
		cats := v1.Group("/categories")
		{
			cats.GET("", registryH.ListCategories)
			cats.GET("/:id", registryH.GetCategory)
			cats.POST("", stockWriters, registryH.CreateCategory)
			cats.PUT("/:id", stockWriters, registryH.UpdateCategory)
			cats.DELETE("/:id", stockWriters, registryH.DeactivateCategory)
			cats.POST("/:id/items", stockWriters, registryH.CreateItem)
		}

		items := v1.Group("/items")
		{
			items.GET("", registryH.ListItems)
			items.GET("/:id", registryH.GetItem)
			items.PUT("/:id", stockWriters, registryH.UpdateItem)
		}

		mv := v1.Group("/movements")
		{
			mv.GET("", ledgerH.ListMovements)
			mv.POST("/dispatch", stockWriters, ledgerH.Dispatch)
			mv.POST("/return", stockWriters, ledgerH.Return)
		}
		v1.GET("/dispatched", ledgerH.Dispatched)
		v1.GET("/projects/:id/assets", ledgerH.ProjectAssets)
		v1.GET("/dashboard", ledgerH.Dashboard)
		v1.GET("/ledger/verify", middleware.RequireRole(model.RoleAdmin), ledgerH.Verify)

		mt := v1.Group("/maintenance")
		{
			mt.GET("", maintenanceH.List)
			mt.GET("/:id", maintenanceH.Get)
			mt.POST("/:id/start", stockWriters, maintenanceH.Start())
			mt.POST("/:id/complete", stockWriters, maintenanceH.Complete())
			mt.POST("/:id/write-off", stockWriters, maintenanceH.WriteOff())
		}

		reqs := v1.Group("/requisitions")
		{
			reqs.GET("", requisitionH.List)
			reqs.GET("/:id", requisitionH.Get)
			reqs.POST("", requesters, requisitionH.Create)
			reqs.PUT("/:id", requesters, requisitionH.Update)
			reqs.DELETE("/:id", requesters, requisitionH.Delete)
			reqs.POST("/:id/send", requesters, requisitionH.Send)
			reqs.POST("/:id/cancel", requesters, requisitionH.Cancel)
			reqs.POST("/:id/confirm-receipt", requesters, requisitionH.ConfirmReceipt())
			reqs.POST("/:id/first-approve", firstApprovers, requisitionH.FirstApprove())
			reqs.POST("/:id/first-reject", firstApprovers, requisitionH.FirstReject())
			reqs.POST("/:id/second-approve", secondApprovers, requisitionH.SecondApprove())
			reqs.POST("/:id/second-reject", secondApprovers, requisitionH.SecondReject())
			reqs.POST("/:id/dispatch", stockWriters, requisitionH.Dispatch())
		}
	}

	// Swagger UI, only enabled outside production
	if cfg.Env != "production" {
		r.GET("/openapi.json", func(c *gin.Context) {
			c.Data(http.StatusOK, "application/json; charset=utf-8", openAPIDoc)
		})
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/openapi.json")))
	}

	return r
}
