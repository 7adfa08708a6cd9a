package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/nwaqas/finfortress/internal/app"
	iauth "github.com/nwaqas/finfortress/internal/auth"
	"github.com/nwaqas/finfortress/internal/auth/providers"
	"github.com/nwaqas/finfortress/internal/auth/unlock"
	"github.com/nwaqas/finfortress/internal/cache"
	"github.com/nwaqas/finfortress/internal/handlers"
	"github.com/nwaqas/finfortress/internal/middleware"
	"github.com/nwaqas/finfortress/internal/services"
)

// Deps bundles the wired services the router mounts.
type Deps struct {
	DB       *gorm.DB
	Config   *app.Config
	JWT      *iauth.JWTService
	Sessions *iauth.SessionService
	Local    *providers.LocalProvider
	Flow     *iauth.FlowService
	Tracker  *unlock.Tracker
	Cache    cache.Store

	// Optional federated sign-in; routes are mounted only when all three
	// are present.
	OIDC       *providers.OIDCProvider
	SSO        *iauth.SSOManager
	StateCodec *iauth.StateCodec
}

func (d Deps) validate() error {
	if d.DB == nil {
		return fmt.Errorf("router: database handle must be provided")
	}
	if d.Config == nil {
		return fmt.Errorf("router: config must be provided")
	}
	if d.JWT == nil {
		return fmt.Errorf("router: jwt service must be provided")
	}
	if d.Sessions == nil {
		return fmt.Errorf("router: session service must be provided")
	}
	if d.Local == nil {
		return fmt.Errorf("router: local provider must be provided")
	}
	if d.Flow == nil {
		return fmt.Errorf("router: flow service must be provided")
	}
	if d.Tracker == nil {
		return fmt.Errorf("router: unlock tracker must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware, and registers routes.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())

	limits := deps.Config.Server.RateLimit
	r.Use(middleware.RateLimit(deps.Cache, limits.Requests, limits.Window))

	r.GET("/health", handlers.Health(deps.DB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	ledger, err := services.NewLedgerService(deps.DB)
	if err != nil {
		return nil, err
	}
	assets, err := services.NewAssetService(deps.DB)
	if err != nil {
		return nil, err
	}
	loans, err := services.NewLoanService(deps.DB)
	if err != nil {
		return nil, err
	}
	funds, err := services.NewFundService(deps.DB)
	if err != nil {
		return nil, err
	}
	reports, err := services.NewReportService(deps.DB)
	if err != nil {
		return nil, err
	}

	requireAuth := middleware.Auth(deps.JWT)
	requireUnlock := middleware.RequireUnlock(deps.Tracker)

	apiGroup := r.Group("/api")
	authed := apiGroup.Group("", requireAuth)
	vaulted := authed.Group("", requireUnlock)

	challengeLimit := challengeRateLimit(deps.Cache, limits)

	if err := registerAuthRoutes(r, authed, deps); err != nil {
		return nil, err
	}
	if err := registerSecurityRoutes(authed, deps, challengeLimit); err != nil {
		return nil, err
	}
	if err := registerLedgerRoutes(vaulted, deps.DB, ledger); err != nil {
		return nil, err
	}
	if err := registerPortfolioRoutes(vaulted, assets, loans); err != nil {
		return nil, err
	}
	if err := registerFundRoutes(vaulted, funds); err != nil {
		return nil, err
	}
	if err := registerReportRoutes(vaulted, reports, assets, loans, funds); err != nil {
		return nil, err
	}

	apiGroup.GET("/catalog", handlers.Catalog())

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

// challengeRateLimit throttles PIN and code guessing tighter than the
// global limit.
func challengeRateLimit(store cache.Store, limits app.RateLimitConfig) gin.HandlerFunc {
	requests := limits.ChallengeRequests
	if requests <= 0 {
		requests = 10
	}
	window := limits.ChallengeWindow
	if window <= 0 {
		window = time.Minute
	}
	return middleware.RateLimit(store, requests, window)
}
