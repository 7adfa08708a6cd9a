package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gin-gonic/gin"

	"github.com/nwaqas/finfortress/internal/api"
	"github.com/nwaqas/finfortress/internal/app"
	"github.com/nwaqas/finfortress/internal/app/maintenance"
	iauth "github.com/nwaqas/finfortress/internal/auth"
	"github.com/nwaqas/finfortress/internal/auth/mfa"
	"github.com/nwaqas/finfortress/internal/auth/providers"
	"github.com/nwaqas/finfortress/internal/auth/unlock"
	"github.com/nwaqas/finfortress/internal/cache"
	"github.com/nwaqas/finfortress/internal/database"
	"github.com/nwaqas/finfortress/internal/profile"
	"github.com/nwaqas/finfortress/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB       *gorm.DB
	Cache    cache.Store
	Profiles profile.Store
	Sessions *iauth.SessionService
	Flow     *iauth.FlowService
	Cleaner  *maintenance.Cleaner
	Router   *gin.Engine
}

// bootstrapRuntime initialises the database, stores, services, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	stack.Cache = initialiseCache(cfg, log)
	stack.Profiles, err = initialiseProfileStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	stack.Sessions, err = iauth.NewSessionService(stack.DB, jwtSvc, cfg.Auth.SessionServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise session service: %w", err)
	}

	local, err := providers.NewLocalProvider(stack.DB, cfg.Auth.LocalProviderConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise local provider: %w", err)
	}

	tracker, err := unlock.NewTracker(stack.Cache, cfg.Auth.UnlockOptions()...)
	if err != nil {
		return nil, fmt.Errorf("initialise unlock tracker: %w", err)
	}

	totp := mfa.NewService(cfg.Auth.TOTPOptions()...)

	stack.Flow, err = iauth.NewFlowService(stack.Profiles, totp, tracker)
	if err != nil {
		return nil, fmt.Errorf("initialise unlock flow: %w", err)
	}

	if cfg.Ledger.Maintenance.Enabled {
		opts := []maintenance.Option{}
		if spec := strings.TrimSpace(cfg.Ledger.Maintenance.SessionSchedule); spec != "" {
			opts = append(opts, maintenance.WithSessionSchedule(spec))
		}
		stack.Cleaner = maintenance.NewCleaner(stack.DB, stack.Sessions, opts...)
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	deps := api.Deps{
		DB:       stack.DB,
		Config:   cfg,
		JWT:      jwtSvc,
		Sessions: stack.Sessions,
		Local:    local,
		Flow:     stack.Flow,
		Tracker:  tracker,
		Cache:    stack.Cache,
	}

	if cfg.Auth.OIDC.Enabled {
		oidcProvider, oidcErr := providers.NewOIDCProvider(ctx, cfg.Auth.OIDCProviderConfig())
		if oidcErr != nil {
			return nil, fmt.Errorf("initialise oidc provider: %w", oidcErr)
		}
		ssoManager, ssoErr := iauth.NewSSOManager(stack.DB, stack.Sessions, iauth.SSOConfig{
			AutoProvision: cfg.Auth.OIDC.AutoProvision,
		})
		if ssoErr != nil {
			return nil, fmt.Errorf("initialise sso manager: %w", ssoErr)
		}
		codec, codecErr := iauth.NewStateCodec(cfg.Auth.SSOStateKey(), cfg.Auth.OIDC.StateTTL, nil)
		if codecErr != nil {
			return nil, fmt.Errorf("initialise sso state codec: %w", codecErr)
		}
		deps.OIDC = oidcProvider
		deps.SSO = ssoManager
		deps.StateCodec = codec
		log.Info("federated sign-in enabled", zap.String("issuer", cfg.Auth.OIDC.Issuer))
	}

	stack.Router, err = api.NewRouter(deps)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		if stopCtx != nil {
			ctx = stopCtx
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if rs, ok := s.Cache.(*cache.RedisStore); ok && rs != nil {
		if err := rs.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if ms, ok := s.Profiles.(*profile.MongoStore); ok && ms != nil {
		if err := ms.Close(ctx); err != nil {
			log.Warn("profile store shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.OpenAndMigrate(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

// initialiseCache prefers Redis so unlock grants and rate-limit windows
// survive restarts and are shared across replicas. The in-memory store is
// the single-node fallback.
func initialiseCache(cfg *app.Config, log *zap.Logger) cache.Store {
	if cfg.Cache.Redis.Enabled {
		store, err := cache.NewRedisStore(cfg.Cache.RedisClientConfig())
		if err != nil {
			log.Warn("redis unavailable; falling back to in-memory cache", zap.Error(err))
		} else {
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
			return store
		}
	}
	return cache.NewMemoryStore()
}

func initialiseProfileStore(ctx context.Context, cfg *app.Config, log *zap.Logger) (profile.Store, error) {
	if cfg.Profile.Mongo.Enabled {
		store, err := profile.NewMongoStore(ctx, profile.MongoConfig{
			URI:        cfg.Profile.Mongo.URI,
			Database:   cfg.Profile.Mongo.Database,
			Collection: cfg.Profile.Mongo.Collection,
			Timeout:    cfg.Profile.Mongo.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("connect profile store: %w", err)
		}
		log.Info("profile store connected", zap.String("database", cfg.Profile.Mongo.Database))
		return store, nil
	}

	log.Warn("mongo profile store disabled; security profiles held in memory")
	return profile.NewMemoryStore(), nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	}

	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		dbCfg.Host = strings.TrimSpace(cfg.Database.Postgres.Host)
		dbCfg.Port = cfg.Database.Postgres.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.Postgres.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.Postgres.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.Postgres.Password)
	case "mysql":
		dbCfg.Host = strings.TrimSpace(cfg.Database.MySQL.Host)
		dbCfg.Port = cfg.Database.MySQL.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.MySQL.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.MySQL.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.MySQL.Password)
	default:
		// Leave driver as-is to surface unsupported driver error during open.
	}

	return dbCfg
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
