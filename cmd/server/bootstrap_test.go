package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nwaqas/finfortress/internal/app"
	"github.com/nwaqas/finfortress/internal/cache"
	"github.com/nwaqas/finfortress/internal/profile"
)

func TestConvertDatabaseConfigDefaultsToSQLite(t *testing.T) {
	cfg := &app.Config{}
	dbCfg := convertDatabaseConfig(cfg)
	require.Equal(t, "sqlite", dbCfg.Driver)
}

func TestConvertDatabaseConfigPostgres(t *testing.T) {
	cfg := &app.Config{}
	cfg.Database.Driver = "PostgreSQL"
	cfg.Database.Postgres.Host = " db.internal "
	cfg.Database.Postgres.Port = 5433
	cfg.Database.Postgres.Database = "finfortress"
	cfg.Database.Postgres.Username = "fin"
	cfg.Database.Postgres.Password = "secret"

	dbCfg := convertDatabaseConfig(cfg)
	require.Equal(t, "postgres", dbCfg.Driver)
	require.Equal(t, "db.internal", dbCfg.Host)
	require.Equal(t, 5433, dbCfg.Port)
	require.Equal(t, "finfortress", dbCfg.Name)
	require.Equal(t, "fin", dbCfg.User)
	require.Equal(t, "secret", dbCfg.Password)
}

func TestInitialiseCacheFallsBackToMemory(t *testing.T) {
	cfg := &app.Config{}
	store := initialiseCache(cfg, zap.NewNop())
	require.IsType(t, &cache.MemoryStore{}, store)
}

func TestInitialiseProfileStoreFallsBackToMemory(t *testing.T) {
	cfg := &app.Config{}
	store, err := initialiseProfileStore(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	require.IsType(t, &profile.MemoryStore{}, store)
}

func TestEnsureSecretsPresent(t *testing.T) {
	require.Error(t, ensureSecretsPresent(nil))

	cfg := &app.Config{}
	require.Error(t, ensureSecretsPresent(cfg))

	cfg.Auth.JWT.Secret = "  configured-secret  "
	require.NoError(t, ensureSecretsPresent(cfg))
	require.Equal(t, "configured-secret", cfg.Auth.JWT.Secret)
}

func TestBootstrapRuntimeBuildsStack(t *testing.T) {
	cfg := &app.Config{}
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = t.TempDir() + "/boot.sqlite"
	cfg.Auth.JWT.Secret = "bootstrap-test-secret"

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { stack.Shutdown(context.Background(), zap.NewNop()) })

	require.NotNil(t, stack.Router)
	require.NotNil(t, stack.Sessions)
	require.NotNil(t, stack.Flow)
	require.Nil(t, stack.Cleaner)
}
