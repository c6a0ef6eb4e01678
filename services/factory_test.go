package services

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staple-duck/snh/config"
	"github.com/staple-duck/snh/database"
	apperrors "github.com/staple-duck/snh/errors"
)

func TestServiceFactory_CreateServices(t *testing.T) {
	tests := []struct {
		name      string
		configure func(c *config.Config)
		wantStore interface{}
	}{
		{
			name:      "memory",
			configure: func(c *config.Config) { c.Store.Driver = config.DriverMemory },
			wantStore: &database.MemoryStore{},
		},
		{
			name: "badger in memory",
			configure: func(c *config.Config) {
				c.Store.Driver = config.DriverBadger
				c.Store.Badger.InMemory = true
			},
			wantStore: &database.BadgerStore{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.configure(cfg)

			var logs bytes.Buffer
			container, err := NewServiceFactory(cfg).WithLogOutput(&logs).CreateServices(context.Background())
			require.NoError(t, err)
			t.Cleanup(func() { container.Close() })

			assert.IsType(t, tt.wantStore, container.Store)
			assert.NotNil(t, container.Registry)
			assert.Nil(t, container.PostgresService)
			assert.NoError(t, container.HealthCheck(context.Background()))
			assert.Contains(t, logs.String(), "Services initialized")

			ctx := context.Background()
			node, err := container.Hierarchy.Create(ctx, "root", nil)
			require.NoError(t, err)
			forest, err := container.Hierarchy.FindAll(ctx)
			require.NoError(t, err)
			require.Len(t, forest, 1)
			assert.Equal(t, node.ID, forest[0].ID)

			health := container.HealthService.CheckHealth(ctx)
			assert.Equal(t, HealthStatusHealthy, health.Status)
		})
	}
}

func TestServiceFactory_BadgerOnDiskRunsGC(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Store.Driver = config.DriverBadger
	cfg.Store.Badger.Path = filepath.Join(t.TempDir(), "badger")
	cfg.Store.Badger.SyncWrites = false
	cfg.Store.Badger.GCInterval = 5 * time.Millisecond

	container, err := NewServiceFactory(cfg).WithLogOutput(&bytes.Buffer{}).CreateServices(context.Background())
	require.NoError(t, err)
	require.NotNil(t, container.stopBackground)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := container.Hierarchy.Create(ctx, "node", nil)
		require.NoError(t, err)
	}
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, container.Close())
	assert.Nil(t, container.stopBackground)

	// data survives a reopen
	reopened, err := NewServiceFactory(cfg).WithLogOutput(&bytes.Buffer{}).CreateServices(ctx)
	require.NoError(t, err)
	defer reopened.Close()
	forest, err := reopened.Hierarchy.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, forest, 5)
}

func TestServiceFactory_MetricsDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Store.Driver = config.DriverMemory
	cfg.Metrics.Enabled = false

	container, err := NewServiceFactory(cfg).WithLogOutput(&bytes.Buffer{}).CreateServices(context.Background())
	require.NoError(t, err)
	assert.Nil(t, container.Registry)
	assert.IsType(t, NoOpMetrics{}, container.Metrics)
}

func TestServiceFactory_UnknownDriver(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Store.Driver = "mongo"

	_, err := NewServiceFactory(cfg).WithLogOutput(&bytes.Buffer{}).CreateServices(context.Background())
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
}

func TestPostgresConfigFrom(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Database.URL = "postgres://u:p@db/tree"
	cfg.Database.MaxConns = 20

	pgConfig := PostgresConfigFrom(cfg)
	assert.Equal(t, "postgres://u:p@db/tree", pgConfig.BuildConnectionString())
	assert.Equal(t, int32(20), pgConfig.MaxConns)
}
