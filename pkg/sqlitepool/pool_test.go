package sqlitepool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/raffleworks/backend/config"
	"github.com/raffleworks/backend/pkg/errorx"
	"github.com/raffleworks/backend/pkg/xcontext"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestPool(t *testing.T, cfg config.DatabaseConfigs) *Pool {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	return New(db, cfg)
}

func Test_pool_AcquireBlocksAtCapacity(t *testing.T) {
	cfg := config.Default().Database
	cfg.PoolSize = 2
	cfg.AcquireTimeout = time.Second
	pool := newTestPool(t, cfg)

	ctx := context.Background()
	first, err := pool.Acquire(ctx)
	require.NoError(t, err)

	second, err := pool.Acquire(ctx)
	require.NoError(t, err)

	acquired := make(chan error)
	go func() {
		conn, err := pool.Acquire(ctx)
		if err == nil {
			conn.Release()
		}
		acquired <- err
	}()

	// The third acquire can only proceed once a slot is given back.
	time.Sleep(50 * time.Millisecond)
	first.Release()

	require.NoError(t, <-acquired)
	second.Release()
}

func Test_pool_AcquireTimesOut(t *testing.T) {
	cfg := config.Default().Database
	cfg.PoolSize = 1
	cfg.AcquireTimeout = 50 * time.Millisecond
	pool := newTestPool(t, cfg)

	conn, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer conn.Release()

	_, err = pool.Acquire(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, errorx.Error{Code: errorx.ResourceExhausted}))
}

func Test_pool_ReleaseIsIdempotent(t *testing.T) {
	cfg := config.Default().Database
	cfg.PoolSize = 1
	pool := newTestPool(t, cfg)

	conn, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	// A double release must not free two slots.
	conn.Release()
	conn.Release()

	conn, err = pool.Acquire(context.Background())
	require.NoError(t, err)
	conn.Release()
}

func Test_pool_WithReadInjectsConnection(t *testing.T) {
	pool := newTestPool(t, config.Default().Database)

	err := pool.WithRead(context.Background(), func(ctx context.Context) error {
		require.NotNil(t, xcontext.DB(ctx))
		return nil
	})
	require.NoError(t, err)
}

func Test_pool_WithWriteRetriesBusyThenFails(t *testing.T) {
	cfg := config.Default().Database
	cfg.BusyMaxRetries = 3
	cfg.BusyBaseBackoff = time.Millisecond
	cfg.BusyMaxBackoff = 2 * time.Millisecond
	pool := newTestPool(t, cfg)

	attempts := 0
	err := pool.WithWrite(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("database is locked")
	})
	require.True(t, errors.Is(err, errorx.Error{Code: errorx.DatabaseBusy}))
	require.Equal(t, cfg.BusyMaxRetries+1, attempts)
}

func Test_pool_WithWriteRecoversAfterBusy(t *testing.T) {
	cfg := config.Default().Database
	cfg.BusyBaseBackoff = time.Millisecond
	pool := newTestPool(t, cfg)

	attempts := 0
	err := pool.WithWrite(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func Test_pool_CorruptionHaltsWrites(t *testing.T) {
	pool := newTestPool(t, config.Default().Database)

	err := pool.WithWrite(context.Background(), func(ctx context.Context) error {
		return errors.New("database disk image is malformed")
	})
	require.True(t, errors.Is(err, errorx.Error{Code: errorx.Fatal}))
	require.False(t, pool.Healthy())

	// Once corrupted, further writes are refused without running fn.
	ran := false
	err = pool.WithWrite(context.Background(), func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.True(t, errors.Is(err, errorx.Error{Code: errorx.Fatal}))
	require.False(t, ran)

	// Reads are still possible on the poisoned pool.
	err = pool.WithRead(context.Background(), func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
}
