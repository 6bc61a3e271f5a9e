package sqlitepool

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raffleworks/backend/config"
	"github.com/raffleworks/backend/pkg/errorx"
	"github.com/raffleworks/backend/pkg/xcontext"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open opens the embedded datastore file in WAL mode so many readers can
// proceed alongside the single writer, with the configured busy timeout
// applied at the driver level.
func Open(cfg config.DatabaseConfigs) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=%d&_foreign_keys=on",
		cfg.Path, cfg.BusyTimeout.Milliseconds(),
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(cfg.PoolSize)
	sqlDB.SetMaxIdleConns(cfg.PoolSize)

	return db, nil
}

// Pool arbitrates access to a fixed set of datastore connections. Readers
// share the slots, writers are additionally serialized through a single
// logical write path.
type Pool struct {
	db      *gorm.DB
	cfg     config.DatabaseConfigs
	slots   chan struct{}
	writeMu sync.Mutex
	fatal   int32
}

func New(db *gorm.DB, cfg config.DatabaseConfigs) *Pool {
	size := cfg.PoolSize
	if size <= 0 {
		size = 1
	}

	slots := make(chan struct{}, size)
	for i := 0; i < size; i++ {
		slots <- struct{}{}
	}

	return &Pool{db: db, cfg: cfg, slots: slots}
}

// ScopedConn is a leased connection slot. Release is idempotent and must be
// called on every exit path; the With* helpers take care of that.
type ScopedConn struct {
	pool *Pool
	db   *gorm.DB
	once sync.Once
}

func (c *ScopedConn) DB() *gorm.DB {
	return c.db
}

func (c *ScopedConn) Release() {
	c.once.Do(func() {
		c.pool.slots <- struct{}{}
	})
}

// Acquire blocks the caller until a slot frees up, bounded by the configured
// acquire timeout. On timeout it fails with a ResourceExhausted error the
// caller may retry.
func (p *Pool) Acquire(ctx context.Context) (*ScopedConn, error) {
	timer := time.NewTimer(p.cfg.AcquireTimeout)
	defer timer.Stop()

	select {
	case <-p.slots:
		return &ScopedConn{pool: p, db: p.db.Session(&gorm.Session{NewDB: true})}, nil
	case <-ctx.Done():
		return nil, errorx.New(errorx.ResourceExhausted, "Database pool acquisition interrupted")
	case <-timer.C:
		return nil, errorx.New(errorx.ResourceExhausted,
			"No free database connection after %s", p.cfg.AcquireTimeout)
	}
}

// WithRead runs fn with a leased connection injected into the context, so
// repositories keep resolving their handle through xcontext.DB.
func (p *Pool) WithRead(ctx context.Context, fn func(ctx context.Context) error) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	return fn(xcontext.WithDB(ctx, conn.DB()))
}

// WithWrite serializes fn behind the single write path and retries busy
// errors with bounded exponential backoff. fn may run more than once, so
// callers wrap multi-statement writes in one transaction. Corruption is
// never retried: it poisons the pool for all further writes.
func (p *Pool) WithWrite(ctx context.Context, fn func(ctx context.Context) error) error {
	if atomic.LoadInt32(&p.fatal) != 0 {
		return errorx.New(errorx.Fatal, "Datastore is corrupted, writes are halted")
	}

	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	backoff := p.cfg.BusyBaseBackoff
	for attempt := 0; ; attempt++ {
		err := fn(xcontext.WithDB(ctx, conn.DB()))
		if err == nil {
			return nil
		}

		if IsCorruption(err) {
			atomic.StoreInt32(&p.fatal, 1)
			return errorx.New(errorx.Fatal, "Datastore corruption detected: %v", err)
		}

		if !IsBusy(err) || attempt >= p.cfg.BusyMaxRetries {
			if IsBusy(err) {
				return errorx.New(errorx.DatabaseBusy,
					"Database still busy after %d retries", p.cfg.BusyMaxRetries)
			}
			return err
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return errorx.New(errorx.DatabaseBusy, "Busy retry interrupted")
		}

		backoff *= 2
		if backoff > p.cfg.BusyMaxBackoff {
			backoff = p.cfg.BusyMaxBackoff
		}
	}
}

// Healthy reports whether the pool has seen a fatal datastore error.
func (p *Pool) Healthy() bool {
	return atomic.LoadInt32(&p.fatal) == 0
}

// IsBusy reports whether err is a transient sqlite lock contention error.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}

// IsCorruption reports whether err indicates the datastore file itself is
// damaged. These errors must never be retried.
func IsCorruption(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	return strings.Contains(msg, "database disk image is malformed") ||
		strings.Contains(msg, "file is not a database") ||
		strings.Contains(msg, "file is encrypted")
}
