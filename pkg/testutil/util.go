package testutil

import (
	"context"

	"github.com/raffleworks/backend/config"
	"github.com/raffleworks/backend/internal/entity"
	"github.com/raffleworks/backend/pkg/logger"
	"github.com/raffleworks/backend/pkg/sqlitepool"
	"github.com/raffleworks/backend/pkg/xcontext"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func MockContext() context.Context {
	ctx, _ := MockContextWithPool()
	return ctx
}

// MockContextWithPool builds a context over a fresh in-memory database and
// returns the pool guarding it, for tests that exercise domains directly.
func MockContextWithPool() (context.Context, *sqlitepool.Pool) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		panic(err)
	}

	// Every connection to :memory: gets its own database, so pin the
	// underlying pool to a single connection.
	sqlDB, err := db.DB()
	if err != nil {
		panic(err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := config.Default()
	cfg.Env = "testing"

	ctx := context.Background()
	ctx = xcontext.WithConfigs(ctx, cfg)
	ctx = xcontext.WithLogger(ctx, logger.NewLogger(logger.ERROR))
	ctx = xcontext.WithDB(ctx, db)

	if err := entity.MigrateTable(ctx); err != nil {
		panic(err)
	}

	return ctx, sqlitepool.New(db, cfg.Database)
}

func MockContextWithUserID(userID string) context.Context {
	return xcontext.WithRequestUserID(MockContext(), userID)
}
