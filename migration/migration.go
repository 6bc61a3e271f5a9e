package migration

import (
	"context"
	"errors"
	"time"

	"github.com/raffleworks/backend/internal/entity"
	"github.com/raffleworks/backend/pkg/xcontext"
	"gorm.io/gorm"
)

var migrations = []func(context.Context) error{
	migrate0000,
	migrate0001,
}

// Migrate applies every migration the database has not seen yet, in order,
// and records each applied version. A fresh database runs all of them.
func Migrate(ctx context.Context) error {
	if err := xcontext.DB(ctx).AutoMigrate(&entity.Migration{}); err != nil {
		return err
	}

	current := -1
	var last entity.Migration
	err := xcontext.DB(ctx).Order("version DESC").Take(&last).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if err == nil {
		current = last.Version
	}

	for version := current + 1; version < len(migrations); version++ {
		if err := migrations[version](ctx); err != nil {
			return err
		}

		record := entity.Migration{Version: version, AppliedAt: time.Now()}
		if err := xcontext.DB(ctx).Create(&record).Error; err != nil {
			return err
		}

		xcontext.Logger(ctx).Infof("Applied migration %04d", version)
	}

	return nil
}

// AutoMigrate creates or updates every table to match the current entities.
// When this migrator is called, no need to call other migrators.
func AutoMigrate(ctx context.Context) error {
	return xcontext.DB(ctx).AutoMigrate(
		&entity.Participant{},
		&entity.LotteryRun{},
		&entity.Winner{},
		&entity.BroadcastJob{},
		&entity.BroadcastRecipient{},
		&entity.FraudLog{},
		&entity.RegistrationState{},
		&entity.Migration{},
	)
}
