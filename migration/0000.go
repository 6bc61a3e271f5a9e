package migration

import (
	"context"

	"github.com/raffleworks/backend/internal/entity"
	"github.com/raffleworks/backend/pkg/xcontext"
)

// migrate0000 will create the database with the latest version.
func migrate0000(ctx context.Context) error {
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
