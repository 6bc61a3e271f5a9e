package entity

import (
	"context"

	"github.com/raffleworks/backend/pkg/xcontext"
)

func MigrateTable(ctx context.Context) error {
	return xcontext.DB(ctx).AutoMigrate(
		&Participant{},
		&LotteryRun{},
		&Winner{},
		&BroadcastJob{},
		&BroadcastRecipient{},
		&FraudLog{},
		&RegistrationState{},
		&Migration{},
	)
}
