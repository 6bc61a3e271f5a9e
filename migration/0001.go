package migration

import (
	"context"

	"github.com/raffleworks/backend/internal/entity"
	"github.com/raffleworks/backend/pkg/xcontext"
)

func migrate0001(ctx context.Context) error {
	migrator := xcontext.DB(ctx).Migrator()

	if !migrator.HasColumn(&entity.Participant{}, "admin_notes") {
		if err := migrator.AddColumn(&entity.Participant{}, "admin_notes"); err != nil {
			return err
		}
	}

	if !migrator.HasColumn(&entity.LotteryRun{}, "underfilled") {
		if err := migrator.AddColumn(&entity.LotteryRun{}, "underfilled"); err != nil {
			return err
		}
	}

	return nil
}
