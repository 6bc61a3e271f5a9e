package repository

import (
	"context"
	"time"

	"github.com/raffleworks/backend/internal/entity"
	"github.com/raffleworks/backend/pkg/xcontext"
)

type FraudLogRepository interface {
	Create(ctx context.Context, log *entity.FraudLog) error
	CountRecentByExternalID(ctx context.Context, externalID int64, since time.Time) (int64, error)
}

type fraudLogRepository struct{}

func NewFraudLogRepository() *fraudLogRepository {
	return &fraudLogRepository{}
}

func (r *fraudLogRepository) Create(ctx context.Context, log *entity.FraudLog) error {
	return xcontext.DB(ctx).Create(log).Error
}

func (r *fraudLogRepository) CountRecentByExternalID(
	ctx context.Context, externalID int64, since time.Time,
) (int64, error) {
	var count int64
	err := xcontext.DB(ctx).Model(&entity.FraudLog{}).
		Where("external_id=? AND created_at > ?", externalID, since).Count(&count).Error
	return count, err
}
