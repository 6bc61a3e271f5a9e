package repository

import (
	"context"
	"time"

	"github.com/raffleworks/backend/internal/entity"
	"github.com/raffleworks/backend/pkg/xcontext"
	"gorm.io/gorm/clause"
)

type RegistrationStateRepository interface {
	Save(ctx context.Context, externalID int64, payload string) error
	Load(ctx context.Context, externalID int64) (*entity.RegistrationState, error)
	Clear(ctx context.Context, externalID int64) error
	DeleteStale(ctx context.Context, olderThan time.Time) (int64, error)
}

type registrationStateRepository struct{}

func NewRegistrationStateRepository() *registrationStateRepository {
	return &registrationStateRepository{}
}

func (r *registrationStateRepository) Save(ctx context.Context, externalID int64, payload string) error {
	state := entity.RegistrationState{
		ExternalID: externalID,
		Payload:    payload,
		UpdatedAt:  time.Now(),
	}

	return xcontext.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&state).Error
}

func (r *registrationStateRepository) Load(
	ctx context.Context, externalID int64,
) (*entity.RegistrationState, error) {
	var result entity.RegistrationState
	if err := xcontext.DB(ctx).Take(&result, "external_id=?", externalID).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *registrationStateRepository) Clear(ctx context.Context, externalID int64) error {
	return xcontext.DB(ctx).
		Delete(&entity.RegistrationState{}, "external_id=?", externalID).Error
}

// DeleteStale removes payloads that have not been updated since olderThan.
func (r *registrationStateRepository) DeleteStale(
	ctx context.Context, olderThan time.Time,
) (int64, error) {
	tx := xcontext.DB(ctx).
		Delete(&entity.RegistrationState{}, "updated_at < ?", olderThan)
	return tx.RowsAffected, tx.Error
}
