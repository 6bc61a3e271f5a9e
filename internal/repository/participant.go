package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/raffleworks/backend/internal/entity"
	"github.com/raffleworks/backend/pkg/cache"
	"github.com/raffleworks/backend/pkg/errorx"
	"github.com/raffleworks/backend/pkg/xcontext"
	"golang.org/x/exp/slices"
	"gorm.io/gorm"
)

type ParticipantRepository interface {
	Create(ctx context.Context, participant *entity.Participant) error
	InsertBatch(ctx context.Context, participants []*entity.Participant) (int, error)
	GetByExternalID(ctx context.Context, externalID int64) (*entity.Participant, error)
	GetStatus(ctx context.Context, externalID int64) (entity.ParticipantStatus, error)
	UpdateStatus(ctx context.Context, externalID int64, to entity.ParticipantStatus) error
	GetApprovedSnapshot(ctx context.Context) ([]entity.Participant, error)
	Count(ctx context.Context) (int64, error)
	CountByPhone(ctx context.Context, phone string) (int64, error)
	CountByLoyaltyCard(ctx context.Context, card string) (int64, error)
	CountRecentByExternalID(ctx context.Context, externalID int64, since time.Time) (int64, error)
}

type participantRepository struct {
	cache *cache.Cache
}

func NewParticipantRepository(cache *cache.Cache) *participantRepository {
	return &participantRepository{cache: cache}
}

func statusCacheKey(externalID int64) string {
	return fmt.Sprintf("participant:status:%d", externalID)
}

func (r *participantRepository) Create(ctx context.Context, participant *entity.Participant) error {
	if err := xcontext.DB(ctx).Create(participant).Error; err != nil {
		if isUniqueViolation(err) {
			return errorx.New(errorx.AlreadyExists, "Participant key already registered")
		}

		return err
	}

	r.cache.Invalidate(statusCacheKey(participant.ExternalID))
	return nil
}

// InsertBatch commits every record in one transaction or none of them. A
// single conflicting record fails the whole batch.
func (r *participantRepository) InsertBatch(
	ctx context.Context, participants []*entity.Participant,
) (int, error) {
	if len(participants) == 0 {
		return 0, nil
	}

	ctx = xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(ctx)

	for _, p := range participants {
		if err := xcontext.DB(ctx).Create(p).Error; err != nil {
			if isUniqueViolation(err) {
				return 0, errorx.New(errorx.AlreadyExists,
					"Participant %d conflicts with an existing key", p.ExternalID)
			}

			return 0, err
		}
	}

	xcontext.WithCommitDBTransaction(ctx)

	for _, p := range participants {
		r.cache.Invalidate(statusCacheKey(p.ExternalID))
	}

	return len(participants), nil
}

func (r *participantRepository) GetByExternalID(
	ctx context.Context, externalID int64,
) (*entity.Participant, error) {
	var result entity.Participant
	if err := xcontext.DB(ctx).Take(&result, "external_id=?", externalID).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

// GetStatus serves from the hot cache tier; writes invalidate the key.
func (r *participantRepository) GetStatus(
	ctx context.Context, externalID int64,
) (entity.ParticipantStatus, error) {
	return cache.GetOrLoad(ctx, r.cache, statusCacheKey(externalID), cache.TierHot,
		func(ctx context.Context) (entity.ParticipantStatus, error) {
			participant, err := r.GetByExternalID(ctx, externalID)
			if err != nil {
				return "", err
			}

			return participant.Status, nil
		})
}

// UpdateStatus applies one transition of the allowed table. The current
// status is part of the WHERE clause, so a concurrent conflicting update
// loses with ErrRecordNotFound instead of overwriting.
func (r *participantRepository) UpdateStatus(
	ctx context.Context, externalID int64, to entity.ParticipantStatus,
) error {
	froms := []entity.ParticipantStatus{}
	for from, allowed := range entity.AllowedParticipantTransitions {
		if slices.Contains(allowed, to) {
			froms = append(froms, from)
		}
	}

	if len(froms) == 0 {
		return errorx.New(errorx.BadRequest, "No transition leads to status %s", to)
	}

	tx := xcontext.DB(ctx).Model(&entity.Participant{}).
		Where("external_id=? AND status IN (?)", externalID, froms).
		Update("status", to)
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	r.cache.Invalidate(statusCacheKey(externalID))
	return nil
}

// GetApprovedSnapshot returns a point-in-time ordered copy of the approved
// population. Later writes never touch the returned slice, which makes it a
// safe basis for an in-progress draw.
func (r *participantRepository) GetApprovedSnapshot(ctx context.Context) ([]entity.Participant, error) {
	var result []entity.Participant
	err := xcontext.DB(ctx).
		Where("status=?", entity.ParticipantApproved).
		Order("external_id ASC").
		Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *participantRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := xcontext.DB(ctx).Model(&entity.Participant{}).Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}

func (r *participantRepository) CountByPhone(ctx context.Context, phone string) (int64, error) {
	var count int64
	err := xcontext.DB(ctx).Model(&entity.Participant{}).
		Where("phone=?", phone).Count(&count).Error
	return count, err
}

func (r *participantRepository) CountByLoyaltyCard(ctx context.Context, card string) (int64, error) {
	var count int64
	err := xcontext.DB(ctx).Model(&entity.Participant{}).
		Where("loyalty_card=?", card).Count(&count).Error
	return count, err
}

func (r *participantRepository) CountRecentByExternalID(
	ctx context.Context, externalID int64, since time.Time,
) (int64, error) {
	var count int64
	err := xcontext.DB(ctx).Model(&entity.Participant{}).
		Where("external_id=? AND created_at > ?", externalID, since).Count(&count).Error
	return count, err
}
