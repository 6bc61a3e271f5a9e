package repository

import (
	"context"
	"time"

	"github.com/raffleworks/backend/internal/entity"
	"github.com/raffleworks/backend/pkg/errorx"
	"github.com/raffleworks/backend/pkg/xcontext"
	"gorm.io/gorm"
)

type LotteryRepository interface {
	// Run
	CreateRun(ctx context.Context, run *entity.LotteryRun) error
	GetRunByID(ctx context.Context, runID string) (*entity.LotteryRun, error)
	MarkRunExecuted(ctx context.Context, runID string, underfilled bool) error

	// Winner
	CreateWinners(ctx context.Context, winners []*entity.Winner) error
	GetWinnersByRunID(ctx context.Context, runID string) ([]entity.Winner, error)
	ClaimWinner(ctx context.Context, runID, participantID string) error
}

type lotteryRepository struct{}

func NewLotteryRepository() *lotteryRepository {
	return &lotteryRepository{}
}

func (r *lotteryRepository) CreateRun(ctx context.Context, run *entity.LotteryRun) error {
	if err := xcontext.DB(ctx).Create(run).Error; err != nil {
		if isUniqueViolation(err) {
			return errorx.New(errorx.AlreadyExists, "Run %s already exists", run.ID)
		}

		return err
	}

	return nil
}

func (r *lotteryRepository) GetRunByID(ctx context.Context, runID string) (*entity.LotteryRun, error) {
	var result entity.LotteryRun
	if err := xcontext.DB(ctx).Take(&result, "id=?", runID).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

// MarkRunExecuted flips the run to executed at most once; a second attempt
// finds no unexecuted row and loses.
func (r *lotteryRepository) MarkRunExecuted(ctx context.Context, runID string, underfilled bool) error {
	tx := xcontext.DB(ctx).Model(&entity.LotteryRun{}).
		Where("id=? AND executed_at IS NULL", runID).
		Updates(map[string]any{
			"executed_at": time.Now(),
			"underfilled": underfilled,
		})
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *lotteryRepository) CreateWinners(ctx context.Context, winners []*entity.Winner) error {
	if len(winners) == 0 {
		return nil
	}

	return xcontext.DB(ctx).Create(winners).Error
}

func (r *lotteryRepository) GetWinnersByRunID(ctx context.Context, runID string) ([]entity.Winner, error) {
	var result []entity.Winner
	err := xcontext.DB(ctx).Where("run_id=?", runID).
		Order("position ASC").Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ClaimWinner marks a winner row claimed at most once.
func (r *lotteryRepository) ClaimWinner(ctx context.Context, runID, participantID string) error {
	tx := xcontext.DB(ctx).Model(&entity.Winner{}).
		Where("run_id=? AND participant_id=? AND claimed=?", runID, participantID, false).
		Update("claimed", true)
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}
