package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/raffleworks/backend/internal/entity"
	"github.com/raffleworks/backend/pkg/xcontext"
	"gorm.io/gorm"
)

type BroadcastRepository interface {
	// Job
	CreateJob(ctx context.Context, job *entity.BroadcastJob, recipients []int64) error
	GetJobByID(ctx context.Context, jobID int64) (*entity.BroadcastJob, error)
	GetNextRunnableJob(ctx context.Context) (*entity.BroadcastJob, error)
	MarkJobSending(ctx context.Context, jobID int64) error
	FinishJob(ctx context.Context, jobID int64, status entity.BroadcastJobStatus) error
	CancelJob(ctx context.Context, jobID int64) error

	// Recipient
	GetPendingRecipients(ctx context.Context, jobID int64, limit int) ([]entity.BroadcastRecipient, error)
	CountRecipients(ctx context.Context, jobID int64, status entity.BroadcastRecipientStatus) (int64, error)
	MarkRecipientDelivered(ctx context.Context, recipientID int64) error
	MarkRecipientFailed(ctx context.Context, recipientID int64) error
	AddRecipientAttempt(ctx context.Context, recipientID int64) error
}

type broadcastRepository struct{}

func NewBroadcastRepository() *broadcastRepository {
	return &broadcastRepository{}
}

func (r *broadcastRepository) CreateJob(
	ctx context.Context, job *entity.BroadcastJob, recipients []int64,
) error {
	ctx = xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(ctx)

	job.TotalRecipients = len(recipients)
	if err := xcontext.DB(ctx).Create(job).Error; err != nil {
		return err
	}

	rows := make([]entity.BroadcastRecipient, 0, len(recipients))
	for _, externalID := range recipients {
		rows = append(rows, entity.BroadcastRecipient{
			JobID:      job.ID,
			ExternalID: externalID,
			Status:     entity.RecipientPending,
		})
	}

	if len(rows) > 0 {
		if err := xcontext.DB(ctx).CreateInBatches(rows, 500).Error; err != nil {
			return err
		}
	}

	xcontext.WithCommitDBTransaction(ctx)
	return nil
}

func (r *broadcastRepository) GetJobByID(ctx context.Context, jobID int64) (*entity.BroadcastJob, error) {
	var result entity.BroadcastJob
	if err := xcontext.DB(ctx).Take(&result, "id=?", jobID).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

// GetNextRunnableJob returns the oldest job still owed deliveries. A job
// left in sending by a restarted worker is runnable again; the guarded
// per-recipient updates make re-processing safe. Snowflake ids are
// time-ordered, so ordering by id is ordering by enqueue time.
func (r *broadcastRepository) GetNextRunnableJob(ctx context.Context) (*entity.BroadcastJob, error) {
	var result entity.BroadcastJob
	err := xcontext.DB(ctx).Where("status IN (?)",
		[]entity.BroadcastJobStatus{entity.JobPending, entity.JobSending}).
		Order("id ASC").Take(&result).Error
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// MarkJobSending claims a job for dispatch. Re-claiming a job already in
// sending is allowed so an interrupted dispatch can be resumed; the original
// started_at is kept in that case.
func (r *broadcastRepository) MarkJobSending(ctx context.Context, jobID int64) error {
	tx := xcontext.DB(ctx).Model(&entity.BroadcastJob{}).
		Where("id=? AND status IN (?)", jobID,
			[]entity.BroadcastJobStatus{entity.JobPending, entity.JobSending}).
		Updates(map[string]any{
			"status":     entity.JobSending,
			"started_at": gorm.Expr("COALESCE(started_at, ?)", sql.NullTime{Time: time.Now(), Valid: true}),
		})
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *broadcastRepository) FinishJob(
	ctx context.Context, jobID int64, status entity.BroadcastJobStatus,
) error {
	tx := xcontext.DB(ctx).Model(&entity.BroadcastJob{}).
		Where("id=? AND status=?", jobID, entity.JobSending).
		Updates(map[string]any{
			"status":      status,
			"finished_at": sql.NullTime{Time: time.Now(), Valid: true},
		})
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// CancelJob succeeds only while the job is still pending or sending.
func (r *broadcastRepository) CancelJob(ctx context.Context, jobID int64) error {
	tx := xcontext.DB(ctx).Model(&entity.BroadcastJob{}).
		Where("id=? AND status IN (?)", jobID,
			[]entity.BroadcastJobStatus{entity.JobPending, entity.JobSending}).
		Updates(map[string]any{
			"status":      entity.JobCancelled,
			"finished_at": sql.NullTime{Time: time.Now(), Valid: true},
		})
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *broadcastRepository) GetPendingRecipients(
	ctx context.Context, jobID int64, limit int,
) ([]entity.BroadcastRecipient, error) {
	var result []entity.BroadcastRecipient
	err := xcontext.DB(ctx).
		Where("job_id=? AND status=?", jobID, entity.RecipientPending).
		Order("id ASC").Limit(limit).Find(&result).Error
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *broadcastRepository) CountRecipients(
	ctx context.Context, jobID int64, status entity.BroadcastRecipientStatus,
) (int64, error) {
	var count int64
	err := xcontext.DB(ctx).Model(&entity.BroadcastRecipient{}).
		Where("job_id=? AND status=?", jobID, status).Count(&count).Error
	return count, err
}

// MarkRecipientDelivered is guarded by the pending status, so a recipient is
// marked delivered at most once no matter how often dispatch retries.
func (r *broadcastRepository) MarkRecipientDelivered(ctx context.Context, recipientID int64) error {
	tx := xcontext.DB(ctx).Model(&entity.BroadcastRecipient{}).
		Where("id=? AND status=?", recipientID, entity.RecipientPending).
		Update("status", entity.RecipientDelivered)
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *broadcastRepository) MarkRecipientFailed(ctx context.Context, recipientID int64) error {
	tx := xcontext.DB(ctx).Model(&entity.BroadcastRecipient{}).
		Where("id=? AND status=?", recipientID, entity.RecipientPending).
		Update("status", entity.RecipientFailed)
	if tx.Error != nil {
		return tx.Error
	}

	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *broadcastRepository) AddRecipientAttempt(ctx context.Context, recipientID int64) error {
	return xcontext.DB(ctx).Model(&entity.BroadcastRecipient{}).
		Where("id=?", recipientID).
		Update("attempts", gorm.Expr("attempts+?", 1)).Error
}
