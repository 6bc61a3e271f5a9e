package domain

import (
	"context"
	"errors"
	"time"

	"github.com/raffleworks/backend/config"
	"github.com/raffleworks/backend/internal/entity"
	"github.com/raffleworks/backend/internal/repository"
	"github.com/raffleworks/backend/pkg/sqlitepool"
	"github.com/raffleworks/backend/pkg/xcontext"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// BroadcastWorker pulls pending jobs and fans their recipients out through
// the injected Deliverer. One token-bucket limiter is shared by every
// dispatch attempt across all jobs, so the platform-wide send ceiling holds
// no matter how many campaigns run at once.
type BroadcastWorker struct {
	broadcastRepo repository.BroadcastRepository
	pool          *sqlitepool.Pool
	deliverer     Deliverer
	limiter       *rate.Limiter
	cfg           config.BroadcastConfigs
}

func NewBroadcastWorker(
	broadcastRepo repository.BroadcastRepository,
	pool *sqlitepool.Pool,
	deliverer Deliverer,
	cfg config.BroadcastConfigs,
) *BroadcastWorker {
	return &BroadcastWorker{
		broadcastRepo: broadcastRepo,
		pool:          pool,
		deliverer:     deliverer,
		limiter:       rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
		cfg:           cfg,
	}
}

// Start blocks until ctx is done, polling for pending jobs.
func (w *BroadcastWorker) Start(ctx context.Context) {
	xcontext.Logger(ctx).Infof("Broadcast worker started")

	for {
		processed, err := w.ProcessNext(ctx)
		if err != nil {
			xcontext.Logger(ctx).Errorf("Broadcast job failed: %v", err)
		}

		if processed {
			continue
		}

		select {
		case <-ctx.Done():
			xcontext.Logger(ctx).Infof("Broadcast worker stopped")
			return
		case <-time.After(w.cfg.PollInterval):
		}
	}
}

// ProcessNext claims and fully processes the oldest runnable job, which is
// either pending or a sending job stranded by an earlier worker restart. It
// returns false when no such job exists.
func (w *BroadcastWorker) ProcessNext(ctx context.Context) (bool, error) {
	var job *entity.BroadcastJob
	err := w.pool.WithRead(ctx, func(ctx context.Context) error {
		var err error
		job, err = w.broadcastRepo.GetNextRunnableJob(ctx)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}

		return false, err
	}

	// Claim the job. The guarded update fails only if the job reached a
	// terminal state between the read and the claim, in which case it is
	// skipped.
	err = w.pool.WithWrite(ctx, func(ctx context.Context) error {
		return w.broadcastRepo.MarkJobSending(ctx, job.ID)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return true, nil
		}

		return false, err
	}

	return true, w.process(ctx, job)
}

func (w *BroadcastWorker) process(ctx context.Context, job *entity.BroadcastJob) error {
	for {
		// Cancellation is cooperative and observed here, at batch
		// boundaries only; an in-flight batch always finishes.
		cancelled, err := w.jobCancelled(ctx, job.ID)
		if err != nil {
			return err
		}
		if cancelled {
			xcontext.Logger(ctx).Infof("Job %d cancelled, skipping remaining batches", job.ID)
			return nil
		}

		var batch []entity.BroadcastRecipient
		err = w.pool.WithRead(ctx, func(ctx context.Context) error {
			var err error
			batch, err = w.broadcastRepo.GetPendingRecipients(ctx, job.ID, w.cfg.BatchSize)
			return err
		})
		if err != nil {
			return err
		}

		if len(batch) == 0 {
			break
		}

		for _, recipient := range batch {
			if err := w.dispatch(ctx, job, recipient); err != nil {
				return err
			}
		}
	}

	failed, err := w.countFailed(ctx, job.ID)
	if err != nil {
		return err
	}

	status := entity.JobDone
	if failed > 0 {
		status = entity.JobDoneWithErrors
	}

	err = w.pool.WithWrite(ctx, func(ctx context.Context) error {
		return w.broadcastRepo.FinishJob(ctx, job.ID, status)
	})
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	return nil
}

// dispatch delivers to one recipient, retrying transient failures up to the
// attempt cap with exponential backoff. Exhausted attempts mark the
// recipient permanently failed without failing the job. Platform throttling
// pauses for the cool-down interval and does not consume an attempt; the
// guarded delivered-flag update keeps every recipient at-most-once across
// pause and resume.
func (w *BroadcastWorker) dispatch(
	ctx context.Context, job *entity.BroadcastJob, recipient entity.BroadcastRecipient,
) error {
	backoff := w.cfg.RetryBackoff
	for attempt := 0; attempt < w.cfg.MaxAttempts; attempt++ {
		if err := w.limiter.Wait(ctx); err != nil {
			return err
		}

		sendErr := w.deliverer.Send(ctx, recipient.ExternalID, job.Message)
		if errors.Is(sendErr, ErrThrottled) {
			xcontext.Logger(ctx).Warnf("Platform throttled, cooling down for %s", w.cfg.Cooldown)
			select {
			case <-time.After(w.cfg.Cooldown):
			case <-ctx.Done():
				return ctx.Err()
			}

			attempt--
			continue
		}

		err := w.pool.WithWrite(ctx, func(ctx context.Context) error {
			return w.broadcastRepo.AddRecipientAttempt(ctx, recipient.ID)
		})
		if err != nil {
			return err
		}

		if sendErr == nil {
			err := w.pool.WithWrite(ctx, func(ctx context.Context) error {
				return w.broadcastRepo.MarkRecipientDelivered(ctx, recipient.ID)
			})
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			return nil
		}

		xcontext.Logger(ctx).Debugf("Send to %d failed: %v", recipient.ExternalID, sendErr)

		if attempt < w.cfg.MaxAttempts-1 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}

			backoff *= 2
		}
	}

	err := w.pool.WithWrite(ctx, func(ctx context.Context) error {
		return w.broadcastRepo.MarkRecipientFailed(ctx, recipient.ID)
	})
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	return nil
}

func (w *BroadcastWorker) jobCancelled(ctx context.Context, jobID int64) (bool, error) {
	var cancelled bool
	err := w.pool.WithRead(ctx, func(ctx context.Context) error {
		job, err := w.broadcastRepo.GetJobByID(ctx, jobID)
		if err != nil {
			return err
		}

		cancelled = job.Status == entity.JobCancelled
		return nil
	})

	return cancelled, err
}

func (w *BroadcastWorker) countFailed(ctx context.Context, jobID int64) (int64, error) {
	var failed int64
	err := w.pool.WithRead(ctx, func(ctx context.Context) error {
		var err error
		failed, err = w.broadcastRepo.CountRecipients(ctx, jobID, entity.RecipientFailed)
		return err
	})

	return failed, err
}
