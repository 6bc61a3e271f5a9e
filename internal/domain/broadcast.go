package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/raffleworks/backend/internal/entity"
	"github.com/raffleworks/backend/internal/model"
	"github.com/raffleworks/backend/internal/repository"
	"github.com/raffleworks/backend/pkg/errorx"
	"github.com/raffleworks/backend/pkg/sqlitepool"
	"github.com/raffleworks/backend/pkg/xcontext"
	"gorm.io/gorm"
)

// Deliverer is the abstract send capability implemented by the out-of-scope
// messaging-platform client.
type Deliverer interface {
	Send(ctx context.Context, externalID int64, message string) error
}

// ErrThrottled is returned by a Deliverer when the platform signals
// rate-limiting; the worker reacts with a cool-down instead of a retry.
var ErrThrottled = errors.New("delivery throttled by platform")

type BroadcastDomain interface {
	Enqueue(ctx context.Context, req *model.EnqueueBroadcastRequest) (*model.EnqueueBroadcastResponse, error)
	GetStatus(ctx context.Context, req *model.GetBroadcastStatusRequest) (*model.GetBroadcastStatusResponse, error)
	Cancel(ctx context.Context, req *model.CancelBroadcastRequest) (*model.CancelBroadcastResponse, error)
}

type broadcastDomain struct {
	broadcastRepo repository.BroadcastRepository
	pool          *sqlitepool.Pool
	idGenerator   *snowflake.Node
}

func NewBroadcastDomain(
	broadcastRepo repository.BroadcastRepository,
	pool *sqlitepool.Pool,
	idGenerator *snowflake.Node,
) *broadcastDomain {
	return &broadcastDomain{
		broadcastRepo: broadcastRepo,
		pool:          pool,
		idGenerator:   idGenerator,
	}
}

func (d *broadcastDomain) Enqueue(
	ctx context.Context, req *model.EnqueueBroadcastRequest,
) (*model.EnqueueBroadcastResponse, error) {
	if req.Message == "" {
		return nil, errorx.New(errorx.BadRequest, "Message must not be empty")
	}

	if len(req.Recipients) == 0 {
		return nil, errorx.New(errorx.BadRequest, "Recipient list must not be empty")
	}

	// Dedupe while preserving the caller's order; a recipient appears in a
	// job at most once.
	seen := make(map[int64]struct{}, len(req.Recipients))
	recipients := make([]int64, 0, len(req.Recipients))
	for _, id := range req.Recipients {
		if _, ok := seen[id]; ok {
			continue
		}

		seen[id] = struct{}{}
		recipients = append(recipients, id)
	}

	job := &entity.BroadcastJob{
		SnowFlakeBase: entity.SnowFlakeBase{ID: d.idGenerator.Generate().Int64()},
		Message:       req.Message,
		Status:        entity.JobPending,
	}

	err := d.pool.WithWrite(ctx, func(ctx context.Context) error {
		return d.broadcastRepo.CreateJob(ctx, job, recipients)
	})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot create broadcast job: %v", err)
		return nil, errorx.Unknown
	}

	return &model.EnqueueBroadcastResponse{JobID: job.ID}, nil
}

func (d *broadcastDomain) GetStatus(
	ctx context.Context, req *model.GetBroadcastStatusRequest,
) (*model.GetBroadcastStatusResponse, error) {
	var resp *model.GetBroadcastStatusResponse
	err := d.pool.WithRead(ctx, func(ctx context.Context) error {
		job, err := d.broadcastRepo.GetJobByID(ctx, req.JobID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errorx.New(errorx.NotFound, "Not found job %d", req.JobID)
			}

			xcontext.Logger(ctx).Errorf("Cannot get job: %v", err)
			return errorx.Unknown
		}

		delivered, err := d.broadcastRepo.CountRecipients(ctx, job.ID, entity.RecipientDelivered)
		if err != nil {
			return err
		}

		failed, err := d.broadcastRepo.CountRecipients(ctx, job.ID, entity.RecipientFailed)
		if err != nil {
			return err
		}

		pending, err := d.broadcastRepo.CountRecipients(ctx, job.ID, entity.RecipientPending)
		if err != nil {
			return err
		}

		resp = &model.GetBroadcastStatusResponse{
			Status:    string(job.Status),
			Total:     job.TotalRecipients,
			Delivered: delivered,
			Failed:    failed,
			Pending:   pending,
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return resp, nil
}

func (d *broadcastDomain) Cancel(
	ctx context.Context, req *model.CancelBroadcastRequest,
) (*model.CancelBroadcastResponse, error) {
	err := d.pool.WithWrite(ctx, func(ctx context.Context) error {
		return d.broadcastRepo.CancelJob(ctx, req.JobID)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.JobNotCancellable,
				"Job %d is already terminal or unknown", req.JobID)
		}

		xcontext.Logger(ctx).Errorf("Cannot cancel job: %v", err)
		return nil, errorx.Unknown
	}

	return &model.CancelBroadcastResponse{}, nil
}
