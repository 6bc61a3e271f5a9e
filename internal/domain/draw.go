package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync"
	"github.com/raffleworks/backend/internal/entity"
	"github.com/raffleworks/backend/internal/model"
	"github.com/raffleworks/backend/internal/repository"
	"github.com/raffleworks/backend/pkg/cache"
	"github.com/raffleworks/backend/pkg/crypto"
	"github.com/raffleworks/backend/pkg/errorx"
	"github.com/raffleworks/backend/pkg/sqlitepool"
	"github.com/raffleworks/backend/pkg/xcontext"
	"gorm.io/gorm"
)

type DrawDomain interface {
	RunDraw(ctx context.Context, req *model.RunDrawRequest) (*model.RunDrawResponse, error)
	GetRun(ctx context.Context, req *model.GetRunRequest) (*model.GetRunResponse, error)
	ClaimPrize(ctx context.Context, req *model.ClaimPrizeRequest) (*model.ClaimPrizeResponse, error)
}

type drawDomain struct {
	lotteryRepo     repository.LotteryRepository
	participantRepo repository.ParticipantRepository
	pool            *sqlitepool.Pool
	cache           *cache.Cache

	// One entry per run id currently executing. LoadOrStore is the
	// exclusive in-progress marker that makes concurrent triggers fail
	// fast instead of double-drawing.
	running *xsync.MapOf[string, bool]
}

func NewDrawDomain(
	lotteryRepo repository.LotteryRepository,
	participantRepo repository.ParticipantRepository,
	pool *sqlitepool.Pool,
	cache *cache.Cache,
) *drawDomain {
	return &drawDomain{
		lotteryRepo:     lotteryRepo,
		participantRepo: participantRepo,
		pool:            pool,
		cache:           cache,
		running:         xsync.NewMapOf[bool](),
	}
}

func runCacheKey(runID string) string {
	return fmt.Sprintf("draw:run:%s", runID)
}

// SelectWinners deterministically picks k winners without replacement from
// the snapshot using a partial Fisher-Yates permutation driven by the seed's
// derived stream. The same (snapshot, seed, k) always yields the same
// ordered winner list.
func SelectWinners(snapshot []entity.Participant, seed string, k int) []entity.Participant {
	n := len(snapshot)
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil
	}

	pool := make([]entity.Participant, n)
	copy(pool, snapshot)

	stream := crypto.DrawStream(seed)
	for i := 0; i < k; i++ {
		j := i + stream.Intn(n-i)
		pool[i], pool[j] = pool[j], pool[i]
	}

	return pool[:k]
}

func (d *drawDomain) RunDraw(
	ctx context.Context, req *model.RunDrawRequest,
) (*model.RunDrawResponse, error) {
	if req.RunID == "" {
		return nil, errorx.New(errorx.BadRequest, "Run id is required")
	}

	if req.WinnerCount < 0 {
		return nil, errorx.New(errorx.BadRequest, "Winner count must not be negative")
	}

	if _, loaded := d.running.LoadOrStore(req.RunID, true); loaded {
		return nil, errorx.New(errorx.DrawAlreadyRunning, "Run %s is already executing", req.RunID)
	}
	defer d.running.Delete(req.RunID)

	var snapshot []entity.Participant
	var run *entity.LotteryRun
	err := d.pool.WithRead(ctx, func(ctx context.Context) error {
		existing, err := d.lotteryRepo.GetRunByID(ctx, req.RunID)
		if err == nil {
			if existing.ExecutedAt.Valid {
				return errorx.New(errorx.DrawAlreadyExecuted,
					"Run %s was already executed", req.RunID)
			}

			// The run committed its seed but the winner write never
			// landed. Resume with the persisted seed so the outcome
			// stays the one the seed advertises.
			run = existing
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			xcontext.Logger(ctx).Errorf("Cannot check existing run: %v", err)
			return errorx.Unknown
		}

		snapshot, err = d.participantRepo.GetApprovedSnapshot(ctx)
		if err != nil {
			xcontext.Logger(ctx).Errorf("Cannot take approved snapshot: %v", err)
			return errorx.Unknown
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if run == nil {
		if len(snapshot) == 0 && req.WinnerCount > 0 {
			return nil, errorx.New(errorx.InsufficientParticipants,
				"No approved participants to draw from")
		}

		seed, err := crypto.NewDrawSeed()
		if err != nil {
			xcontext.Logger(ctx).Errorf("Cannot generate draw seed: %v", err)
			return nil, errorx.Unknown
		}

		// The seed and run metadata are persisted before any selection so
		// the computation can be audited and replayed afterwards.
		run = &entity.LotteryRun{
			Base:             entity.Base{ID: req.RunID},
			Seed:             seed,
			RequestedWinners: req.WinnerCount,
			Prizes:           entity.Array[string](req.Prizes),
		}
		err = d.pool.WithWrite(ctx, func(ctx context.Context) error {
			return d.lotteryRepo.CreateRun(ctx, run)
		})
		if err != nil {
			if errors.Is(err, errorx.Error{Code: errorx.AlreadyExists}) {
				return nil, errorx.New(errorx.DrawAlreadyRunning,
					"Run %s is already executing", req.RunID)
			}

			xcontext.Logger(ctx).Errorf("Cannot persist run: %v", err)
			return nil, err
		}
	} else if len(snapshot) == 0 && run.RequestedWinners > 0 {
		return nil, errorx.New(errorx.InsufficientParticipants,
			"No approved participants to draw from")
	}

	prizes := []string(run.Prizes)
	selected := SelectWinners(snapshot, run.Seed, run.RequestedWinners)
	underfilled := run.RequestedWinners > len(snapshot)

	winners := make([]*entity.Winner, 0, len(selected))
	for i, participant := range selected {
		prize := ""
		if i < len(prizes) {
			prize = prizes[i]
		}

		winners = append(winners, &entity.Winner{
			Base:             entity.Base{ID: uuid.NewString()},
			RunID:            req.RunID,
			ParticipantID:    participant.ID,
			Position:         i + 1,
			PrizeDescription: prize,
		})
	}

	err = d.pool.WithWrite(ctx, func(ctx context.Context) error {
		ctx = xcontext.WithDBTransaction(ctx)
		defer xcontext.WithRollbackDBTransaction(ctx)

		if err := d.lotteryRepo.CreateWinners(ctx, winners); err != nil {
			return err
		}

		if err := d.lotteryRepo.MarkRunExecuted(ctx, req.RunID, underfilled); err != nil {
			return err
		}

		xcontext.WithCommitDBTransaction(ctx)
		return nil
	})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot persist winners of run %s: %v", req.RunID, err)
		return nil, err
	}

	// A read that raced the two writes may have cached the run without its
	// winners; drop it now that the result is final.
	d.cache.Invalidate(runCacheKey(req.RunID))

	resp := &model.RunDrawResponse{
		RunID:       req.RunID,
		Seed:        run.Seed,
		Underfilled: underfilled,
	}
	for i, w := range winners {
		resp.Winners = append(resp.Winners, model.DrawWinner{
			ParticipantID:    w.ParticipantID,
			ExternalID:       selected[i].ExternalID,
			Position:         w.Position,
			PrizeDescription: w.PrizeDescription,
		})
	}

	return resp, nil
}

func (d *drawDomain) GetRun(ctx context.Context, req *model.GetRunRequest) (*model.GetRunResponse, error) {
	return cache.GetOrLoad(ctx, d.cache, runCacheKey(req.RunID), cache.TierWarm,
		func(ctx context.Context) (*model.GetRunResponse, error) {
			var resp *model.GetRunResponse
			err := d.pool.WithRead(ctx, func(ctx context.Context) error {
				run, err := d.lotteryRepo.GetRunByID(ctx, req.RunID)
				if err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return errorx.New(errorx.NotFound, "Not found run %s", req.RunID)
					}

					xcontext.Logger(ctx).Errorf("Cannot get run: %v", err)
					return errorx.Unknown
				}

				winners, err := d.lotteryRepo.GetWinnersByRunID(ctx, req.RunID)
				if err != nil {
					xcontext.Logger(ctx).Errorf("Cannot get winners: %v", err)
					return errorx.Unknown
				}

				resp = &model.GetRunResponse{
					RunID:       run.ID,
					Seed:        run.Seed,
					ExecutedAt:  run.ExecutedAt.Time,
					Underfilled: run.Underfilled,
				}
				for _, w := range winners {
					resp.Winners = append(resp.Winners, model.DrawWinner{
						ParticipantID:    w.ParticipantID,
						Position:         w.Position,
						PrizeDescription: w.PrizeDescription,
						Claimed:          w.Claimed,
					})
				}

				return nil
			})

			return resp, err
		})
}

func (d *drawDomain) ClaimPrize(
	ctx context.Context, req *model.ClaimPrizeRequest,
) (*model.ClaimPrizeResponse, error) {
	err := d.pool.WithWrite(ctx, func(ctx context.Context) error {
		return d.lotteryRepo.ClaimWinner(ctx, req.RunID, req.ParticipantID)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.NotFound, "No unclaimed prize for this participant")
		}

		xcontext.Logger(ctx).Errorf("Cannot claim prize: %v", err)
		return nil, errorx.Unknown
	}

	d.cache.Invalidate(runCacheKey(req.RunID))
	return &model.ClaimPrizeResponse{}, nil
}
