package domain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/raffleworks/backend/config"
	"github.com/raffleworks/backend/internal/entity"
	"github.com/raffleworks/backend/internal/model"
	"github.com/raffleworks/backend/internal/repository"
	"github.com/raffleworks/backend/pkg/cache"
	"github.com/raffleworks/backend/pkg/errorx"
	"github.com/raffleworks/backend/pkg/testutil"
	"github.com/stretchr/testify/require"
)

func newDrawFixture(t *testing.T, approved int) (context.Context, *drawDomain) {
	ctx, pool := testutil.MockContextWithPool()
	c := cache.New(config.Default().Cache)
	participantRepo := repository.NewParticipantRepository(c)
	lotteryRepo := repository.NewLotteryRepository()

	for i := 1; i <= approved; i++ {
		_, err := testutil.SampleParticipant(ctx, participantRepo, int64(i), nil)
		require.NoError(t, err)
	}

	return ctx, NewDrawDomain(lotteryRepo, participantRepo, pool, c)
}

func Test_SelectWinners_Deterministic(t *testing.T) {
	snapshot := make([]entity.Participant, 20)
	for i := range snapshot {
		snapshot[i] = entity.Participant{
			Base:       entity.Base{ID: fmt.Sprintf("p%d", i)},
			ExternalID: int64(i),
		}
	}

	const seed = "6f1ed002ab5595859014ebf0951522d9b9c55cd8e4a32f08b756a2a439a8e1ad"

	first := SelectWinners(snapshot, seed, 5)
	require.Len(t, first, 5)

	for i := 0; i < 50; i++ {
		require.Equal(t, first, SelectWinners(snapshot, seed, 5))
	}

	// A different seed gives a different permutation for 20 choose 5.
	other := SelectWinners(snapshot, seed+"x", 5)
	require.NotEqual(t, first, other)
}

func Test_SelectWinners_NoDuplicates(t *testing.T) {
	snapshot := make([]entity.Participant, 50)
	for i := range snapshot {
		snapshot[i] = entity.Participant{Base: entity.Base{ID: fmt.Sprintf("p%d", i)}}
	}

	winners := SelectWinners(snapshot, "seed", 50)
	seen := map[string]bool{}
	for _, w := range winners {
		require.False(t, seen[w.ID])
		seen[w.ID] = true
	}
	require.Len(t, seen, 50)
}

func Test_SelectWinners_Bounds(t *testing.T) {
	snapshot := []entity.Participant{{Base: entity.Base{ID: "only"}}}

	require.Nil(t, SelectWinners(snapshot, "seed", 0))
	require.Len(t, SelectWinners(snapshot, "seed", 5), 1)
	require.Nil(t, SelectWinners(nil, "seed", 0))
}

func Test_drawDomain_RunDraw(t *testing.T) {
	ctx, drawDomain := newDrawFixture(t, 10)

	resp, err := drawDomain.RunDraw(ctx, &model.RunDrawRequest{
		RunID:       "spring-run",
		WinnerCount: 3,
		Prizes:      []string{"Grand prize", "Second prize"},
	})
	require.NoError(t, err)
	require.Len(t, resp.Winners, 3)
	require.NotEmpty(t, resp.Seed)
	require.False(t, resp.Underfilled)

	require.Equal(t, 1, resp.Winners[0].Position)
	require.Equal(t, "Grand prize", resp.Winners[0].PrizeDescription)
	require.Equal(t, "Second prize", resp.Winners[1].PrizeDescription)
	require.Empty(t, resp.Winners[2].PrizeDescription)

	// The run is now sealed.
	_, err = drawDomain.RunDraw(ctx, &model.RunDrawRequest{RunID: "spring-run", WinnerCount: 3})
	require.True(t, errors.Is(err, errorx.Error{Code: errorx.DrawAlreadyExecuted}))

	// And readable with its winners in position order.
	got, err := drawDomain.GetRun(ctx, &model.GetRunRequest{RunID: "spring-run"})
	require.NoError(t, err)
	require.Equal(t, resp.Seed, got.Seed)
	require.Len(t, got.Winners, 3)
	for i, w := range got.Winners {
		require.Equal(t, i+1, w.Position)
	}
}

func Test_drawDomain_RunDraw_Underfilled(t *testing.T) {
	ctx, drawDomain := newDrawFixture(t, 2)

	resp, err := drawDomain.RunDraw(ctx, &model.RunDrawRequest{
		RunID:       "small-run",
		WinnerCount: 5,
	})
	require.NoError(t, err)
	require.True(t, resp.Underfilled)
	require.Len(t, resp.Winners, 2)
}

func Test_drawDomain_RunDraw_NoParticipants(t *testing.T) {
	ctx, drawDomain := newDrawFixture(t, 0)

	_, err := drawDomain.RunDraw(ctx, &model.RunDrawRequest{
		RunID:       "empty-run",
		WinnerCount: 1,
	})
	require.True(t, errors.Is(err, errorx.Error{Code: errorx.InsufficientParticipants}))
}

func Test_drawDomain_RunDraw_ZeroWinners(t *testing.T) {
	ctx, drawDomain := newDrawFixture(t, 0)

	// Zero winners over an empty pool still records an auditable run.
	resp, err := drawDomain.RunDraw(ctx, &model.RunDrawRequest{RunID: "audit-run"})
	require.NoError(t, err)
	require.Empty(t, resp.Winners)
}

func Test_drawDomain_RunDraw_ConcurrentSameRun(t *testing.T) {
	ctx, drawDomain := newDrawFixture(t, 10)

	const workers = 8
	errs := make(chan error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := drawDomain.RunDraw(ctx, &model.RunDrawRequest{
				RunID:       "contested-run",
				WinnerCount: 2,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}

		alreadyRunning := errors.Is(err, errorx.Error{Code: errorx.DrawAlreadyRunning})
		alreadyExecuted := errors.Is(err, errorx.Error{Code: errorx.DrawAlreadyExecuted})
		require.True(t, alreadyRunning || alreadyExecuted, "unexpected error: %v", err)
	}

	require.Equal(t, 1, succeeded)
}

func Test_drawDomain_ClaimPrize(t *testing.T) {
	ctx, drawDomain := newDrawFixture(t, 5)

	resp, err := drawDomain.RunDraw(ctx, &model.RunDrawRequest{RunID: "claim-run", WinnerCount: 1})
	require.NoError(t, err)
	winner := resp.Winners[0]

	_, err = drawDomain.ClaimPrize(ctx, &model.ClaimPrizeRequest{
		RunID:         "claim-run",
		ParticipantID: winner.ParticipantID,
	})
	require.NoError(t, err)

	// A prize can only be claimed once.
	_, err = drawDomain.ClaimPrize(ctx, &model.ClaimPrizeRequest{
		RunID:         "claim-run",
		ParticipantID: winner.ParticipantID,
	})
	require.Error(t, err)

	got, err := drawDomain.GetRun(ctx, &model.GetRunRequest{RunID: "claim-run"})
	require.NoError(t, err)
	require.True(t, got.Winners[0].Claimed)
}


func Test_drawDomain_RunDraw_ResumesInterruptedRun(t *testing.T) {
	ctx, pool := testutil.MockContextWithPool()
	c := cache.New(config.Default().Cache)
	participantRepo := repository.NewParticipantRepository(c)
	lotteryRepo := repository.NewLotteryRepository()
	for i := 1; i <= 5; i++ {
		_, err := testutil.SampleParticipant(ctx, participantRepo, int64(i), nil)
		require.NoError(t, err)
	}
	drawDomain := NewDrawDomain(lotteryRepo, participantRepo, pool, c)

	// A run whose seed committed but whose winner write never landed, as
	// after a crash between the two writes.
	const seed = "4ca6a489bb17655f1c4b0ac1b0fd57bbaaef2a8c3a7e12975bf486c08c1472c0"
	err := pool.WithWrite(ctx, func(ctx context.Context) error {
		return lotteryRepo.CreateRun(ctx, &entity.LotteryRun{
			Base:             entity.Base{ID: "halted-run"},
			Seed:             seed,
			RequestedWinners: 2,
			Prizes:           entity.Array[string]{"tv", "toaster"},
		})
	})
	require.NoError(t, err)

	// A read of the half-written run lands in the cache first.
	stale, err := drawDomain.GetRun(ctx, &model.GetRunRequest{RunID: "halted-run"})
	require.NoError(t, err)
	require.Empty(t, stale.Winners)
	require.True(t, stale.ExecutedAt.IsZero())

	// The retry completes the run with the persisted seed, not a new one.
	resp, err := drawDomain.RunDraw(ctx, &model.RunDrawRequest{RunID: "halted-run", WinnerCount: 2})
	require.NoError(t, err)
	require.Equal(t, seed, resp.Seed)
	require.Len(t, resp.Winners, 2)
	require.Equal(t, "tv", resp.Winners[0].PrizeDescription)
	require.Equal(t, "toaster", resp.Winners[1].PrizeDescription)

	// The completed draw must evict the winnerless cached view.
	got, err := drawDomain.GetRun(ctx, &model.GetRunRequest{RunID: "halted-run"})
	require.NoError(t, err)
	require.Len(t, got.Winners, 2)
	require.False(t, got.ExecutedAt.IsZero())

	// Once completed, the run is final.
	_, err = drawDomain.RunDraw(ctx, &model.RunDrawRequest{RunID: "halted-run", WinnerCount: 2})
	require.True(t, errors.Is(err, errorx.Error{Code: errorx.DrawAlreadyExecuted}))
}
