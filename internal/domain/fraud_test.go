package domain

import (
	"testing"
	"time"

	"github.com/raffleworks/backend/internal/repository"
	"github.com/raffleworks/backend/pkg/testutil"
	"github.com/stretchr/testify/require"
)

func Test_ScoreRegistration_CleanSignals(t *testing.T) {
	verdict := ScoreRegistration(FraudSignals{
		RegistrationSeconds: 45,
		FullName:            "Maria Petrova",
	})

	require.Zero(t, verdict.Score)
	require.Empty(t, verdict.Reasons)
	require.False(t, verdict.Suspicious)
	require.False(t, verdict.Block)
}

func Test_ScoreRegistration_FastRegistrationIsFlaggedOnlyWithMore(t *testing.T) {
	// Speed alone stays below the flag threshold.
	verdict := ScoreRegistration(FraudSignals{
		RegistrationSeconds: 5,
		FullName:            "Maria Petrova",
	})
	require.InDelta(t, 0.3, verdict.Score, 1e-9)
	require.False(t, verdict.Suspicious)

	// Speed plus a duplicate phone crosses it.
	verdict = ScoreRegistration(FraudSignals{
		RegistrationSeconds: 5,
		FullName:            "Maria Petrova",
		DuplicatePhone:      true,
	})
	require.InDelta(t, 0.8, verdict.Score, 1e-9)
	require.True(t, verdict.Suspicious)
	require.True(t, verdict.Block)
	require.Len(t, verdict.Reasons, 2)
}

func Test_ScoreRegistration_DuplicatesBlock(t *testing.T) {
	verdict := ScoreRegistration(FraudSignals{
		RegistrationSeconds:  60,
		FullName:             "Ivan Ivanov",
		DuplicatePhone:       true,
		DuplicateLoyaltyCard: true,
	})

	require.InDelta(t, 1.0, verdict.Score, 1e-9)
	require.True(t, verdict.Block)
	require.Contains(t, verdict.Reasons, "phone number already registered")
	require.Contains(t, verdict.Reasons, "loyalty card already used")
}

func Test_ScoreRegistration_SuspiciousName(t *testing.T) {
	verdict := ScoreRegistration(FraudSignals{
		RegistrationSeconds: 60,
		FullName:            "testuser",
	})

	// Single word plus a suspicious pattern.
	require.InDelta(t, 0.4, verdict.Score, 1e-9)
	require.Contains(t, verdict.Reasons, "incomplete name")
	require.Contains(t, verdict.Reasons, "suspicious name pattern")
	require.False(t, verdict.Suspicious)
}

func Test_ScoreRegistration_HighActivity(t *testing.T) {
	verdict := ScoreRegistration(FraudSignals{
		RegistrationSeconds: 60,
		FullName:            "Anna Karlova",
		RecentRegistrations: 3,
		ActionsLastHour:     10,
	})

	require.InDelta(t, 0.7, verdict.Score, 1e-9)
	require.True(t, verdict.Suspicious)
	require.False(t, verdict.Block)
}

func Test_ScoreRegistration_IsDeterministic(t *testing.T) {
	signals := FraudSignals{
		RegistrationSeconds: 3,
		FullName:            "bot",
		DuplicatePhone:      true,
		ActionsLastHour:     99,
	}

	first := ScoreRegistration(signals)
	for i := 0; i < 100; i++ {
		require.Equal(t, first, ScoreRegistration(signals))
	}
}

func Test_fraudDomain_ScoreAndLog(t *testing.T) {
	ctx, pool := testutil.MockContextWithPool()
	fraudLogRepo := repository.NewFraudLogRepository()
	fraudDomain := NewFraudDomain(fraudLogRepo, pool)

	// A clean verdict leaves no audit row behind.
	verdict, err := fraudDomain.ScoreAndLog(ctx, 1001, FraudSignals{
		RegistrationSeconds: 60,
		FullName:            "Maria Petrova",
	})
	require.NoError(t, err)
	require.False(t, verdict.Suspicious)

	count, err := fraudLogRepo.CountRecentByExternalID(ctx, 1001, time.Time{})
	require.NoError(t, err)
	require.Zero(t, count)

	// A suspicious one is persisted.
	verdict, err = fraudDomain.ScoreAndLog(ctx, 1001, FraudSignals{
		RegistrationSeconds: 2,
		FullName:            "Maria Petrova",
		DuplicatePhone:      true,
	})
	require.NoError(t, err)
	require.True(t, verdict.Block)

	count, err = fraudLogRepo.CountRecentByExternalID(ctx, 1001, time.Time{})
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}
