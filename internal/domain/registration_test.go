package domain

import (
	"errors"
	"testing"

	"github.com/raffleworks/backend/config"
	"github.com/raffleworks/backend/internal/model"
	"github.com/raffleworks/backend/internal/repository"
	"github.com/raffleworks/backend/pkg/cache"
	"github.com/raffleworks/backend/pkg/errorx"
	"github.com/raffleworks/backend/pkg/testutil"
	"github.com/stretchr/testify/require"
)

func Test_registrationDomain_Register(t *testing.T) {
	ctx, pool := testutil.MockContextWithPool()
	c := cache.New(config.Default().Cache)
	participantRepo := repository.NewParticipantRepository(c)
	stateRepo := repository.NewRegistrationStateRepository()
	fraudLogRepo := repository.NewFraudLogRepository()
	fraudDomain := NewFraudDomain(fraudLogRepo, pool)
	registrationDomain := NewRegistrationDomain(
		participantRepo, stateRepo, fraudLogRepo, fraudDomain, pool, &testutil.MockStorage{})

	resp, err := registrationDomain.Register(ctx, &model.RegisterParticipantRequest{
		ExternalID:          1001,
		Username:            "olga",
		FullName:            "Olga Sergeeva",
		Phone:               "+79990001122",
		LoyaltyCard:         "CARD-0001",
		RegistrationSeconds: 120,
	})
	require.NoError(t, err)
	require.Equal(t, "pending", resp.Status)
	require.False(t, resp.Flagged)
	require.Zero(t, resp.FraudScore)

	status, err := registrationDomain.GetStatus(ctx, &model.GetRegistrationStatusRequest{ExternalID: 1001})
	require.NoError(t, err)
	require.Equal(t, "pending", status.Status)
}

func Test_registrationDomain_RegisterValidation(t *testing.T) {
	ctx, pool := testutil.MockContextWithPool()
	c := cache.New(config.Default().Cache)
	registrationDomain := NewRegistrationDomain(
		repository.NewParticipantRepository(c),
		repository.NewRegistrationStateRepository(),
		repository.NewFraudLogRepository(),
		NewFraudDomain(repository.NewFraudLogRepository(), pool),
		pool, &testutil.MockStorage{})

	_, err := registrationDomain.Register(ctx, &model.RegisterParticipantRequest{
		ExternalID: 1, FullName: "A B", Phone: "+7123",
	})
	require.True(t, errors.Is(err, errorx.Error{Code: errorx.BadRequest}))

	_, err = registrationDomain.Register(ctx, &model.RegisterParticipantRequest{
		FullName: "A B", Phone: "+7123", LoyaltyCard: "C",
	})
	require.True(t, errors.Is(err, errorx.Error{Code: errorx.BadRequest}))
}

func Test_registrationDomain_BlockedRegistrationLeavesNoRow(t *testing.T) {
	ctx, pool := testutil.MockContextWithPool()
	c := cache.New(config.Default().Cache)
	participantRepo := repository.NewParticipantRepository(c)
	fraudLogRepo := repository.NewFraudLogRepository()
	registrationDomain := NewRegistrationDomain(
		participantRepo,
		repository.NewRegistrationStateRepository(),
		fraudLogRepo,
		NewFraudDomain(fraudLogRepo, pool),
		pool, &testutil.MockStorage{})

	// First registration takes the phone number.
	first, err := registrationDomain.Register(ctx, &model.RegisterParticipantRequest{
		ExternalID:          2001,
		FullName:            "Piotr Orlov",
		Phone:               "+79990002233",
		LoyaltyCard:         "CARD-0002",
		RegistrationSeconds: 90,
	})
	require.NoError(t, err)
	require.False(t, first.Blocked)

	// A scripted duplicate of it is blocked before any insert.
	second, err := registrationDomain.Register(ctx, &model.RegisterParticipantRequest{
		ExternalID:          2002,
		FullName:            "Piotr Orlov",
		Phone:               "+79990002233",
		LoyaltyCard:         "CARD-0003",
		RegistrationSeconds: 4,
	})
	require.NoError(t, err)
	require.True(t, second.Blocked)
	require.Equal(t, "blocked", second.Status)
	require.NotEmpty(t, second.FraudReasons)

	count, err := participantRepo.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func Test_registrationDomain_ImportParticipants(t *testing.T) {
	ctx, pool := testutil.MockContextWithPool()
	c := cache.New(config.Default().Cache)
	participantRepo := repository.NewParticipantRepository(c)
	fraudLogRepo := repository.NewFraudLogRepository()
	registrationDomain := NewRegistrationDomain(
		participantRepo,
		repository.NewRegistrationStateRepository(),
		fraudLogRepo,
		NewFraudDomain(fraudLogRepo, pool),
		pool, &testutil.MockStorage{})

	resp, err := registrationDomain.ImportParticipants(ctx, &model.ImportParticipantsRequest{
		Records: []model.RegisterParticipantRequest{
			{ExternalID: 3001, FullName: "A One", Phone: "+71", LoyaltyCard: "I-1"},
			{ExternalID: 3002, FullName: "B Two", Phone: "+72", LoyaltyCard: "I-2"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 2, resp.Inserted)

	// A batch with one conflict imports nothing.
	_, err = registrationDomain.ImportParticipants(ctx, &model.ImportParticipantsRequest{
		Records: []model.RegisterParticipantRequest{
			{ExternalID: 3003, FullName: "C Three", Phone: "+73", LoyaltyCard: "I-3"},
			{ExternalID: 3001, FullName: "A One", Phone: "+74", LoyaltyCard: "I-4"},
		},
	})
	require.True(t, errors.Is(err, errorx.Error{Code: errorx.AlreadyExists}))

	count, err := participantRepo.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}

func Test_registrationDomain_StateLifecycle(t *testing.T) {
	ctx, pool := testutil.MockContextWithPool()
	c := cache.New(config.Default().Cache)
	participantRepo := repository.NewParticipantRepository(c)
	fraudLogRepo := repository.NewFraudLogRepository()
	registrationDomain := NewRegistrationDomain(
		participantRepo,
		repository.NewRegistrationStateRepository(),
		fraudLogRepo,
		NewFraudDomain(fraudLogRepo, pool),
		pool, &testutil.MockStorage{})

	_, err := registrationDomain.SaveState(ctx, &model.SaveRegistrationStateRequest{
		ExternalID: 4001,
		Payload:    `{"step":"phone"}`,
	})
	require.NoError(t, err)

	// Saving again overwrites in place.
	_, err = registrationDomain.SaveState(ctx, &model.SaveRegistrationStateRequest{
		ExternalID: 4001,
		Payload:    `{"step":"card"}`,
	})
	require.NoError(t, err)

	loaded, err := registrationDomain.LoadState(ctx, &model.LoadRegistrationStateRequest{ExternalID: 4001})
	require.NoError(t, err)
	require.True(t, loaded.Found)
	require.Equal(t, `{"step":"card"}`, loaded.Payload)

	// Completing the registration clears the saved state.
	_, err = registrationDomain.Register(ctx, &model.RegisterParticipantRequest{
		ExternalID:          4001,
		FullName:            "Dina Volkova",
		Phone:               "+79990004455",
		LoyaltyCard:         "CARD-0004",
		RegistrationSeconds: 45,
	})
	require.NoError(t, err)

	loaded, err = registrationDomain.LoadState(ctx, &model.LoadRegistrationStateRequest{ExternalID: 4001})
	require.NoError(t, err)
	require.False(t, loaded.Found)
}

func Test_registrationDomain_SweepStaleStates(t *testing.T) {
	ctx, pool := testutil.MockContextWithPool()
	c := cache.New(config.Default().Cache)
	fraudLogRepo := repository.NewFraudLogRepository()
	registrationDomain := NewRegistrationDomain(
		repository.NewParticipantRepository(c),
		repository.NewRegistrationStateRepository(),
		fraudLogRepo,
		NewFraudDomain(fraudLogRepo, pool),
		pool, &testutil.MockStorage{})

	_, err := registrationDomain.SaveState(ctx, &model.SaveRegistrationStateRequest{
		ExternalID: 5001,
		Payload:    `{"step":"name"}`,
	})
	require.NoError(t, err)

	// Nothing is stale within the timeout window.
	removed, err := registrationDomain.SweepStaleStates(ctx)
	require.NoError(t, err)
	require.Zero(t, removed)

	loaded, err := registrationDomain.LoadState(ctx, &model.LoadRegistrationStateRequest{ExternalID: 5001})
	require.NoError(t, err)
	require.True(t, loaded.Found)
}
