package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/raffleworks/backend/internal/common"
	"github.com/raffleworks/backend/internal/entity"
	"github.com/raffleworks/backend/internal/model"
	"github.com/raffleworks/backend/internal/repository"
	"github.com/raffleworks/backend/pkg/errorx"
	"github.com/raffleworks/backend/pkg/sqlitepool"
	"github.com/raffleworks/backend/pkg/storage"
	"github.com/raffleworks/backend/pkg/xcontext"
	"gorm.io/gorm"
)

type RegistrationDomain interface {
	Register(ctx context.Context, req *model.RegisterParticipantRequest) (*model.RegisterParticipantResponse, error)
	ImportParticipants(ctx context.Context, req *model.ImportParticipantsRequest) (*model.ImportParticipantsResponse, error)
	GetStatus(ctx context.Context, req *model.GetRegistrationStatusRequest) (*model.GetRegistrationStatusResponse, error)
	SaveState(ctx context.Context, req *model.SaveRegistrationStateRequest) (*model.SaveRegistrationStateResponse, error)
	LoadState(ctx context.Context, req *model.LoadRegistrationStateRequest) (*model.LoadRegistrationStateResponse, error)
	SweepStaleStates(ctx context.Context) (int64, error)
}

type registrationDomain struct {
	participantRepo repository.ParticipantRepository
	stateRepo       repository.RegistrationStateRepository
	fraudLogRepo    repository.FraudLogRepository
	fraudDomain     FraudDomain
	pool            *sqlitepool.Pool
	fileStorage     storage.Storage
}

func NewRegistrationDomain(
	participantRepo repository.ParticipantRepository,
	stateRepo repository.RegistrationStateRepository,
	fraudLogRepo repository.FraudLogRepository,
	fraudDomain FraudDomain,
	pool *sqlitepool.Pool,
	fileStorage storage.Storage,
) *registrationDomain {
	return &registrationDomain{
		participantRepo: participantRepo,
		stateRepo:       stateRepo,
		fraudLogRepo:    fraudLogRepo,
		fraudDomain:     fraudDomain,
		pool:            pool,
		fileStorage:     fileStorage,
	}
}

func validateRegistration(req *model.RegisterParticipantRequest) error {
	if req.ExternalID <= 0 {
		return errorx.New(errorx.BadRequest, "External id is required")
	}

	if req.FullName == "" {
		return errorx.New(errorx.BadRequest, "Full name is required")
	}

	if req.Phone == "" {
		return errorx.New(errorx.BadRequest, "Phone number is required")
	}

	if req.LoyaltyCard == "" {
		return errorx.New(errorx.BadRequest, "Loyalty card is required")
	}

	return nil
}

func (d *registrationDomain) Register(
	ctx context.Context, req *model.RegisterParticipantRequest,
) (*model.RegisterParticipantResponse, error) {
	if err := validateRegistration(req); err != nil {
		return nil, err
	}

	signals := FraudSignals{
		RegistrationSeconds: req.RegistrationSeconds,
		FullName:            req.FullName,
	}

	err := d.pool.WithRead(ctx, func(ctx context.Context) error {
		phones, err := d.participantRepo.CountByPhone(ctx, req.Phone)
		if err != nil {
			return err
		}

		cards, err := d.participantRepo.CountByLoyaltyCard(ctx, req.LoyaltyCard)
		if err != nil {
			return err
		}

		recent, err := d.participantRepo.CountRecentByExternalID(
			ctx, req.ExternalID, time.Now().Add(-time.Hour))
		if err != nil {
			return err
		}

		actions, err := d.fraudLogRepo.CountRecentByExternalID(
			ctx, req.ExternalID, time.Now().Add(-time.Hour))
		if err != nil {
			return err
		}

		signals.DuplicatePhone = phones > 0
		signals.DuplicateLoyaltyCard = cards > 0
		signals.RecentRegistrations = recent
		signals.ActionsLastHour = actions
		return nil
	})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot probe duplicate keys: %v", err)
		return nil, errorx.Unknown
	}

	verdict, err := d.fraudDomain.ScoreAndLog(ctx, req.ExternalID, signals)
	if err != nil {
		return nil, err
	}

	resp := &model.RegisterParticipantResponse{
		FraudScore:   verdict.Score,
		FraudReasons: verdict.Reasons,
		Flagged:      verdict.Suspicious,
		Blocked:      verdict.Block,
	}

	if verdict.Block {
		resp.Status = "blocked"
		return resp, nil
	}

	photoKey := ""
	if len(req.Photo) > 0 {
		photoKey, err = common.ProcessPhoto(ctx, d.fileStorage, req.ExternalID, req.Photo)
		if err != nil {
			return nil, err
		}
	}

	participant := &entity.Participant{
		Base:        entity.Base{ID: uuid.NewString()},
		ExternalID:  req.ExternalID,
		Username:    req.Username,
		FullName:    req.FullName,
		Phone:       req.Phone,
		LoyaltyCard: req.LoyaltyCard,
		PhotoKey:    photoKey,
		Status:      entity.ParticipantPending,
	}

	err = d.pool.WithWrite(ctx, func(ctx context.Context) error {
		return d.participantRepo.Create(ctx, participant)
	})
	if err != nil {
		if errors.Is(err, errorx.Error{Code: errorx.AlreadyExists}) {
			return nil, err
		}

		xcontext.Logger(ctx).Errorf("Cannot create participant: %v", err)
		return nil, errorx.Unknown
	}

	// The saved dialogue state has served its purpose once the row exists.
	err = d.pool.WithWrite(ctx, func(ctx context.Context) error {
		return d.stateRepo.Clear(ctx, req.ExternalID)
	})
	if err != nil {
		xcontext.Logger(ctx).Warnf("Cannot clear registration state: %v", err)
	}

	resp.Status = string(entity.ParticipantPending)
	return resp, nil
}

// ImportParticipants inserts a prepared batch atomically: one conflicting
// record rolls back the whole import.
func (d *registrationDomain) ImportParticipants(
	ctx context.Context, req *model.ImportParticipantsRequest,
) (*model.ImportParticipantsResponse, error) {
	participants := make([]*entity.Participant, 0, len(req.Records))
	for _, record := range req.Records {
		if err := validateRegistration(&record); err != nil {
			return nil, err
		}

		participants = append(participants, &entity.Participant{
			Base:        entity.Base{ID: uuid.NewString()},
			ExternalID:  record.ExternalID,
			Username:    record.Username,
			FullName:    record.FullName,
			Phone:       record.Phone,
			LoyaltyCard: record.LoyaltyCard,
			Status:      entity.ParticipantPending,
		})
	}

	var inserted int
	err := d.pool.WithWrite(ctx, func(ctx context.Context) error {
		var err error
		inserted, err = d.participantRepo.InsertBatch(ctx, participants)
		return err
	})
	if err != nil {
		if errors.Is(err, errorx.Error{Code: errorx.AlreadyExists}) {
			return nil, err
		}

		xcontext.Logger(ctx).Errorf("Cannot import participants: %v", err)
		return nil, err
	}

	return &model.ImportParticipantsResponse{Inserted: inserted}, nil
}

func (d *registrationDomain) GetStatus(
	ctx context.Context, req *model.GetRegistrationStatusRequest,
) (*model.GetRegistrationStatusResponse, error) {
	var status entity.ParticipantStatus
	err := d.pool.WithRead(ctx, func(ctx context.Context) error {
		var err error
		status, err = d.participantRepo.GetStatus(ctx, req.ExternalID)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errorx.New(errorx.NotFound, "Not found participant %d", req.ExternalID)
		}

		xcontext.Logger(ctx).Errorf("Cannot get participant status: %v", err)
		return nil, errorx.Unknown
	}

	return &model.GetRegistrationStatusResponse{Status: string(status)}, nil
}

func (d *registrationDomain) SaveState(
	ctx context.Context, req *model.SaveRegistrationStateRequest,
) (*model.SaveRegistrationStateResponse, error) {
	if req.ExternalID <= 0 {
		return nil, errorx.New(errorx.BadRequest, "External id is required")
	}

	err := d.pool.WithWrite(ctx, func(ctx context.Context) error {
		return d.stateRepo.Save(ctx, req.ExternalID, req.Payload)
	})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot save registration state: %v", err)
		return nil, errorx.Unknown
	}

	return &model.SaveRegistrationStateResponse{}, nil
}

func (d *registrationDomain) LoadState(
	ctx context.Context, req *model.LoadRegistrationStateRequest,
) (*model.LoadRegistrationStateResponse, error) {
	var state *entity.RegistrationState
	err := d.pool.WithRead(ctx, func(ctx context.Context) error {
		var err error
		state, err = d.stateRepo.Load(ctx, req.ExternalID)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &model.LoadRegistrationStateResponse{Found: false}, nil
		}

		xcontext.Logger(ctx).Errorf("Cannot load registration state: %v", err)
		return nil, errorx.Unknown
	}

	return &model.LoadRegistrationStateResponse{Payload: state.Payload, Found: true}, nil
}

// SweepStaleStates evicts in-progress registrations that were not updated
// within the configured timeout. It is called periodically by the worker.
func (d *registrationDomain) SweepStaleStates(ctx context.Context) (int64, error) {
	timeout := xcontext.Configs(ctx).RegistrationStateTimeout
	var removed int64
	err := d.pool.WithWrite(ctx, func(ctx context.Context) error {
		var err error
		removed, err = d.stateRepo.DeleteStale(ctx, time.Now().Add(-timeout))
		return err
	})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot sweep stale registration states: %v", err)
		return 0, errorx.Unknown
	}

	if removed > 0 {
		xcontext.Logger(ctx).Infof("Swept %d stale registration states", removed)
	}

	return removed, nil
}
