package testutil

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"github.com/raffleworks/backend/internal/entity"
	"github.com/raffleworks/backend/internal/repository"
)

// SampleParticipant creates an approved participant with randomized fields.
// Non-zero fields of init overwrite the sample before it is saved.
func SampleParticipant(
	ctx context.Context, repo repository.ParticipantRepository,
	externalID int64, init *entity.Participant,
) (entity.Participant, error) {
	sample := &entity.Participant{
		Base:        entity.Base{ID: uuid.NewString()},
		ExternalID:  externalID,
		Username:    fmt.Sprintf("user%d", externalID),
		FullName:    fmt.Sprintf("Sample User %d", externalID),
		Phone:       fmt.Sprintf("+100000%05d", externalID),
		LoyaltyCard: fmt.Sprintf("CARD-%05d", externalID),
		Status:      entity.ParticipantApproved,
	}

	if init != nil {
		overwriteFields(sample, *init)
	}

	if err := repo.Create(ctx, sample); err != nil {
		return *sample, err
	}

	return *sample, nil
}

func overwriteFields[T any](origin *T, overwrite T) {
	originValue := reflect.ValueOf(origin).Elem()
	overwriteValue := reflect.ValueOf(overwrite)

	for i := 0; i < overwriteValue.NumField(); i++ {
		overwriteField := overwriteValue.Field(i)
		if overwriteField.Interface() != reflect.Zero(overwriteField.Type()).Interface() {
			originValue.Field(i).Set(overwriteField)
		}
	}
}
