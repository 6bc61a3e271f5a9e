package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/raffleworks/backend/internal/entity"
	"github.com/raffleworks/backend/internal/repository"
	"github.com/raffleworks/backend/pkg/sqlitepool"
	"github.com/raffleworks/backend/pkg/xcontext"
)

const (
	fraudBlockThreshold = 0.8
	fraudFlagThreshold  = 0.5

	// Registrations completed faster than this look scripted.
	minHumanRegistrationSeconds = 15
)

var suspiciousNamePatterns = []string{"test", "qwerty", "asdf", "123", "admin", "bot"}

// FraudSignals is supplied entirely by the caller. The scorer reads nothing
// else, which keeps it reproducible.
type FraudSignals struct {
	RegistrationSeconds  float64
	FullName             string
	DuplicatePhone       bool
	DuplicateLoyaltyCard bool
	RecentRegistrations  int64
	ActionsLastHour      int64
}

type FraudVerdict struct {
	Score      float64
	Reasons    []string
	Suspicious bool
	Block      bool
}

// ScoreRegistration is a pure function over the supplied signals. The reason
// list names every heuristic that fired.
func ScoreRegistration(signals FraudSignals) FraudVerdict {
	score := 0.0
	var reasons []string

	if signals.RegistrationSeconds > 0 && signals.RegistrationSeconds < minHumanRegistrationSeconds {
		score += 0.3
		reasons = append(reasons,
			fmt.Sprintf("registration too fast: %.1fs", signals.RegistrationSeconds))
	}

	if signals.DuplicatePhone {
		score += 0.5
		reasons = append(reasons, "phone number already registered")
	}

	if signals.DuplicateLoyaltyCard {
		score += 0.5
		reasons = append(reasons, "loyalty card already used")
	}

	if signals.RecentRegistrations > 2 {
		score += 0.4
		reasons = append(reasons,
			fmt.Sprintf("multiple registration attempts: %d", signals.RecentRegistrations))
	}

	if len(strings.Fields(signals.FullName)) < 2 {
		score += 0.1
		reasons = append(reasons, "incomplete name")
	}

	lowered := strings.ToLower(signals.FullName)
	for _, pattern := range suspiciousNamePatterns {
		if strings.Contains(lowered, pattern) {
			score += 0.3
			reasons = append(reasons, "suspicious name pattern")
			break
		}
	}

	if signals.ActionsLastHour > 5 {
		score += 0.3
		reasons = append(reasons,
			fmt.Sprintf("high activity rate: %d actions/hour", signals.ActionsLastHour))
	}

	if score > 1 {
		score = 1
	}

	return FraudVerdict{
		Score:      score,
		Reasons:    reasons,
		Suspicious: score >= fraudFlagThreshold,
		Block:      score >= fraudBlockThreshold,
	}
}

// FraudDomain wraps the pure scorer with fraud-log persistence so flagged
// registrations leave an audit trail.
type FraudDomain interface {
	ScoreAndLog(ctx context.Context, externalID int64, signals FraudSignals) (FraudVerdict, error)
}

type fraudDomain struct {
	fraudLogRepo repository.FraudLogRepository
	pool         *sqlitepool.Pool
}

func NewFraudDomain(fraudLogRepo repository.FraudLogRepository, pool *sqlitepool.Pool) *fraudDomain {
	return &fraudDomain{fraudLogRepo: fraudLogRepo, pool: pool}
}

func (d *fraudDomain) ScoreAndLog(
	ctx context.Context, externalID int64, signals FraudSignals,
) (FraudVerdict, error) {
	verdict := ScoreRegistration(signals)
	if !verdict.Suspicious {
		return verdict, nil
	}

	activityType := "suspicious_registration"
	if verdict.Block {
		activityType = "blocked_registration"
	}

	err := d.pool.WithWrite(ctx, func(ctx context.Context) error {
		return d.fraudLogRepo.Create(ctx, &entity.FraudLog{
			Base:         entity.Base{ID: uuid.NewString()},
			ExternalID:   externalID,
			ActivityType: activityType,
			Score:        verdict.Score,
			Details: entity.Map{
				"reasons": verdict.Reasons,
			},
		})
	})
	if err != nil {
		// The verdict still stands; losing the audit row is not a reason to
		// let a registration through unscored.
		xcontext.Logger(ctx).Errorf("Cannot write fraud log: %v", err)
	}

	return verdict, nil
}
