package entity

import (
	"database/sql"
)

type LotteryRun struct {
	Base

	Seed             string
	RequestedWinners int
	Prizes           Array[string]
	ExecutedAt       sql.NullTime
	Underfilled      bool
}

type Winner struct {
	Base

	RunID string
	Run   LotteryRun `gorm:"foreignKey:RunID"`

	ParticipantID string
	Participant   Participant `gorm:"foreignKey:ParticipantID"`

	Position         int
	PrizeDescription string
	Claimed          bool
}
