package entity

import "github.com/raffleworks/backend/pkg/enum"

type ParticipantStatus string

var (
	ParticipantPending  = enum.New(ParticipantStatus("pending"))
	ParticipantApproved = enum.New(ParticipantStatus("approved"))
	ParticipantRejected = enum.New(ParticipantStatus("rejected"))
)

// AllowedParticipantTransitions is the full transition table. Approved is
// terminal inside a drawing cycle; rejected participants may resubmit.
var AllowedParticipantTransitions = map[ParticipantStatus][]ParticipantStatus{
	ParticipantPending:  {ParticipantApproved, ParticipantRejected},
	ParticipantRejected: {ParticipantPending},
}

type Participant struct {
	Base

	ExternalID  int64  `gorm:"uniqueIndex"`
	Username    string
	FullName    string
	Phone       string `gorm:"uniqueIndex"`
	LoyaltyCard string `gorm:"uniqueIndex"`
	PhotoKey    string
	Status      ParticipantStatus `gorm:"index"`
	AdminNotes  string
}
