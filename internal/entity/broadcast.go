package entity

import (
	"database/sql"

	"github.com/raffleworks/backend/pkg/enum"
)

type BroadcastJobStatus string

var (
	JobPending        = enum.New(BroadcastJobStatus("pending"))
	JobSending        = enum.New(BroadcastJobStatus("sending"))
	JobDone           = enum.New(BroadcastJobStatus("done"))
	JobDoneWithErrors = enum.New(BroadcastJobStatus("done_with_errors"))
	JobCancelled      = enum.New(BroadcastJobStatus("cancelled"))
)

type BroadcastRecipientStatus string

var (
	RecipientPending   = enum.New(BroadcastRecipientStatus("pending"))
	RecipientDelivered = enum.New(BroadcastRecipientStatus("delivered"))
	RecipientFailed    = enum.New(BroadcastRecipientStatus("failed"))
)

type BroadcastJob struct {
	SnowFlakeBase

	Message         string
	TotalRecipients int
	Status          BroadcastJobStatus `gorm:"index"`
	StartedAt       sql.NullTime
	FinishedAt      sql.NullTime
}

type BroadcastRecipient struct {
	ID int64 `gorm:"primaryKey;autoIncrement"`

	JobID int64        `gorm:"index:idx_broadcast_recipients_job_status"`
	Job   BroadcastJob `gorm:"foreignKey:JobID"`

	ExternalID int64
	Status     BroadcastRecipientStatus `gorm:"index:idx_broadcast_recipients_job_status"`
	Attempts   int
}
