package entity

import "time"

// RegistrationState persists an in-progress registration keyed by the
// external user id. The payload is opaque to the core; UpdatedAt drives
// staleness-based eviction.
type RegistrationState struct {
	ExternalID int64 `gorm:"primaryKey"`
	Payload    string
	UpdatedAt  time.Time `gorm:"index"`
}
