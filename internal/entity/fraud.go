package entity

type FraudLog struct {
	Base

	ExternalID   int64 `gorm:"index"`
	ActivityType string
	Score        float64
	Details      Map
}
