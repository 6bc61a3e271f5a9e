package model

type RegisterParticipantRequest struct {
	ExternalID  int64  `json:"external_id"`
	Username    string `json:"username"`
	FullName    string `json:"full_name"`
	Phone       string `json:"phone"`
	LoyaltyCard string `json:"loyalty_card"`

	Photo []byte `json:"photo"`

	// RegistrationSeconds is how long the caller's dialogue flow took; it
	// feeds the abuse scorer.
	RegistrationSeconds float64 `json:"registration_seconds"`
}

type RegisterParticipantResponse struct {
	Status       string   `json:"status"`
	FraudScore   float64  `json:"fraud_score"`
	FraudReasons []string `json:"fraud_reasons,omitempty"`
	Flagged      bool     `json:"flagged"`
	Blocked      bool     `json:"blocked"`
}

type ImportParticipantsRequest struct {
	Records []RegisterParticipantRequest `json:"records"`
}

type ImportParticipantsResponse struct {
	Inserted int `json:"inserted"`
}

type GetRegistrationStatusRequest struct {
	ExternalID int64 `json:"external_id"`
}

type GetRegistrationStatusResponse struct {
	Status string `json:"status"`
}

type SaveRegistrationStateRequest struct {
	ExternalID int64  `json:"external_id"`
	Payload    string `json:"payload"`
}

type SaveRegistrationStateResponse struct{}

type LoadRegistrationStateRequest struct {
	ExternalID int64 `json:"external_id"`
}

type LoadRegistrationStateResponse struct {
	Payload string `json:"payload"`
	Found   bool   `json:"found"`
}
