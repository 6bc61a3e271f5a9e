package model

import "time"

type RunDrawRequest struct {
	RunID       string   `json:"run_id"`
	WinnerCount int      `json:"winner_count"`
	Prizes      []string `json:"prizes"`
}

type RunDrawResponse struct {
	RunID       string       `json:"run_id"`
	Seed        string       `json:"seed"`
	Underfilled bool         `json:"underfilled"`
	Winners     []DrawWinner `json:"winners"`
}

type DrawWinner struct {
	ParticipantID    string `json:"participant_id"`
	ExternalID       int64  `json:"external_id"`
	Position         int    `json:"position"`
	PrizeDescription string `json:"prize_description"`
	Claimed          bool   `json:"claimed"`
}

type GetRunRequest struct {
	RunID string `json:"run_id"`
}

type GetRunResponse struct {
	RunID       string       `json:"run_id"`
	Seed        string       `json:"seed"`
	ExecutedAt  time.Time    `json:"executed_at"`
	Underfilled bool         `json:"underfilled"`
	Winners     []DrawWinner `json:"winners"`
}

type ClaimPrizeRequest struct {
	RunID         string `json:"run_id"`
	ParticipantID string `json:"participant_id"`
}

type ClaimPrizeResponse struct{}
