package model

type EnqueueBroadcastRequest struct {
	Message    string  `json:"message"`
	Recipients []int64 `json:"recipients"`
}

type EnqueueBroadcastResponse struct {
	JobID int64 `json:"job_id"`
}

type GetBroadcastStatusRequest struct {
	JobID int64 `json:"job_id"`
}

type GetBroadcastStatusResponse struct {
	Status    string `json:"status"`
	Total     int    `json:"total"`
	Delivered int64  `json:"delivered"`
	Failed    int64  `json:"failed"`
	Pending   int64  `json:"pending"`
}

type CancelBroadcastRequest struct {
	JobID int64 `json:"job_id"`
}

type CancelBroadcastResponse struct{}
