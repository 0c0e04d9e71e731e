package models

// Refresh response statuses.
const (
	RefreshStatusSuccess   = "success"
	RefreshStatusCompleted = "completed"
)

// RefreshRequest is the body of POST /v1/forecasts:refresh. An empty body or
// an empty stationId refreshes every station.
type RefreshRequest struct {
	StationID string `json:"stationId" validate:"omitempty,max=128,excludesall= \t\r\n"`
}

// StationRefreshResponse is returned when a single station was refreshed.
type StationRefreshResponse struct {
	Status    string    `json:"status"`
	StationID string    `json:"stationId"`
	Timestamp Timestamp `json:"timestamp"`
}

// RefreshOutcome is a station that was not refreshed and why.
type RefreshOutcome struct {
	StationID string `json:"stationId"`
	Reason    string `json:"reason"`
}

// RunRefreshResponse is returned when every station was processed.
type RunRefreshResponse struct {
	Status    string           `json:"status"`
	Timestamp Timestamp        `json:"timestamp"`
	RunID     string           `json:"runId"`
	Success   []string         `json:"success"`
	Failed    []RefreshOutcome `json:"failed"`
	Skipped   []RefreshOutcome `json:"skipped"`
}
