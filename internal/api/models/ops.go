package models

// HealthStatus grades the service, a subsystem or a provider.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusFail     HealthStatus = "FAIL"
)

// Health is the liveness and readiness body.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus is the /status body.
type SystemStatus struct {
	Status     HealthStatus      `json:"status"`
	Time       Timestamp         `json:"time"`
	Subsystems []SubsystemStatus `json:"subsystems"`
	Providers  []ProviderStatus  `json:"providers"`
	Ingestion  *IngestionStatus  `json:"ingestion,omitempty"`
}

// SubsystemStatus reports a backing dependency such as the station store.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail *string      `json:"detail,omitempty"`
}

// ProviderStatus reports an upstream forecast provider.
type ProviderStatus struct {
	Provider      string       `json:"provider"`
	Status        HealthStatus `json:"status"`
	CircuitState  string       `json:"circuitState"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       *string      `json:"message,omitempty"`
}

// IngestionStatus summarizes runs handled by this process.
type IngestionStatus struct {
	Runs          int64      `json:"runs"`
	FailedRuns    int64      `json:"failedRuns"`
	StationsOK    int64      `json:"stationsOk"`
	StationsFail  int64      `json:"stationsFailed"`
	StationsSkip  int64      `json:"stationsSkipped"`
	LastRunID     string     `json:"lastRunId,omitempty"`
	LastRunAt     *Timestamp `json:"lastRunAt,omitempty"`
	LastRunFailed bool       `json:"lastRunFailed"`
}
