package client

import (
	"encoding/json"

	"github.com/adcommander/adcmdr-tools/internal/models"
)

// HealthResponse is returned by the liveness endpoint.
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Database      string  `json:"database"`
	Export        string  `json:"export"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// ReadyResponse is returned by the readiness endpoint.
type ReadyResponse struct {
	Status        string            `json:"status"`
	SchemaVersion int64             `json:"schema_version"`
	Checks        map[string]string `json:"checks"`
}

// actionResponse is the raw shape of every admin action answer.
type actionResponse struct {
	Action string          `json:"action"`
	Result string          `json:"result"`
	Notice string          `json:"notice"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// ExportReport describes a bundle the server just wrote.
type ExportReport struct {
	models.ExportResult
	Download string `json:"download"`
	Notice   string `json:"-"`
}

// ImportReport is the outcome of one bundle upload. Result is "fail" when
// no row could be imported.
type ImportReport struct {
	models.ImportResult
	Result string `json:"-"`
	Notice string `json:"-"`
}

// RogueReport lists statistics rows whose ad no longer exists.
type RogueReport struct {
	models.RogueStats
	Total int                         `json:"total"`
	AdIDs map[models.StatKind][]int64 `json:"ad_ids"`
}

// nonceResponse is returned by the nonce endpoint.
type nonceResponse struct {
	Action    string `json:"action"`
	Nonce     string `json:"nonce"`
	ExpiresIn int    `json:"expires_in"`
}
