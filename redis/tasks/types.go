package tasks

import "github.com/rentdir/bulk-importer/importer"

// Task types
const (
	TypeImportBatch    = "import:batch"
	TypeHealthCheck    = "health:check"
	TypeConnectionTest = "connection:test"
)

// Task queue priorities
const (
	PriorityLow      = "low"
	PriorityDefault  = "default"
	PriorityCritical = "critical"
)

// ImportPayload carries one batch of listings through the queue together
// with the identity that submitted it.
type ImportPayload struct {
	BatchID   string                `json:"batch_id"`
	AccountID string                `json:"account_id"`
	Role      string                `json:"role"`
	Rows      []importer.Row        `json:"rows"`
	Options   importer.BatchOptions `json:"options"`
}
