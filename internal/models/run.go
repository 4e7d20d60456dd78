package models

import (
	"encoding/json"
	"time"
)

// Run is one execution of a sync or reconciliation batch
type Run struct {
	ID         int64           `db:"id" json:"-"`
	RunID      string          `db:"run_id" json:"run_id"`
	Kind       string          `db:"kind" json:"kind"`
	Status     string          `db:"status" json:"status"`
	Details    json.RawMessage `db:"details" json:"details,omitempty"`
	StartedAt  time.Time       `db:"started_at" json:"started_at"`
	FinishedAt *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
}

// Run kind constants
const (
	RunKindSync           = "sync"
	RunKindReconciliation = "reconciliation"
)

// Run status constants
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)
