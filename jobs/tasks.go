// Package jobs holds the background task definitions and the Asynq worker
// that runs them.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity recomputes party running totals from documents
	// and reports drift.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskLowStockScan flags products at or below their minimum stock.
	TaskLowStockScan = "stock:lowwatch"
)

// LedgerIntegrityPayload carries scheduling metadata for the integrity scan.
type LedgerIntegrityPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLedgerIntegrityTask constructs an Asynq task for the ledger scan.
func NewLedgerIntegrityTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LedgerIntegrityPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, body, asynq.Queue(QueueDefault)), nil
}

// LowStockPayload carries scheduling metadata for the low-stock scan.
type LowStockPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLowStockTask constructs an Asynq task for the low-stock scan.
func NewLowStockTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LowStockPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault)), nil
}
