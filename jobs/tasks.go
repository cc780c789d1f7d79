package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStockScan scans stock rows against their minimum levels.
	TaskLowStockScan = "stock:low_stock_scan"
	// TaskMovementIntegrity verifies the movement ledger against stock rows.
	TaskMovementIntegrity = "stock:movement_integrity"
)

// LowStockScanPayload optionally narrows the scan to one warehouse.
type LowStockScanPayload struct {
	WarehouseID *int64 `json:"warehouse_id,omitempty"`
}

// NewLowStockScanTask constructs an Asynq task.
func NewLowStockScanTask(payload LowStockScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, data), nil
}

// NewMovementIntegrityTask constructs an Asynq task.
func NewMovementIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskMovementIntegrity, nil)
}
