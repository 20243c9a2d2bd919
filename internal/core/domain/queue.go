package domain

import "time"

type QueueItemStatus string

const (
	QueuePending    QueueItemStatus = "pending"
	QueueProcessing QueueItemStatus = "processing"
	QueueCompleted  QueueItemStatus = "completed"
	QueueFailed     QueueItemStatus = "failed"
)

// QueueItem tracks one classified item through the pipeline. All fields are
// mutated only by the queue's worker loop.
type QueueItem struct {
	ID             string          `json:"id"`
	Item           *IngestedItem   `json:"item"`
	Classification Classification  `json:"classification"`
	Status         QueueItemStatus `json:"status"`
	Attempts       int             `json:"attempts"`
	Priority       int             `json:"priority"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Order          *Order          `json:"order,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// QueueStatus is a non-blocking snapshot of the queue.
type QueueStatus struct {
	Pending  int  `json:"pending"`
	InFlight int  `json:"in_flight"`
	Running  bool `json:"running"`
}
