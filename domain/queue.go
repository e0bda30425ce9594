package domain

import "time"

const (
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

// QueueEntry is one pending mutation awaiting remote confirmation.
// Entries are appended by the task mutator in the same transaction as the
// record write and removed only after the remote authority accepts them.
type QueueEntry struct {
	ID           string       `json:"id"`
	TaskID       string       `json:"task_id"`
	Operation    string       `json:"operation"`
	Payload      TaskSnapshot `json:"payload"`
	RetryCount   int          `json:"retry_count"`
	ErrorMessage string       `json:"error_message,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}
