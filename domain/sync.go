package domain

import "time"

// SyncIssue describes one failure observed during a sync run.
type SyncIssue struct {
	Operation string `json:"operation"`
	TaskID    string `json:"task_id,omitempty"`
	Error     string `json:"error"`
}

// SyncResult is the aggregate outcome of one sync run. Runs are
// at-least-once and best-effort: Success=false never rolls back items
// the remote authority already accepted.
type SyncResult struct {
	Success     bool        `json:"success"`
	SyncedItems int         `json:"synced_items"`
	FailedItems int         `json:"failed_items"`
	Errors      []SyncIssue `json:"errors,omitempty"`
	StartedAt   time.Time   `json:"started_at"`
	FinishedAt  time.Time   `json:"finished_at"`
}

// AddIssue records a failure and flips the aggregate outcome.
func (r *SyncResult) AddIssue(operation, taskID, message string) {
	r.Success = false
	r.Errors = append(r.Errors, SyncIssue{
		Operation: operation,
		TaskID:    taskID,
		Error:     message,
	})
}
