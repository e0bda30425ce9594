package remote

import (
	"time"

	"github.com/taskmirror/backend/domain"
)

// Item statuses reported by the remote authority for each batch member.
const (
	ItemStatusSuccess  = "success"
	ItemStatusConflict = "conflict"
	ItemStatusError    = "error"
)

// BatchRequest is the wire shape accepted by POST /batch.
type BatchRequest struct {
	Items           []domain.QueueEntry `json:"items"`
	ClientTimestamp time.Time           `json:"client_timestamp"`
}

// ProcessedItem is the per-item verdict inside a batch response. ClientID
// echoes the task id of the matching request item. For conflict items the
// authority has already run last-write-wins and ResolvedData carries the
// winning version verbatim.
type ProcessedItem struct {
	ClientID     string               `json:"client_id"`
	ServerID     string               `json:"server_id,omitempty"`
	Status       string               `json:"status"`
	ResolvedData *domain.TaskSnapshot `json:"resolved_data,omitempty"`
	Error        string               `json:"error,omitempty"`
}

// BatchResponse is the wire shape returned by POST /batch.
type BatchResponse struct {
	ProcessedItems []ProcessedItem `json:"processed_items"`
}
