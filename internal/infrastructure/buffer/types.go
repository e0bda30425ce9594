package buffer

import (
	"time"

	"github.com/google/uuid"

	"github.com/taskmirror/backend/domain"
)

// Item wraps a queue entry that could not be written to the record store.
// The entry's snapshot is self-contained, so replay reconstructs both the
// task row and the queue row from the item alone.
type Item struct {
	ID         string            `json:"id"`
	Entry      domain.QueueEntry `json:"entry"`
	Retries    int               `json:"retries"`
	BufferedAt time.Time         `json:"buffered_at"`

	bucketKey []byte
}

func (i *Item) normalize() {
	if i.ID == "" {
		if i.Entry.ID != "" {
			i.ID = i.Entry.ID
		} else {
			i.ID = uuid.NewString()
		}
	}
	if i.BufferedAt.IsZero() {
		i.BufferedAt = time.Now()
	}
}
