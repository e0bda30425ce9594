package monitor

import "time"

type Status struct {
	Database   bool      `json:"database"`
	Redis      bool      `json:"redis"`
	Remote     bool      `json:"remote"`
	Buffer     bool      `json:"buffer"`
	BufferSize int       `json:"buffer_size"`
	LastCheck  time.Time `json:"last_check"`
}
