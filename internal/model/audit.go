package model

import "time"

// AuditEntry records one start/stop request forwarded to the engine.
type AuditEntry struct {
	ID         int64     `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Action     string    `json:"action"`
	Container  string    `json:"container"`
	Status     int       `json:"status"`
	RemoteAddr string    `json:"remote_addr"`
	RequestID  string    `json:"request_id,omitempty"`
}
