// internal/model/logs.go
package model

import "time"

// LogLine is one line of redacted output received from the gateway stream.
type LogLine struct {
	Received time.Time
	Text     string
}
