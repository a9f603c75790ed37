// Package models holds the persisted record types.
package models

import "time"

// Call is one completed assistant call.
type Call struct {
	ID         int64     `json:"id"`
	UniqueID   string    `json:"unique_id"`
	CallerID   string    `json:"caller_id"`
	Channel    string    `json:"channel"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Duration   int       `json:"duration"`
	Turns      int       `json:"turns"`
	Interrupts int       `json:"interrupts"`
	ExitReason string    `json:"exit_reason"`
	Error      string    `json:"error,omitempty"`
}
