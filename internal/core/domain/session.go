package domain

import "time"

// SessionStatus is a snapshot of the device session as seen by the facades.
type SessionStatus struct {
	Connected   bool      `json:"connected"`
	Address     string    `json:"address,omitempty"`
	Peer        string    `json:"peer,omitempty"`
	LastCommand string    `json:"last_command,omitempty"`
	LastReply   string    `json:"last_reply,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}
