package store

import "time"

// Session is one presentation session.
type Session struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Config    string     `json:"config,omitempty"` // JSON snapshot of the session configuration
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Action is one backend action handed off by a dispatcher.
type Action struct {
	ID       int64     `json:"id"`
	Session  string    `json:"session"`
	Modality string    `json:"modality"`
	Op       string    `json:"op"`
	Payload  string    `json:"payload"` // canonical JSON
	At       time.Time `json:"at"`
}
