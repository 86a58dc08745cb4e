package types

import (
	"encoding/json"
	"fmt"
)

// RoleError reports a message whose role is missing or outside the closed set.
type RoleError struct {
	Role    string
	Missing bool
}

func (e *RoleError) Error() string {
	if e.Missing {
		return "message role is required"
	}
	return fmt.Sprintf("unknown role %q", e.Role)
}

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
	RoleModel  Role = "model"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleModel:
		return true
	}
	return false
}

// UnmarshalJSON rejects any role outside the closed set.
func (r *Role) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return &RoleError{Role: string(b)}
	}
	if !Role(s).Valid() {
		return &RoleError{Role: s}
	}
	*r = Role(s)
	return nil
}

// Message is a single conversation turn.
type Message struct {
	// Author of the turn.
	// example: user
	Role Role `json:"role" example:"user"`
	// Turn text.
	// example: I can't sleep
	Content string `json:"content" example:"I can't sleep"`
}

// UnmarshalJSON requires the role field to be present.
func (m *Message) UnmarshalJSON(b []byte) error {
	var raw struct {
		Role    *Role  `json:"role"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.Role == nil {
		return &RoleError{Missing: true}
	}
	m.Role = *raw.Role
	m.Content = raw.Content
	return nil
}
