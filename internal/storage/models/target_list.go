package models

import "time"

// TargetList is a named, saved set of target specs that can be watched by name
type TargetList struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Specs       []string  `json:"specs"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
