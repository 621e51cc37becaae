// Package models provides data models for the portfolio importer.
package models

import "time"

// PlatformAccount is one brokerage or fund-platform account owned by a user.
// ClientID is the broker-issued identifier that export files embed in their names.
type PlatformAccount struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Platform  string    `json:"platform" db:"platform"`
	ClientID  string    `json:"client_id" db:"client_id"`
	Nickname  *string   `json:"nickname,omitempty" db:"nickname"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
