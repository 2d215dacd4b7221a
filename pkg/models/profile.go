package models

import "time"

// UnknownUser is the display fallback when a profile lookup fails.
const UnknownUser = "Unknown User"

// Profile holds the public-facing details of a user.
// One per account, created lazily on first login if absent.
type Profile struct {
	ID        string    `json:"id" db:"id"` // same as users.id
	FullName  string    `json:"full_name" db:"full_name"`
	AvatarURL string    `json:"avatar_url,omitempty" db:"avatar_url"`
	Position  string    `json:"position,omitempty" db:"position"`
	Phone     string    `json:"phone,omitempty" db:"phone"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
