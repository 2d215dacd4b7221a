package models

import "time"

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationExpired  InvitationStatus = "expired"
)

// InvitationTTL is how long a pending invitation stays acceptable.
const InvitationTTL = 7 * 24 * time.Hour

// Invitation is a pending offer for an email address to join an
// organization at a given role. Lifecycle: pending -> accepted or
// pending -> expired; both terminal.
type Invitation struct {
	ID             string           `json:"id" db:"id"`
	OrganizationID string           `json:"organization_id" db:"organization_id"`
	Email          string           `json:"email" db:"email"`
	Role           Role             `json:"role" db:"role"` // admin or member, never owner
	Token          string           `json:"token" db:"token"`
	InvitedBy      string           `json:"invited_by" db:"invited_by"`
	Status         InvitationStatus `json:"status" db:"status"`
	ExpiresAt      time.Time        `json:"expires_at" db:"expires_at"`
	AcceptedBy     *string          `json:"accepted_by,omitempty" db:"accepted_by"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" db:"updated_at"`
}
