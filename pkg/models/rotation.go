package models

import "time"

// RotationState is the phase of one rotation attempt.
type RotationState string

const (
	RotationIdle       RotationState = "idle"
	RotationFetching   RotationState = "fetching"
	RotationValidating RotationState = "validating"
	RotationBackingUp  RotationState = "backing_up"
	RotationUpdating   RotationState = "updating"
	RotationCommitted  RotationState = "committed"
	RotationRolledBack RotationState = "rolled_back"
)

// RotationAttempt is the ephemeral workflow record for one rotation of one
// (provider, owner) pair. It is never persisted; the audit log carries the
// durable trail.
type RotationAttempt struct {
	Provider       string
	OwnerID        string
	PreviousSecret *EncryptedSecret
	NewSecret      *EncryptedSecret
	State          RotationState
	StartedAt      time.Time
}

// RotationStatus is the advisory rotation-policy evaluation for a credential.
type RotationStatus struct {
	NeedsRotation         bool   `json:"needs_rotation"`
	DaysSinceLastRotation int    `json:"days_since_last_rotation"`
	Policy                string `json:"policy"`
}
