// Package policy evaluates rotation-age policy for stored credentials. The
// thresholds are advisory: they drive the rotation-status endpoint and
// nothing else — a stale credential is still decryptable.
package policy

import (
	"fmt"
	"strings"
	"time"

	"github.com/org/credvault/pkg/models"
)

// DefaultRotateAfterDays applies when no policy is configured.
const DefaultRotateAfterDays = 90

// Policy holds rotation-age thresholds, with optional per-provider
// overrides.
type Policy struct {
	RotateAfterDays int            `yaml:"rotate_after_days"`
	PerProvider     map[string]int `yaml:"per_provider"`
}

// Default returns the stock advisory policy.
func Default() Policy {
	return Policy{RotateAfterDays: DefaultRotateAfterDays}
}

// thresholdFor returns the rotate-after threshold for a provider.
func (p Policy) thresholdFor(provider string) int {
	if d, ok := p.PerProvider[strings.ToLower(provider)]; ok && d > 0 {
		return d
	}
	if p.RotateAfterDays > 0 {
		return p.RotateAfterDays
	}
	return DefaultRotateAfterDays
}

// Evaluate reports whether the credential's age exceeds the provider's
// threshold.
func (p Policy) Evaluate(provider string, lastRotatedAt, now time.Time) models.RotationStatus {
	threshold := p.thresholdFor(provider)
	days := int(now.Sub(lastRotatedAt).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return models.RotationStatus{
		NeedsRotation:         days >= threshold,
		DaysSinceLastRotation: days,
		Policy:                fmt.Sprintf("rotate_after_%dd", threshold),
	}
}
