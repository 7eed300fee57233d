package embedding

import (
	"errors"
	"math/rand"
	"time"
)

// ErrPermanent marks embedding failures that retrying cannot fix: invalid
// credentials, rejected input, exhausted quota, or a response that violates
// the model contract. The indexer halts the current cycle when it sees one
// instead of burning through the rest of the batch.
var ErrPermanent = errors.New("permanent embedding failure")

// Policy controls retry behavior for transient embedding failures.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	Jitter      float64 // fraction of the delay randomized in either direction, 0..1
}

// DefaultPolicy mirrors the service's historical behavior: three attempts
// with a growing delay.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   5 * time.Second,
		Multiplier:  2,
		Jitter:      0.2,
	}
}

// Delay returns how long to wait before the given retry attempt (1-based:
// Delay(1) is the wait after the first failure).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
	}
	if p.Jitter > 0 {
		d += d * p.Jitter * (2*rand.Float64() - 1)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}
