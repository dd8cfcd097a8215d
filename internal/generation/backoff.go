package generation

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// LinearBackOff waits Base, 2×Base, 3×Base … between attempts.
// It never stops on its own; wrap it with backoff.WithMaxRetries.
type LinearBackOff struct {
	Base    time.Duration
	attempt int
}

// NextBackOff implements backoff.BackOff.
func (b *LinearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return time.Duration(b.attempt) * b.Base
}

// Reset implements backoff.BackOff.
func (b *LinearBackOff) Reset() {
	b.attempt = 0
}

var _ backoff.BackOff = (*LinearBackOff)(nil)
