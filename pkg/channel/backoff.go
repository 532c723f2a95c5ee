package channel

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/agentstation/queuelink/pkg/constants"
)

// Backoff computes reconnect delays: Base doubled per attempt, scaled up by
// a random factor in [1, 1+Jitter) and capped at Max. Jitter is clamped to
// [0, 1], which keeps the delay non-decreasing in attempt.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64

	// Rand returns a value in [0, 1). Defaults to math/rand/v2.
	Rand func() float64
}

// DefaultBackoff returns the policy used when none is configured.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:   constants.ReconnectBaseDelay,
		Max:    constants.ReconnectMaxDelay,
		Jitter: constants.ReconnectJitter,
	}
}

// Delay returns the wait before the given reconnect attempt, counting from 1.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if b.Base <= 0 {
		return 0
	}

	jitter := min(max(b.Jitter, 0), 1)
	r := rand.Float64
	if b.Rand != nil {
		r = b.Rand
	}

	d := float64(b.Base) * math.Pow(2, float64(attempt-1)) * (1 + r()*jitter)
	if b.Max > 0 && d > float64(b.Max) {
		return b.Max
	}
	return time.Duration(d)
}
