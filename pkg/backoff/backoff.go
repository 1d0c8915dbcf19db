package backoff

import "time"

// Backoff is an exponential delay capped at a configured maximum.
type Backoff struct {
	base    time.Duration
	max     time.Duration
	attempt int
}

// New creates a new backoff helper with base and max durations.
func New(base, max time.Duration) *Backoff {
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = base
	}
	return &Backoff{
		base: base,
		max:  max,
	}
}

// Next returns the delay for the current attempt and advances the counter.
func (b *Backoff) Next() time.Duration {
	delay := b.base << uint(b.attempt)
	if delay > b.max || delay <= 0 {
		delay = b.max
	} else {
		b.attempt++
	}
	return delay
}

// Attempt reports how many times Next grew the delay since the last Reset.
func (b *Backoff) Attempt() int {
	return b.attempt
}

// Reset restarts the sequence from the base delay. Call after a success.
func (b *Backoff) Reset() {
	b.attempt = 0
}
