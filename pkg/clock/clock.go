package clock

import "time"

// Clock abstracts wall-clock access so time-dependent behaviour stays
// deterministic in tests.
type Clock interface {
	Now() time.Time
}

// System reads the real wall clock.
type System struct{}

// Now returns the current UTC time.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always returns the same instant. Intended for tests.
type Fixed struct {
	Instant time.Time
}

// Now returns the configured instant.
func (f Fixed) Now() time.Time {
	return f.Instant
}

// Func adapts a plain function into a Clock.
type Func func() time.Time

// Now invokes the wrapped function.
func (f Func) Now() time.Time {
	return f()
}
