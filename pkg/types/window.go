package types

import (
	"fmt"
	"time"

	"github.com/stagecrew/rentline-backend/pkg/enums"
)

// Window is a closed interval [Start, End]. Both endpoints are inclusive.
// Day-precision windows normalize endpoints to UTC midnight; timestamp
// windows keep the full instant and carry the precision tag.
type Window struct {
	Start     time.Time             `json:"start"`
	End       time.Time             `json:"end"`
	Precision enums.WindowPrecision `json:"precision"`
}

// Day truncates t to UTC midnight.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NewDayWindow builds a day-precision window over [start, end].
func NewDayWindow(start, end time.Time) Window {
	return Window{Start: Day(start), End: Day(end), Precision: enums.PrecisionDay}
}

// NewTimestampWindow builds a timestamp-precision window over [start, end].
func NewTimestampWindow(start, end time.Time) Window {
	return Window{Start: start.UTC(), End: end.UTC(), Precision: enums.PrecisionTimestamp}
}

// ParseDayWindow reads two ISO dates into a day window.
func ParseDayWindow(start, end string) (Window, error) {
	s, err := time.Parse("2006-01-02", start)
	if err != nil {
		return Window{}, fmt.Errorf("parsing window start: %w", err)
	}
	e, err := time.Parse("2006-01-02", end)
	if err != nil {
		return Window{}, fmt.Errorf("parsing window end: %w", err)
	}
	return NewDayWindow(s, e), nil
}

// Valid reports whether the window is well formed (start <= end).
func (w Window) Valid() bool {
	return !w.Start.IsZero() && !w.End.IsZero() && !w.Start.After(w.End)
}

// Overlaps reports whether the closed intervals intersect.
func (w Window) Overlaps(other Window) bool {
	return !w.End.Before(other.Start) && !other.End.Before(w.Start)
}

// Contains reports whether t falls inside the closed interval.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Shift translates both endpoints by delta, preserving precision.
func (w Window) Shift(delta time.Duration) Window {
	return Window{Start: w.Start.Add(delta), End: w.End.Add(delta), Precision: w.Precision}
}

// Union returns the smallest window covering both inputs.
func (w Window) Union(other Window) Window {
	out := w
	if other.Start.Before(out.Start) {
		out.Start = other.Start
	}
	if other.End.After(out.End) {
		out.End = other.End
	}
	return out
}

// Clamp bounds t into the window.
func (w Window) Clamp(t time.Time) time.Time {
	if t.Before(w.Start) {
		return w.Start
	}
	if t.After(w.End) {
		return w.End
	}
	return t
}

func (w Window) String() string {
	if w.Precision == enums.PrecisionTimestamp {
		return fmt.Sprintf("[%s, %s]", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
	}
	return fmt.Sprintf("[%s, %s]", w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"))
}
