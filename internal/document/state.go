package document

import (
	"encoding/json"

	"github.com/dshills/livecode/internal/scroll"
)

// Trend compares the latest evaluation time with the previous one.
type Trend int

const (
	// TrendFaster means the latest run was not slower than the previous one.
	TrendFaster Trend = iota
	// TrendSlower means the latest run took longer than the previous one.
	TrendSlower
)

// String returns the trend name.
func (t Trend) String() string {
	switch t {
	case TrendFaster:
		return "faster"
	case TrendSlower:
		return "slower"
	default:
		return "unknown"
	}
}

// State is the accumulated render state of one panel.
//
// Every field is set independently; setting one never clears another.
type State struct {
	// Variables is the JSON-encoded variables snapshot. Nil when absent.
	Variables json.RawMessage

	// Print is the HTML-escaped print output accumulated since the last clear.
	Print string

	// Error is the formatted error markup, empty when there is no error.
	Error string

	// ElapsedMillis is the last measured evaluation time.
	ElapsedMillis int64

	// PreviousElapsedMillis is the measurement before ElapsedMillis.
	PreviousElapsedMillis int64

	// HasTiming is false until the first measurement arrives.
	HasTiming bool

	// CustomStyle is user CSS injected after the base stylesheet.
	CustomStyle string

	// Scroll holds the line the document scrolls to on load.
	Scroll scroll.Link
}

// NewState returns an empty state scrolling with the given line height.
func NewState(lineHeightPx int) *State {
	return &State{Scroll: scroll.NewLink(lineHeightPx)}
}

// RecordTime stores a new measurement, keeping the previous one for
// trend colouring.
func (s *State) RecordTime(ms int64) {
	if s.HasTiming {
		s.PreviousElapsedMillis = s.ElapsedMillis
	} else {
		// Nothing to compare against yet: the first run counts as faster.
		s.PreviousElapsedMillis = ms
	}
	s.ElapsedMillis = ms
	s.HasTiming = true
}

// Trend reports whether the latest run was slower than the previous one.
// Ties count as faster.
func (s *State) Trend() Trend {
	if s.ElapsedMillis > s.PreviousElapsedMillis {
		return TrendSlower
	}
	return TrendFaster
}
