package main

import (
	"fmt"
	"time"

	"github.com/Deepak-Sangle/greenratchet/internal/usage"
)

const dateLayout = "2006-01-02"

// parseBound accepts RFC 3339 timestamps or plain dates. A plain end date is
// inclusive and resolves to the last second of that day.
func parseBound(s string, end bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD or RFC 3339", s)
	}
	if end {
		t = t.AddDate(0, 0, 1).Add(-time.Second)
	}
	return t, nil
}

// parseWindow returns nil when both bounds are empty.
func parseWindow(start, end string) (*usage.Window, error) {
	if start == "" && end == "" {
		return nil, nil
	}
	if start == "" || end == "" {
		return nil, fmt.Errorf("--start and --end must be given together")
	}
	s, err := parseBound(start, false)
	if err != nil {
		return nil, fmt.Errorf("error parsing start date: %w", err)
	}
	e, err := parseBound(end, true)
	if err != nil {
		return nil, fmt.Errorf("error parsing end date: %w", err)
	}
	return &usage.Window{Start: s, End: e}, nil
}
