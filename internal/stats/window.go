package stats

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidWindow = errors.New("stats: unknown window")

// Window is a look-back period measured in simulated days.
type Window string

const (
	Daily   Window = "daily"
	Weekly  Window = "weekly"
	Monthly Window = "monthly"
	Yearly  Window = "yearly"
	Total   Window = "total"
)

var windowDays = map[Window]int{
	Daily:   1,
	Weekly:  7,
	Monthly: 30,
	Yearly:  365,
}

// Windows lists every window, shortest first.
func Windows() []Window {
	return []Window{Daily, Weekly, Monthly, Yearly, Total}
}

// Days returns the window length. Total reports -1: it spans all history.
func (w Window) Days() int {
	if w == Total {
		return -1
	}
	return windowDays[w]
}

// ParseWindow accepts a window name in any case.
func ParseWindow(s string) (Window, error) {
	w := Window(strings.ToLower(strings.TrimSpace(s)))
	if w == Total {
		return w, nil
	}
	if _, ok := windowDays[w]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidWindow, s)
	}
	return w, nil
}

// midnight truncates t to the start of its simulated day.
func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
