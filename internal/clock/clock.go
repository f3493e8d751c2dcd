// Package clock provides the simulated calendar and its speed levels.
//
// Boundary flags are derived by comparing calendar fields before and after
// each advance, never by counting ticks, so variable increments cannot miss
// or duplicate a rollover.
package clock

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrInvalidSpeed  = errors.New("clock: speed level out of range")
	ErrNegativeDelta = errors.New("clock: negative real-time delta")
	ErrInvalidDelta  = errors.New("clock: real-time delta is not a finite number")
)

// Speed is a discrete speed level. Level 1 is paused.
type Speed int

const (
	Paused Speed = iota + 1
	Slow
	Normal
	Fast
	VeryFast
)

// MaxStep caps the simulated time added by a single Advance call so that one
// call never rolls over more than one day.
const MaxStep = 24 * time.Hour

// rates is simulated time per real second, indexed by Speed.
var rates = [...]time.Duration{
	Paused:   0,
	Slow:     time.Hour,
	Normal:   4 * time.Hour,
	Fast:     20 * time.Hour,
	VeryFast: 96 * time.Hour,
}

var speedNames = [...]string{
	Paused:   "Paused",
	Slow:     "Slow",
	Normal:   "Normal",
	Fast:     "Fast",
	VeryFast: "Very Fast",
}

// Valid reports whether s is a known speed level.
func (s Speed) Valid() bool {
	return s >= Paused && s <= VeryFast
}

func (s Speed) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Speed(%d)", int(s))
	}
	return speedNames[s]
}

// Rate returns the simulated time that passes per real second at s.
func (s Speed) Rate() time.Duration {
	if !s.Valid() {
		return 0
	}
	return rates[s]
}

// Tick reports what one Advance call did.
type Tick struct {
	Previous time.Time `json:"previous"`
	Now      time.Time `json:"now"`
	Speed    Speed     `json:"speed"`

	HourChanged  bool `json:"hour_changed"`
	DayChanged   bool `json:"day_changed"`
	WeekChanged  bool `json:"week_changed"`
	MonthChanged bool `json:"month_changed"`
	YearChanged  bool `json:"year_changed"`

	// HoursCrossed counts whole-hour boundaries between Previous and Now.
	HoursCrossed int `json:"hours_crossed"`
}

// calendar holds the fields compared across an advance.
type calendar struct {
	year, month, day int
	isoYear, isoWeek int
}

func fieldsOf(t time.Time) calendar {
	y, w := t.ISOWeek()
	return calendar{
		year:    t.Year(),
		month:   int(t.Month()),
		day:     t.YearDay(),
		isoYear: y,
		isoWeek: w,
	}
}

// Clock is the simulated date-time and speed level. It is not safe for
// concurrent use.
type Clock struct {
	now   time.Time
	speed Speed
	last  calendar
}

// New creates a clock at start running at speed.
func New(start time.Time, speed Speed) (*Clock, error) {
	if !speed.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSpeed, speed)
	}
	start = start.UTC()
	return &Clock{now: start, speed: speed, last: fieldsOf(start)}, nil
}

// Now returns the current simulated time.
func (c *Clock) Now() time.Time { return c.now }

// Speed returns the current speed level.
func (c *Clock) Speed() Speed { return c.speed }

// SpeedName returns the display name of the current speed level.
func (c *Clock) SpeedName() string { return c.speed.String() }

// SetSpeed changes the speed level. It takes effect on the next Advance.
func (c *Clock) SetSpeed(s Speed) error {
	if !s.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidSpeed, s)
	}
	c.speed = s
	return nil
}

// Advance moves simulated time forward by deltaSeconds of real time at the
// given speed level, which also becomes the clock's speed. On error the
// clock is unchanged.
func (c *Clock) Advance(deltaSeconds float64, speed Speed) (Tick, error) {
	if !speed.Valid() {
		return Tick{}, fmt.Errorf("%w: %d", ErrInvalidSpeed, speed)
	}
	if math.IsNaN(deltaSeconds) || math.IsInf(deltaSeconds, 0) {
		return Tick{}, fmt.Errorf("%w: %v", ErrInvalidDelta, deltaSeconds)
	}
	if deltaSeconds < 0 {
		return Tick{}, fmt.Errorf("%w: %v", ErrNegativeDelta, deltaSeconds)
	}
	c.speed = speed

	// Clamp before converting: a product beyond int64 does not convert.
	step := MaxStep
	if s := deltaSeconds * float64(speed.Rate()); s < float64(MaxStep) {
		step = time.Duration(s)
	}

	prev := c.now
	c.now = prev.Add(step)
	cur := fieldsOf(c.now)

	tick := Tick{
		Previous: prev,
		Now:      c.now,
		Speed:    speed,
		// Day, week and month flags also fire when a coarser unit rolled
		// over with the finer field unchanged.
		YearChanged:  cur.year != c.last.year,
		MonthChanged: cur.month != c.last.month || cur.year != c.last.year,
		DayChanged:   cur.day != c.last.day || cur.year != c.last.year,
		WeekChanged:  cur.isoWeek != c.last.isoWeek || cur.isoYear != c.last.isoYear,
		HoursCrossed: int(c.now.Truncate(time.Hour).Sub(prev.Truncate(time.Hour)) / time.Hour),
	}
	tick.HourChanged = tick.HoursCrossed > 0
	c.last = cur
	return tick, nil
}
