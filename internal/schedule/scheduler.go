package schedule

import (
	"fmt"
	"time"

	"github.com/scmhub/calendar"
)

const dateLayout = "2006-01-02"

// Scheduler decides when an update pass is due: NYSE business days, inside a
// daily session window in the configured timezone.
type Scheduler struct {
	location *time.Location
	start    clock
	end      clock
	nyse     *calendar.Calendar
}

type clock struct {
	hour, minute int
}

func (c clock) minutes() int { return c.hour*60 + c.minute }

func (c clock) String() string { return fmt.Sprintf("%02d:%02d", c.hour, c.minute) }

func parseClock(s string) (clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return clock{}, fmt.Errorf("invalid time %q (use HH:MM): %w", s, err)
	}
	return clock{hour: t.Hour(), minute: t.Minute()}, nil
}

// NewScheduler creates a scheduler for the [start, end) session window.
func NewScheduler(timezone, start, end string) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", timezone, err)
	}

	s, err := parseClock(start)
	if err != nil {
		return nil, fmt.Errorf("session start: %w", err)
	}
	e, err := parseClock(end)
	if err != nil {
		return nil, fmt.Errorf("session end: %w", err)
	}
	if e.minutes() <= s.minutes() {
		return nil, fmt.Errorf("session end %s must be after start %s", e, s)
	}

	return &Scheduler{
		location: loc,
		start:    s,
		end:      e,
		nyse:     calendar.XNYS(),
	}, nil
}

// IsMarketDay checks if the given date is a trading day (not weekend/holiday)
func (s *Scheduler) IsMarketDay(dateStr string) bool {
	// Parse as noon in the configured timezone to ensure correct date matching
	t, err := time.ParseInLocation("2006-01-02 15:04:05", dateStr+" 12:00:00", s.location)
	if err != nil {
		return false
	}
	return s.nyse.IsBusinessDay(t)
}

// InSession reports whether t falls on a market day inside the session window.
func (s *Scheduler) InSession(t time.Time) bool {
	local := t.In(s.location)
	if !s.IsMarketDay(local.Format(dateLayout)) {
		return false
	}
	m := local.Hour()*60 + local.Minute()
	return m >= s.start.minutes() && m < s.end.minutes()
}

// Window describes the session, e.g. "09:30-16:15 America/New_York".
func (s *Scheduler) Window() string {
	return fmt.Sprintf("%s-%s %s", s.start, s.end, s.location)
}

// Location returns the scheduler's timezone location
func (s *Scheduler) Location() *time.Location {
	return s.location
}
