package poller

import "time"

// Schedule decides the wait before each poll.
type Schedule struct {
	Initial   time.Duration
	Max       time.Duration
	Growth    float64
	GrowAfter int // attempts at the initial rate before growth starts
	Timeout   time.Duration
}

// DefaultSchedule polls every 2s, then grows ×1.5 per attempt after 30
// attempts up to 10s, and gives up after an hour.
func DefaultSchedule() Schedule {
	return Schedule{
		Initial:   2 * time.Second,
		Max:       10 * time.Second,
		Growth:    1.5,
		GrowAfter: 30,
		Timeout:   time.Hour,
	}
}

// Next returns the interval before the next poll given the number of polls
// made so far, the time since polling started and the current interval.
// ok is false once elapsed exceeds the timeout.
func (s Schedule) Next(attempt int, elapsed, current time.Duration) (next time.Duration, ok bool) {
	if elapsed > s.Timeout {
		return 0, false
	}
	if current <= 0 {
		current = s.Initial
	}
	if attempt <= s.GrowAfter {
		return current, true
	}
	next = time.Duration(float64(current) * s.Growth)
	if next > s.Max {
		next = s.Max
	}
	return next, true
}
