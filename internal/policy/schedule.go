package policy

import (
	"time"

	"grimm.is/opnwatch/internal/config"
)

// Schedule maps wall-clock time to a desired State. Offsets are measured
// from local midnight of the instant being evaluated.
type Schedule struct {
	LunchStart   time.Duration
	LunchEnd     time.Duration
	SaturdayFree time.Duration
}

// DefaultSchedule is lunch 11:00-13:00 on weekdays and Saturday free from noon.
var DefaultSchedule = Schedule{
	LunchStart:   11 * time.Hour,
	LunchEnd:     13 * time.Hour,
	SaturdayFree: 12 * time.Hour,
}

// ScheduleFromConfig builds a Schedule from resolved policy settings.
func ScheduleFromConfig(p *config.PolicyConfig) Schedule {
	if p == nil {
		return DefaultSchedule
	}
	return Schedule{
		LunchStart:   p.LunchStartAt,
		LunchEnd:     p.LunchEndAt,
		SaturdayFree: p.SaturdayFreeAt,
	}
}

// Desired returns the state for now. The lunch window is half-open.
func (s Schedule) Desired(now time.Time) State {
	tod := timeOfDay(now)

	switch wd := now.Weekday(); {
	case wd == time.Sunday:
		return Allowed
	case wd == time.Saturday:
		if tod >= s.SaturdayFree {
			return Allowed
		}
		return Blocked
	case wd >= time.Monday && wd <= time.Friday:
		if tod >= s.LunchStart && tod < s.LunchEnd {
			return Allowed
		}
		return Blocked
	}
	return Blocked
}

func timeOfDay(t time.Time) time.Duration {
	h, m, sec := t.Clock()
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(sec)*time.Second +
		time.Duration(t.Nanosecond())
}
