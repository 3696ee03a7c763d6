package note

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Cutoff is the time of day at which a new daily note begins.
type Cutoff struct {
	Hour, Minute int
}

// ParseCutoff parses "HH:MM" in 24-hour form. An empty string means midnight.
func ParseCutoff(s string) (Cutoff, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Cutoff{}, nil
	}
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return Cutoff{}, fmt.Errorf("cutoff %q: expected HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return Cutoff{}, fmt.Errorf("cutoff %q: invalid hour", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return Cutoff{}, fmt.Errorf("cutoff %q: invalid minute", s)
	}
	return Cutoff{Hour: h, Minute: m}, nil
}

func (c Cutoff) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// EffectiveDate returns the calendar day whose note t belongs to, as midnight
// in t's location. Times strictly before the cutoff count toward the previous day.
func EffectiveDate(t time.Time, c Cutoff) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	if t.Hour() < c.Hour || (t.Hour() == c.Hour && t.Minute() < c.Minute) {
		return day.AddDate(0, 0, -1)
	}
	return day
}
