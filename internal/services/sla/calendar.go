// Package sla recomputes ticket deadlines when a resolution is rejected or
// a ticket reopened, and watches for tickets that slip past them.
package sla

import (
	"fmt"
	"os"
	"time"

	"github.com/rickar/cal/v2"
	"gopkg.in/yaml.v3"
)

// Schedule is the working-hours definition deadlines are computed against.
// It is loaded from a YAML file; a nil Schedule means round-the-clock
// coverage and deadlines become plain clock additions.
type Schedule struct {
	Workdays []string `yaml:"workdays"`
	Start    string   `yaml:"start"` // "09:00"
	End      string   `yaml:"end"`   // "17:00"
	Holidays []string `yaml:"holidays"`
}

// LoadSchedule reads a working-hours schedule from a YAML file.
func LoadSchedule(path string) (*Schedule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule %s: %w", path, err)
	}
	var s Schedule
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse schedule %s: %w", path, err)
	}
	return &s, nil
}

// BusinessCalendar adds working time to timestamps. With no schedule it
// degrades to plain duration addition.
type BusinessCalendar struct {
	inner *cal.BusinessCalendar
}

// NewBusinessCalendar builds a calendar from a schedule. schedule may be
// nil for 24x7 coverage.
func NewBusinessCalendar(schedule *Schedule) (*BusinessCalendar, error) {
	if schedule == nil {
		return &BusinessCalendar{}, nil
	}

	c := cal.NewBusinessCalendar()

	if len(schedule.Workdays) > 0 {
		for d := time.Sunday; d <= time.Saturday; d++ {
			c.SetWorkday(d, false)
		}
		for _, name := range schedule.Workdays {
			day, err := parseWeekday(name)
			if err != nil {
				return nil, err
			}
			c.SetWorkday(day, true)
		}
	}

	if schedule.Start != "" || schedule.End != "" {
		start, err := parseClock(schedule.Start)
		if err != nil {
			return nil, fmt.Errorf("schedule start: %w", err)
		}
		end, err := parseClock(schedule.End)
		if err != nil {
			return nil, fmt.Errorf("schedule end: %w", err)
		}
		if end <= start {
			return nil, fmt.Errorf("schedule end %s not after start %s", schedule.End, schedule.Start)
		}
		c.SetWorkHours(start, end)
	}

	for _, raw := range schedule.Holidays {
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, fmt.Errorf("schedule holiday %q: %w", raw, err)
		}
		c.AddHoliday(&cal.Holiday{
			Name:      raw,
			Type:      cal.ObservancePublic,
			Month:     date.Month(),
			Day:       date.Day(),
			StartYear: date.Year(),
			EndYear:   date.Year(),
			Func:      cal.CalcDayOfMonth,
		})
	}

	return &BusinessCalendar{inner: c}, nil
}

// AddWorkingMinutes returns the timestamp that is the given number of
// working minutes after from.
func (b *BusinessCalendar) AddWorkingMinutes(from time.Time, minutes int) time.Time {
	d := time.Duration(minutes) * time.Minute
	if b == nil || b.inner == nil {
		return from.Add(d)
	}
	return b.inner.AddWorkHours(from, d)
}

func parseWeekday(name string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if d.String() == name {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", name)
}

func parseClock(value string) (time.Duration, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("bad clock value %q: %w", value, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
