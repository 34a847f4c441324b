package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const MinutesPerDay = 24 * 60

var timeOfDayRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// ParseTimeOfDay converts "HH:MM" into minutes since midnight.
func ParseTimeOfDay(text string) (int, error) {
	m := timeOfDayRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return 0, &MalformedTimeError{Value: text}
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	if hours > 23 || minutes > 59 {
		return 0, &MalformedTimeError{Value: text}
	}
	return hours*60 + minutes, nil
}

// FormatTimeOfDay converts minutes since midnight into zero-padded "HH:MM".
func FormatTimeOfDay(minutes int) (string, error) {
	if minutes < 0 || minutes >= MinutesPerDay {
		return "", errors.Errorf("time of day out of range: %d minutes", minutes)
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60), nil
}

// IntervalsOverlap reports whether the half-open intervals [startA, endA) and
// [startB, endB) share at least one minute.
func IntervalsOverlap(startA, endA, startB, endB int) bool {
	return startA < endB && startB < endA
}

// Interval is a half-open [Start, End) block in minutes since midnight of its weekday.
// End may pass 1440 when the block runs past midnight.
type Interval struct {
	Start int
	End   int
}

func NewInterval(startTime string, duration int) (Interval, error) {
	start, err := ParseTimeOfDay(startTime)
	if err != nil {
		return Interval{}, err
	}
	return Interval{Start: start, End: start + duration}, nil
}

func (i Interval) Overlaps(other Interval) bool {
	return IntervalsOverlap(i.Start, i.End, other.Start, other.End)
}

// StartTime and EndTime render the bounds as clock times, wrapping past midnight.
func (i Interval) StartTime() string { return clock(i.Start) }
func (i Interval) EndTime() string   { return clock(i.End) }

func (i Interval) String() string {
	return i.StartTime() + "-" + i.EndTime()
}

func clock(minutes int) string {
	s, _ := FormatTimeOfDay(((minutes % MinutesPerDay) + MinutesPerDay) % MinutesPerDay)
	return s
}
