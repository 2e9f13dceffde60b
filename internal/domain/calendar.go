package domain

import (
	"math"
	"time"
)

// HoursPerWorkingDay converts SLA hours into working days
const HoursPerWorkingDay = 8

// WorkingDaysForSLA is ceil(hours/8); non-positive SLAs span no days
func WorkingDaysForSLA(hours float64) int {
	if hours <= 0 {
		return 0
	}
	return int(math.Ceil(hours / HoursPerWorkingDay))
}

// IsWorkingDay reports whether t falls Monday to Friday
func IsWorkingDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// Day truncates t to midnight in its own location
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// NextWorkingDay returns t when it is a working day, otherwise the
// following Monday at the same clock time.
func NextWorkingDay(t time.Time) time.Time {
	for !IsWorkingDay(t) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// AddWorkingDays advances t by n working days, skipping weekends
func AddWorkingDays(t time.Time, n int) time.Time {
	for n > 0 {
		t = t.AddDate(0, 0, 1)
		if IsWorkingDay(t) {
			n--
		}
	}
	return t
}
