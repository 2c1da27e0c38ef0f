package countdown

import (
	"strconv"
	"strings"
	"time"
)

// Parse converts a descriptor such as "5 Minutes" or "30 Seconds" into a
// duration. Anything else, including "none" and the empty string, is zero.
func Parse(desc string) time.Duration {
	d, _ := parse(desc, 0)
	return d
}

// ParseWithDefaultUnit is Parse, but a bare integer is read in unit.
// Poll durations are stored as bare minute counts.
func ParseWithDefaultUnit(desc string, unit time.Duration) time.Duration {
	d, _ := parse(desc, unit)
	return d
}

func parse(desc string, bareUnit time.Duration) (time.Duration, bool) {
	fields := strings.Fields(desc)
	if len(fields) == 0 || len(fields) > 2 {
		return 0, false
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 0 {
		return 0, false
	}
	if len(fields) == 1 {
		if bareUnit == 0 {
			return 0, false
		}
		return time.Duration(n) * bareUnit, true
	}
	switch strings.ToLower(fields[1]) {
	case "minute", "minutes":
		return time.Duration(n) * time.Minute, true
	case "second", "seconds":
		return time.Duration(n) * time.Second, true
	}
	return 0, false
}
