package domain

import (
	"fmt"
	"strings"
	"time"
)

// ValidateTZ checks that the tz is a valid IANA location.
func ValidateTZ(tz string) (string, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", err
	}
	return loc.String(), nil
}

// LocalizeTime formats t in the given location, e.g. "Mon, 06 May 2025 21:00 IST".
func LocalizeTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("Mon, 02 Jan 2006 15:04 MST")
}

// LocalizeClock formats t in the given location as HH:MM.
func LocalizeClock(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("15:04")
}

// HumanLead renders a lead time rounded to whole minutes: "10 minutes", "1 minute", "2h", "1h30m".
func HumanLead(d time.Duration) string {
	d = d.Round(time.Minute)
	mins := int(d / time.Minute)
	switch {
	case mins == 1:
		return "1 minute"
	case mins < 60:
		return fmt.Sprintf("%d minutes", mins)
	case mins%60 == 0:
		return fmt.Sprintf("%dh", mins/60)
	default:
		return strings.TrimSuffix(d.String(), "0s")
	}
}
