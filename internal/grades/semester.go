package grades

import (
	"fmt"
	"time"
)

// Term codes used in semester strings: 4-digit year followed by the code.
const (
	TermSpring = "10"
	TermSummer = "50"
	TermFall   = "80"
)

// SemesterFor derives the semester code for a point in time. January
// through April belong to spring, dates after mid-July to fall, and
// everything between to summer.
func SemesterFor(now time.Time) string {
	term := TermSummer
	switch {
	case now.Month() < time.May:
		term = TermSpring
	case now.Month() > time.July && now.Day() > 15:
		term = TermFall
	}
	return fmt.Sprintf("%d%s", now.Year(), term)
}

// SplitSectionName splits a section display name like "CSCI-1150-001" into
// the course name ("CSCI-1150") and the section code ("001"). A name without
// a section suffix is returned whole with an empty section code.
func SplitSectionName(display string) (courseName, sectionCode string) {
	dashes := 0
	for i := len(display) - 1; i >= 0; i-- {
		if display[i] == '-' {
			dashes++
		}
	}
	if dashes < 2 {
		return display, ""
	}

	for i := len(display) - 1; i >= 0; i-- {
		if display[i] == '-' {
			return display[:i], display[i+1:]
		}
	}
	return display, ""
}
