package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// COMPETENCY - The year-month a processing run applies to
// =============================================================================

// Competency identifies a payroll month, e.g. 2025-05.
type Competency struct {
	Year  int
	Month time.Month
}

// NewCompetency builds a competency, rejecting impossible months.
func NewCompetency(year int, month time.Month) (Competency, error) {
	c := Competency{Year: year, Month: month}
	if !c.Valid() {
		return Competency{}, &CompetencyError{Value: fmt.Sprintf("%d-%02d", year, int(month))}
	}
	return c, nil
}

// ParseCompetency parses "YYYY-MM" (the reference format used in the rules file).
func ParseCompetency(s string) (Competency, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Competency{}, &CompetencyError{Value: s, Err: err}
	}
	return Competency{Year: t.Year(), Month: t.Month()}, nil
}

// MustParseCompetency is ParseCompetency for constants and tests.
func MustParseCompetency(s string) Competency {
	c, err := ParseCompetency(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Competency) Valid() bool {
	return c.Year > 0 && c.Month >= time.January && c.Month <= time.December
}

func (c Competency) IsZero() bool { return c.Year == 0 && c.Month == 0 }

func (c Competency) String() string { return fmt.Sprintf("%04d-%02d", c.Year, int(c.Month)) }

// Slug is the file-name friendly form (2025_05).
func (c Competency) Slug() string { return fmt.Sprintf("%04d_%02d", c.Year, int(c.Month)) }

// Start is the first day of the month (UTC).
func (c Competency) Start() time.Time { return StartOfMonth(c.Year, c.Month) }

// End is the last day of the month (UTC).
func (c Competency) End() time.Time { return EndOfMonth(c.Year, c.Month) }

// DaysInMonth returns the number of calendar days in the month.
func (c Competency) DaysInMonth() int { return c.End().Day() }

// Contains reports whether t falls in this competency (calendar date only).
func (c Competency) Contains(t time.Time) bool {
	return t.Year() == c.Year && t.Month() == c.Month
}

// DaysFrom returns the calendar days from t's day through month end, inclusive.
// Used for admission-month proration: admitted on the 10th of a 31-day month -> 22.
func (c Competency) DaysFrom(t time.Time) int {
	return c.DaysInMonth() - t.Day() + 1
}

// MarshalText lets competencies travel as "YYYY-MM" in JSON and YAML.
func (c Competency) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Competency) UnmarshalText(b []byte) error {
	parsed, err := ParseCompetency(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// =============================================================================
// DATE UTILITIES
// =============================================================================

// Date builds a UTC calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOnly drops the clock part of t, keeping its calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

func StartOfMonth(year int, month time.Month) time.Time { return Date(year, month, 1) }

func EndOfMonth(year int, month time.Month) time.Time {
	return time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}
