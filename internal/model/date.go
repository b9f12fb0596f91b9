package model

import (
	"fmt"
	"time"
)

const (
	DateLayout       = "2006-01-02"
	CompetenceLayout = "2006-01"

	// MaxDueDay keeps generated due dates valid in every month.
	MaxDueDay = 28
)

// DateOf drops the clock part of t keeping its calendar fields as read in
// t's own location. The result is midnight UTC so it is never shifted again.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// Competence is the calendar month a rent charge refers to.
type Competence struct {
	Year  int
	Month time.Month
}

func CompetenceOf(t time.Time) Competence {
	return Competence{Year: t.Year(), Month: t.Month()}
}

func ParseCompetence(s string) (Competence, error) {
	t, err := time.Parse(CompetenceLayout, s)
	if err != nil {
		return Competence{}, fmt.Errorf("invalid competence %q, expected YYYY-MM", s)
	}
	return CompetenceOf(t), nil
}

func (c Competence) String() string {
	return fmt.Sprintf("%04d-%02d", c.Year, int(c.Month))
}

func (c Competence) FirstDay() time.Time {
	return time.Date(c.Year, c.Month, 1, 0, 0, 0, 0, time.UTC)
}

func (c Competence) Next() Competence {
	return CompetenceOf(c.FirstDay().AddDate(0, 1, 0))
}

// DueDate places dueDay inside the month, capped at MaxDueDay.
func (c Competence) DueDate(dueDay int) time.Time {
	if dueDay > MaxDueDay {
		dueDay = MaxDueDay
	}
	if dueDay < 1 {
		dueDay = 1
	}
	return time.Date(c.Year, c.Month, dueDay, 0, 0, 0, 0, time.UTC)
}
