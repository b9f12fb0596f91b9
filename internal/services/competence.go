package services

import (
	"time"

	"github.com/nimasrn/rental-billing/internal/model"
)

// Competences lists every calendar month from start's month to end's month,
// both included, in order. Missing dates or end before start yield nothing.
// Months are taken from the dates' own calendar fields, never shifted to UTC.
func Competences(start, end *time.Time) []model.Competence {
	if start == nil || end == nil {
		return nil
	}
	if model.DateOf(*end).Before(model.DateOf(*start)) {
		return nil
	}
	first := model.CompetenceOf(*start)
	last := model.CompetenceOf(*end)

	var out []model.Competence
	for c := first; !c.FirstDay().After(last.FirstDay()); c = c.Next() {
		out = append(out, c)
	}
	return out
}
