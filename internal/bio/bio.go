// Package bio holds the pure parts of bio enrichment: date normalization, zodiac signs,
// gender scoring and wiki infobox extraction, plus the Source contract every bio
// data source implements.
package bio

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by a Source when it has no page/entity for a person.
var ErrNotFound = errors.New("person not found")

// Person is what sources know about the cast member being looked up.
type Person struct {
	Name   string
	IMDbID string
	TMDbID string
	Shows  []string
}

// Result is what a single source found, empty fields mean "not found".
type Result struct {
	Gender   Gender
	Birthday string
	// BioText is prose about the person that is kept for the final gender analysis.
	BioText string
}

// Source is a single bio data source in the enrichment cascade.
type Source interface {
	Name() string
	Lookup(ctx context.Context, person Person) (Result, error)
}

// Record accumulates results across sources, the first source to provide a field wins.
type Record struct {
	Gender         Gender
	GenderSource   string
	Birthday       string
	BirthdaySource string

	texts []string
}

// Merge applies a source's result, it returns true if any field was filled.
func (r *Record) Merge(source string, res Result) bool {
	changed := false
	if r.Gender == GenderUnknown && res.Gender != GenderUnknown {
		r.Gender = res.Gender
		r.GenderSource = source + "_gender"
		changed = true
	}
	if r.Birthday == "" && res.Birthday != "" {
		r.Birthday = res.Birthday
		r.BirthdaySource = source + "_birthday"
		changed = true
	}
	if strings.TrimSpace(res.BioText) != "" {
		r.texts = append(r.texts, res.BioText)
	}
	return changed
}

// Complete reports whether gender and birthday are both known.
func (r Record) Complete() bool {
	return r.Gender != GenderUnknown && r.Birthday != ""
}

// Zodiac is derived from the birthday, never stored independently.
func (r Record) Zodiac() string {
	return Zodiac(r.Birthday)
}

// ResolveGender runs ScoreGender over all collected bio texts when no source reported
// an explicit gender.
func (r *Record) ResolveGender(name string) {
	if r.Gender != GenderUnknown || len(r.texts) == 0 {
		return
	}
	gender, _ := ScoreGender(strings.Join(r.texts, " "), name)
	if gender != GenderUnknown {
		r.Gender = gender
		r.GenderSource = "bio_text_analysis"
	}
}
