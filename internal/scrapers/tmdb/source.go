package tmdb

import (
	"context"
	"errors"
	"fmt"
	"realitease/internal/bio"
	"realitease/lib/textutil"
	"strings"
)

// Source looks people up by their TMDb id, falling back to the IMDb id through /find.
type Source struct {
	client *Client
}

func NewSource(client *Client) Source {
	return Source{client: client}
}

func (Source) Name() string { return "tmdb" }

func (s Source) personID(ctx context.Context, person bio.Person) (string, error) {
	if person.TMDbID != "" {
		return person.TMDbID, nil
	}
	if person.IMDbID == "" {
		return "", bio.ErrNotFound
	}
	found, err := s.client.FindByIMDbID(ctx, person.IMDbID)
	if err != nil {
		return "", err
	}
	for _, p := range found {
		if person.Name == "" || textutil.NamesMatch(p.Name, person.Name) {
			return ID(p.ID), nil
		}
	}
	return "", bio.ErrNotFound
}

func (s Source) Lookup(ctx context.Context, person bio.Person) (bio.Result, error) {
	id, err := s.personID(ctx, person)
	if errors.Is(err, ErrNotFound) {
		return bio.Result{}, bio.ErrNotFound
	}
	if err != nil {
		return bio.Result{}, err
	}

	p, err := s.client.Person(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return bio.Result{}, bio.ErrNotFound
	}
	if err != nil {
		return bio.Result{}, fmt.Errorf("tmdb person %s: %w", id, err)
	}
	return PersonResult(p), nil
}

// PersonResult converts a TMDb person into a bio result, TMDb gender codes are
// authoritative and the biography is kept for text analysis.
func PersonResult(p Person) bio.Result {
	return bio.Result{
		Gender:   bio.GenderFromTMDb(p.Gender),
		Birthday: bio.ParseDate(strings.TrimSpace(p.Birthday)),
		BioText:  p.Biography,
	}
}
