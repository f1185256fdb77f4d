package imdb

import (
	"errors"
	"fmt"
	"time"
)

// Failure reasons recorded in the failed-member log.
const (
	ReasonNotFound        = "Cast member not found on page"
	ReasonNoButton        = "Episodes button not found"
	ReasonNoClick         = "Could not click episodes button"
	ReasonProcessing      = "Processing timeout"
	ReasonSeasonTimeout   = "Season extraction timeout"
	ReasonPageLoad        = "Failed to load show page"
	reasonNoDataTemplate  = "No episode/season data extracted (episodes: %d, seasons: %s)"
	reasonThreadTemplate  = "Threading timeout after %ds"
	reasonUnexpectedError = "Unexpected error: %v"
)

// ErrStale is returned when a located node is no longer in the live page.
var ErrStale = errors.New("stale element")

// Failure is a per-member failure with the reason written to the failed log.
type Failure struct {
	Reason string
	Err    error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Reason
	}
	return fmt.Sprintf("%s: %v", f.Reason, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

func fail(reason string, err error) error {
	return &Failure{Reason: reason, Err: err}
}

func NoDataReason(episodes int, seasons []int) string {
	return fmt.Sprintf(reasonNoDataTemplate, episodes, FormatSeasons(seasons))
}

func TimeoutReason(budget time.Duration) string {
	return fmt.Sprintf(reasonThreadTemplate, int(budget.Seconds()))
}

// Reason returns the failed-log reason of an error returned by a Page.
func Reason(err error) string {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure.Reason
	}
	return fmt.Sprintf(reasonUnexpectedError, err)
}
