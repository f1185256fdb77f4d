package sheets

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/api/googleapi"
)

// ErrRateLimited marks a Sheets call rejected with 429 / "Quota exceeded".
var ErrRateLimited = errors.New("sheets rate limited")

// ValueRange is a block of values to write at an A1 range.
type ValueRange struct {
	Range  string
	Values [][]any
}

// Values is the subset of the spreadsheet API the jobs use.
//
// note: fault injection point
type Values interface {
	// Get returns every value of the range formatted as strings.
	Get(ctx context.Context, rng string) ([][]string, error)
	// BatchUpdate writes every range in one RAW values.batchUpdate request.
	BatchUpdate(ctx context.Context, data []ValueRange) error
	// Update writes a single range.
	Update(ctx context.Context, rng string, values [][]any) error
	// Append appends rows after the last row of the sheet.
	Append(ctx context.Context, sheet string, rows [][]any) error
	Clear(ctx context.Context, rng string) error
	// DeleteRows deletes the given 1-based rows in the order given, callers sort them
	// descending so indexes do not shift.
	DeleteRows(ctx context.Context, sheet string, rows []int) error
	// EnsureSheet creates the worksheet if it does not exist.
	EnsureSheet(ctx context.Context, sheet string) error
}

// IsRateLimited reports whether err is a rate limit / quota error from the Sheets API.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == 429 {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota exceeded") ||
		strings.Contains(msg, "rate_limit_exceeded") ||
		strings.Contains(msg, "429")
}
