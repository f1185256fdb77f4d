package sheets

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cast"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

// OpenOptions says how to find the workbook.
type OpenOptions struct {
	CredentialsFile string
	// SpreadsheetID opens the workbook directly when set.
	SpreadsheetID string
	// SpreadsheetName is resolved through Drive when SpreadsheetID is empty.
	SpreadsheetName string
}

// Spreadsheet implements Values on top of the Google Sheets v4 API.
type Spreadsheet struct {
	ID    string
	Title string

	service *sheets.Service

	mutex    sync.Mutex
	sheetIDs map[string]int64
}

// Open authenticates with a service account key and opens the workbook.
func Open(ctx context.Context, opts OpenOptions) (*Spreadsheet, error) {
	if opts.CredentialsFile == "" {
		return nil, fmt.Errorf("no service account credentials configured")
	}
	creds := option.WithCredentialsFile(opts.CredentialsFile)
	scopes := option.WithScopes(sheets.SpreadsheetsScope, drive.DriveReadonlyScope)

	service, err := sheets.NewService(ctx, creds, scopes)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	id := opts.SpreadsheetID
	if id == "" {
		driveService, err := drive.NewService(ctx, creds, scopes)
		if err != nil {
			return nil, fmt.Errorf("create drive service: %w", err)
		}
		id, err = findSpreadsheet(ctx, driveService, opts.SpreadsheetName)
		if err != nil {
			return nil, err
		}
	}

	s := &Spreadsheet{ID: id, service: service}
	if err := s.loadSheets(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func findSpreadsheet(ctx context.Context, service *drive.Service, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("neither a spreadsheet id nor a spreadsheet name was given")
	}
	query := fmt.Sprintf(
		"name = '%s' and mimeType = '%s' and trashed = false",
		strings.ReplaceAll(name, "'", `\'`), spreadsheetMimeType,
	)
	res, err := service.Files.List().
		Q(query).
		Fields("files(id, name)").
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("search drive for spreadsheet %q: %w", name, err)
	}
	if len(res.Files) == 0 {
		return "", fmt.Errorf("spreadsheet %q not found (is it shared with the service account?)", name)
	}
	return res.Files[0].Id, nil
}

func (s *Spreadsheet) loadSheets(ctx context.Context) error {
	res, err := s.service.Spreadsheets.Get(s.ID).
		Fields("properties.title", "sheets.properties").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet %s: %w", s.ID, err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if res.Properties != nil {
		s.Title = res.Properties.Title
	}
	s.sheetIDs = map[string]int64{}
	for _, sheet := range res.Sheets {
		if sheet.Properties == nil {
			continue
		}
		s.sheetIDs[sheet.Properties.Title] = sheet.Properties.SheetId
	}
	return nil
}

func (s *Spreadsheet) sheetID(sheet string) (int64, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	id, ok := s.sheetIDs[sheet]
	return id, ok
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsRateLimited(err) {
		return fmt.Errorf("%s: %w: %w", op, ErrRateLimited, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Spreadsheet) Get(ctx context.Context, rng string) ([][]string, error) {
	res, err := s.service.Spreadsheets.Values.Get(s.ID, rng).Context(ctx).Do()
	if err != nil {
		return nil, wrap("get "+rng, err)
	}
	// the API drops trailing empty cells, rows are padded to the widest one
	width := 0
	for _, row := range res.Values {
		width = max(width, len(row))
	}
	out := make([][]string, len(res.Values))
	for i, row := range res.Values {
		out[i] = make([]string, width)
		for j, v := range row {
			out[i][j] = cast.ToString(v)
		}
	}
	return out, nil
}

func toValueRange(rng string, values [][]any) *sheets.ValueRange {
	return &sheets.ValueRange{Range: rng, Values: values}
}

func (s *Spreadsheet) BatchUpdate(ctx context.Context, data []ValueRange) error {
	req := &sheets.BatchUpdateValuesRequest{ValueInputOption: "RAW"}
	for _, d := range data {
		req.Data = append(req.Data, toValueRange(d.Range, d.Values))
	}
	_, err := s.service.Spreadsheets.Values.BatchUpdate(s.ID, req).Context(ctx).Do()
	return wrap("batch update", err)
}

func (s *Spreadsheet) Update(ctx context.Context, rng string, values [][]any) error {
	_, err := s.service.Spreadsheets.Values.Update(s.ID, rng, toValueRange(rng, values)).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return wrap("update "+rng, err)
}

func (s *Spreadsheet) Append(ctx context.Context, sheet string, rows [][]any) error {
	rng := quoteSheet(sheet)
	_, err := s.service.Spreadsheets.Values.Append(s.ID, rng, toValueRange(rng, rows)).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return wrap("append "+sheet, err)
}

func (s *Spreadsheet) Clear(ctx context.Context, rng string) error {
	_, err := s.service.Spreadsheets.Values.Clear(s.ID, rng, &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	return wrap("clear "+rng, err)
}

func (s *Spreadsheet) DeleteRows(ctx context.Context, sheet string, rows []int) error {
	if len(rows) == 0 {
		return nil
	}
	id, ok := s.sheetID(sheet)
	if !ok {
		return fmt.Errorf("delete rows: unknown worksheet %q", sheet)
	}
	req := &sheets.BatchUpdateSpreadsheetRequest{}
	for _, row := range rows {
		req.Requests = append(req.Requests, &sheets.Request{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:         id,
					Dimension:       "ROWS",
					StartIndex:      int64(row - 1),
					EndIndex:        int64(row),
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		})
	}
	_, err := s.service.Spreadsheets.BatchUpdate(s.ID, req).Context(ctx).Do()
	return wrap("delete rows", err)
}

func (s *Spreadsheet) EnsureSheet(ctx context.Context, sheet string) error {
	if _, ok := s.sheetID(sheet); ok {
		return nil
	}
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: sheet},
			},
		}},
	}
	if _, err := s.service.Spreadsheets.BatchUpdate(s.ID, req).Context(ctx).Do(); err != nil {
		return wrap("add sheet "+sheet, err)
	}
	return s.loadSheets(ctx)
}
