// Package failures keeps the list of cast members a run could not process, so they can
// be investigated (and retried) later.
package failures

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"realitease/internal/components/chrono"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"
)

// Entry is a single failed cast member.
type Entry struct {
	Row        int       `json:"row,omitempty"`
	Name       string    `json:"cast_name"`
	CastIMDbID string    `json:"cast_imdb_id,omitempty"`
	Show       string    `json:"show_name,omitempty"`
	ShowIMDbID string    `json:"show_imdb_id,omitempty"`
	Reason     string    `json:"reason"`
	Worker     int       `json:"worker,omitempty"`
	At         time.Time `json:"timestamp"`
}

// Log is a concurrency-safe list of failures.
type Log struct {
	mutex   sync.Mutex
	entries []Entry
	time    chrono.TimeAPI
}

func NewLog(timeAPI chrono.TimeAPI) *Log {
	return &Log{time: timeAPI}
}

// Add records a failure, a zero At is set to the current time.
func (l *Log) Add(entry Entry) {
	if entry.At.IsZero() {
		entry.At = l.time.Now()
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.entries = append(l.entries, entry)
}

func (l *Log) Len() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return len(l.entries)
}

// Entries returns a copy of every recorded failure.
func (l *Log) Entries() []Entry {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Filename returns the name of the log file for a run finishing at t.
func Filename(t time.Time) string {
	return fmt.Sprintf("failed_cast_members_%s.json", chrono.Timestamp(t))
}

// Save writes the log as indented JSON into dir and returns the file path. Nothing is
// written (and "" returned) when there are no failures.
func (l *Log) Save(dir string) (string, error) {
	entries := l.Entries()
	if len(entries) == 0 {
		return "", nil
	}
	contents, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", err
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, Filename(l.time.Now()))
	if err := os.WriteFile(path, contents, 0644); err != nil {
		return "", fmt.Errorf("write failed log: %w", err)
	}
	return path, nil
}

// Load reads a log file written by Save.
func Load(path string) ([]Entry, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	if err := json.Unmarshal(contents, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return entries, nil
}

var xlsxHeader = []any{
	"Row", "CastName", "CastIMDbID", "ShowName", "ShowIMDbID", "Reason", "Worker", "Timestamp",
}

// ExportXLSX writes entries into a single-sheet workbook at path.
func ExportXLSX(entries []Entry, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}
	if err := sw.SetRow("A1", xlsxHeader); err != nil {
		return err
	}
	for i, e := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			e.Row, e.Name, e.CastIMDbID, e.Show, e.ShowIMDbID, e.Reason, e.Worker,
			e.At.Format(time.RFC3339),
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	return f.SaveAs(path)
}
