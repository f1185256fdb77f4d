package sheets

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cast"
)

// MemoryValues is an in-memory Values for tests.
type MemoryValues struct {
	mutex  sync.Mutex
	sheets map[string][][]string

	// FailBatchUpdate, when set, is consulted before every batch update with the 1-based
	// call number, a non-nil error fails the call.
	FailBatchUpdate func(call int) error
	// FailUpdate is the same for single range updates.
	FailUpdate func(rng string) error

	BatchUpdateCalls int
	UpdateCalls      int
	AppendCalls      int
	Deleted          []int
}

func NewMemoryValues() *MemoryValues {
	return &MemoryValues{sheets: map[string][][]string{}}
}

// Set replaces the contents of a worksheet.
func (m *MemoryValues) Set(sheet string, rows [][]string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	copied := make([][]string, len(rows))
	for i, row := range rows {
		copied[i] = append([]string(nil), row...)
	}
	m.sheets[sheet] = copied
}

// Sheet returns a copy of a worksheet's contents.
func (m *MemoryValues) Sheet(sheet string) [][]string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	rows := m.sheets[sheet]
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = append([]string(nil), row...)
	}
	return out
}

var a1Re = regexp.MustCompile(`^([A-Z]+)(\d+)$`)

type a1Range struct {
	sheet          string
	col1, row1     int
	col2, row2     int
	wholeWorksheet bool
}

func parseA1(rng string) (a1Range, error) {
	sheet, cells, found := strings.Cut(rng, "!")
	sheet = strings.ReplaceAll(strings.Trim(sheet, "'"), "''", "'")
	if !found {
		return a1Range{sheet: sheet, wholeWorksheet: true}, nil
	}
	from, to, isRange := strings.Cut(cells, ":")
	if !isRange {
		to = from
	}
	parse := func(ref string) (int, int, error) {
		m := a1Re.FindStringSubmatch(strings.ToUpper(ref))
		if m == nil {
			return 0, 0, fmt.Errorf("invalid cell reference %q", ref)
		}
		row, _ := strconv.Atoi(m[2])
		return ColumnIndex(m[1]), row, nil
	}
	c1, r1, err := parse(from)
	if err != nil {
		return a1Range{}, err
	}
	c2, r2, err := parse(to)
	if err != nil {
		return a1Range{}, err
	}
	return a1Range{sheet: sheet, col1: c1, row1: r1, col2: c2, row2: r2}, nil
}

func (m *MemoryValues) write(rng string, values [][]any) error {
	r, err := parseA1(rng)
	if err != nil {
		return err
	}
	if r.wholeWorksheet {
		r.col1, r.row1 = 1, 1
	}
	rows := m.sheets[r.sheet]
	for i, valueRow := range values {
		rowIndex := r.row1 - 1 + i
		for len(rows) <= rowIndex {
			rows = append(rows, []string{})
		}
		for j, v := range valueRow {
			colIndex := r.col1 - 1 + j
			for len(rows[rowIndex]) <= colIndex {
				rows[rowIndex] = append(rows[rowIndex], "")
			}
			rows[rowIndex][colIndex] = cast.ToString(v)
		}
	}
	m.sheets[r.sheet] = rows
	return nil
}

func (m *MemoryValues) Get(ctx context.Context, rng string) ([][]string, error) {
	r, err := parseA1(rng)
	if err != nil {
		return nil, err
	}
	m.mutex.Lock()
	rows, ok := m.sheets[r.sheet]
	m.mutex.Unlock()
	if !ok {
		return nil, fmt.Errorf("get %s: unknown worksheet %q", rng, r.sheet)
	}
	if r.wholeWorksheet {
		return m.Sheet(r.sheet), nil
	}

	var out [][]string
	for row := r.row1; row <= r.row2 && row <= len(rows); row++ {
		var cells []string
		for c := r.col1; c <= r.col2; c++ {
			cells = append(cells, CellAt(rows[row-1], c-1))
		}
		out = append(out, cells)
	}
	return out, nil
}

func (m *MemoryValues) BatchUpdate(ctx context.Context, data []ValueRange) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.BatchUpdateCalls++
	if m.FailBatchUpdate != nil {
		if err := m.FailBatchUpdate(m.BatchUpdateCalls); err != nil {
			return err
		}
	}
	for _, d := range data {
		if err := m.write(d.Range, d.Values); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryValues) Update(ctx context.Context, rng string, values [][]any) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.UpdateCalls++
	if m.FailUpdate != nil {
		if err := m.FailUpdate(rng); err != nil {
			return err
		}
	}
	return m.write(rng, values)
}

func (m *MemoryValues) Append(ctx context.Context, sheet string, rows [][]any) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.AppendCalls++
	next := len(m.sheets[sheet]) + 1
	return m.write(CellRange(sheet, "A", next), rows)
}

func (m *MemoryValues) Clear(ctx context.Context, rng string) error {
	r, err := parseA1(rng)
	if err != nil {
		return err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if r.wholeWorksheet {
		m.sheets[r.sheet] = nil
		return nil
	}
	rows := m.sheets[r.sheet]
	for row := r.row1; row <= r.row2 && row <= len(rows); row++ {
		for c := r.col1; c <= r.col2 && c <= len(rows[row-1]); c++ {
			rows[row-1][c-1] = ""
		}
	}
	return nil
}

func (m *MemoryValues) DeleteRows(ctx context.Context, sheet string, rows []int) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	current := m.sheets[sheet]
	for _, row := range rows {
		if row < 1 || row > len(current) {
			return fmt.Errorf("delete rows: row %d out of range", row)
		}
		current = append(current[:row-1], current[row:]...)
		m.Deleted = append(m.Deleted, row)
	}
	m.sheets[sheet] = current
	return nil
}

func (m *MemoryValues) EnsureSheet(ctx context.Context, sheet string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, ok := m.sheets[sheet]; !ok {
		m.sheets[sheet] = [][]string{}
	}
	return nil
}
