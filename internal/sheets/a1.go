package sheets

import (
	"fmt"
	"strings"
)

// ColumnLetter converts a 1-based column index into its A1 letters (1 -> A, 27 -> AA).
func ColumnLetter(index int) string {
	if index <= 0 {
		return ""
	}
	var out []byte
	for index > 0 {
		index--
		out = append([]byte{byte('A' + index%26)}, out...)
		index /= 26
	}
	return string(out)
}

// ColumnIndex is the inverse of ColumnLetter, it returns 0 for anything that isn't a
// column reference.
func ColumnIndex(letters string) int {
	letters = strings.ToUpper(strings.TrimSpace(letters))
	if letters == "" {
		return 0
	}
	index := 0
	for _, c := range letters {
		if c < 'A' || c > 'Z' {
			return 0
		}
		index = index*26 + int(c-'A') + 1
	}
	return index
}

func quoteSheet(sheet string) string {
	if strings.ContainsAny(sheet, " '!") {
		return "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
	}
	return sheet
}

// CellRange returns "Sheet!C5".
func CellRange(sheet, column string, row int) string {
	return fmt.Sprintf("%s!%s%d", quoteSheet(sheet), column, row)
}

// RowRange returns "Sheet!G5:H5", or a single cell range when from == to.
func RowRange(sheet, from, to string, row int) string {
	if from == to {
		return CellRange(sheet, from, row)
	}
	return fmt.Sprintf("%s!%s%d:%s%d", quoteSheet(sheet), from, row, to, row)
}

// SheetRange returns "Sheet!A1:J120" or the whole sheet when columns is zero.
func SheetRange(sheet string, columns, rows int) string {
	if columns <= 0 || rows <= 0 {
		return quoteSheet(sheet)
	}
	return fmt.Sprintf("%s!A1:%s%d", quoteSheet(sheet), ColumnLetter(columns), rows)
}
