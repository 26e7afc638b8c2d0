package roster

import (
	"fmt"
	"strings"
)

// Columns holds the resolved positions of the email and name columns.
type Columns struct {
	Email     int
	Name      int
	EmailName string
	NameName  string
}

// ResolveColumns scans header names case-insensitively, after trimming,
// for the first column containing "email" and the first containing
// "name". Ties go to the earliest column. A header such as "Email Name"
// can satisfy both.
func ResolveColumns(header []string) (Columns, error) {
	cols := Columns{Email: -1, Name: -1}
	for i, h := range header {
		h = strings.TrimSpace(h)
		lower := strings.ToLower(h)
		if cols.Email < 0 && strings.Contains(lower, "email") {
			cols.Email, cols.EmailName = i, h
		}
		if cols.Name < 0 && strings.Contains(lower, "name") {
			cols.Name, cols.NameName = i, h
		}
	}
	if cols.Email < 0 || cols.Name < 0 {
		return cols, fmt.Errorf("%w: header %q", ErrColumnsNotFound, header)
	}
	return cols, nil
}
