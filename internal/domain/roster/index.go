package roster

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/okian/certify/pkg/logger"
	"github.com/okian/certify/pkg/metrics"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Index maps normalized emails to display names. It is immutable once
// built and safe for concurrent readers.
type Index struct {
	names map[string]string
}

// Empty returns an index that resolves nothing.
func Empty() *Index {
	return &Index{names: map[string]string{}}
}

// FromMap builds an index from already-paired values; keys are normalized.
func FromMap(m map[string]string) *Index {
	idx := Empty()
	for email, name := range m {
		if key := Normalize(email); key != "" {
			idx.names[key] = strings.TrimSpace(name)
		}
	}
	return idx
}

// Build reads a CSV roster. The header row selects the email and name
// columns (see ResolveColumns); other columns are ignored. Rows with an
// empty email are skipped, a missing name cell stores "", and a repeated
// normalized email overwrites the earlier row.
func Build(ctx context.Context, r io.Reader) (*Index, error) {
	// Spreadsheet exports often carry a UTF-8 BOM ahead of the first header.
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	cr := csv.NewReader(transform.NewReader(r, dec))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	// Tolerate bare quotes inside unquoted fields, e.g. Robert "Bob" Jones.
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptySource
	}
	if err != nil {
		return nil, fmt.Errorf("read roster header: %w", err)
	}

	cols, err := ResolveColumns(header)
	if err != nil {
		return nil, err
	}

	idx := Empty()
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read roster line %d: %w", line, err)
		}

		key := Normalize(cell(rec, cols.Email))
		if key == "" {
			continue
		}
		idx.names[key] = strings.TrimSpace(cell(rec, cols.Name))
	}
	return idx, nil
}

func cell(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}

// Load builds the index from a file at startup. Failures never abort the
// process: a missing file, a read error or undiscoverable columns are
// logged and produce an empty index, so every lookup reports not found.
func Load(ctx context.Context, path string, log logger.Logger) *Index {
	if log == nil {
		log = logger.Nop()
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warn(ctx, "roster file not found", logger.String("path", path))
		} else {
			log.Error(ctx, "roster file unreadable", logger.String("path", path), logger.Error(err))
		}
		metrics.UpdateRosterEntries(0)
		return Empty()
	}
	defer func() { _ = f.Close() }()

	idx, err := Build(ctx, f)
	if err != nil {
		if errors.Is(err, ErrColumnsNotFound) {
			log.Error(ctx, "could not find email/name columns", logger.String("path", path), logger.Error(err))
		} else {
			log.Error(ctx, "error loading roster", logger.String("path", path), logger.Error(err))
		}
		metrics.UpdateRosterEntries(0)
		return Empty()
	}

	log.Info(ctx, "roster loaded", logger.String("path", path), logger.Int("records", idx.Len()))
	metrics.UpdateRosterEntries(idx.Len())
	return idx
}

// Lookup normalizes raw and returns the matching display name.
func (i *Index) Lookup(raw string) (string, bool) {
	if i == nil {
		return "", false
	}
	name, ok := i.names[Normalize(raw)]
	return name, ok
}

// Len returns the number of distinct normalized emails.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.names)
}
