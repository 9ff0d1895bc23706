// Package workbook persists registry records into a two-sheet xlsx file.
//
// Each record kind has its own sheet with a fixed, bold and frozen header
// row. The last column holds the source URL, which is the dedupe key: a
// record whose key is empty or already present in the sheet is skipped, so
// re-running a collection against the same file only appends new records.
// The file is replaced atomically on save.
package workbook

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/nao1215/bankrotscan/internal/log"
	"github.com/nao1215/bankrotscan/internal/model"
	"github.com/nao1215/bankrotscan/internal/normalize"
)

const (
	// maxColumnWidth caps the autosized column width, in characters.
	maxColumnWidth = 60

	// columnPadding is added to the longest value in a column.
	columnPadding = 2

	// defaultSheet is the sheet excelize creates in a new file.
	defaultSheet = "Sheet1"
)

// ErrClosed is returned when a Store is used after Close.
var ErrClosed = errors.New("workbook is closed")

// Result counts added and skipped records per kind.
type Result struct {
	AddedLegal        int `json:"added_legal"`
	AddedIndividual   int `json:"added_individual"`
	SkippedLegal      int `json:"skipped_legal"`
	SkippedIndividual int `json:"skipped_individual"`
}

// Added returns the added count of kind.
func (r Result) Added(kind model.Kind) int {
	if kind == model.KindIndividual {
		return r.AddedIndividual
	}
	return r.AddedLegal
}

// Skipped returns the skipped count of kind.
func (r Result) Skipped(kind model.Kind) int {
	if kind == model.KindIndividual {
		return r.SkippedIndividual
	}
	return r.SkippedLegal
}

// sheetState tracks one sheet: the keys already present and the next
// free row.
type sheetState struct {
	kind    model.Kind
	keys    map[string]struct{}
	nextRow int
}

// Store is an open workbook. It is not safe for concurrent use.
type Store struct {
	path   string
	file   *excelize.File
	sheets map[model.Kind]*sheetState
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open loads the workbook at path, or prepares a new one when the file
// does not exist. Missing sheets are created with their header row, and
// the dedupe keys of existing rows are loaded.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:   path,
		sheets: make(map[model.Kind]*sheetState, len(model.AllKinds)),
		logger: log.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}

	created := false
	switch _, err := os.Stat(path); {
	case err == nil:
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("open workbook %s: %w", path, err)
		}
		s.file = f
	case errors.Is(err, os.ErrNotExist):
		s.file = excelize.NewFile()
		created = true
	default:
		return nil, fmt.Errorf("stat workbook %s: %w", path, err)
	}

	for _, kind := range model.AllKinds {
		if err := s.loadSheet(kind, created); err != nil {
			_ = s.file.Close()
			return nil, err
		}
	}

	if created {
		if idx, _ := s.file.GetSheetIndex(defaultSheet); idx != -1 {
			if err := s.file.DeleteSheet(defaultSheet); err != nil {
				_ = s.file.Close()
				return nil, fmt.Errorf("remove default sheet: %w", err)
			}
		}
		if idx, err := s.file.GetSheetIndex(model.SheetLegal); err == nil && idx != -1 {
			s.file.SetActiveSheet(idx)
		}
	}

	s.logger.Debug("workbook opened",
		"path", path,
		"created", created,
		"legal_keys", len(s.sheets[model.KindLegal].keys),
		"individual_keys", len(s.sheets[model.KindIndividual].keys))
	return s, nil
}

// loadSheet makes sure the sheet of kind exists and reads its keys.
func (s *Store) loadSheet(kind model.Kind, created bool) error {
	name := kind.Sheet()
	idx, err := s.file.GetSheetIndex(name)
	if err != nil {
		return fmt.Errorf("look up sheet %s: %w", name, err)
	}
	if idx == -1 {
		if created && kind == model.AllKinds[0] {
			// Reuse the default sheet so a new file has no stray tab.
			if err := s.file.SetSheetName(defaultSheet, name); err != nil {
				return fmt.Errorf("rename default sheet: %w", err)
			}
		} else if _, err := s.file.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	rows, err := s.file.GetRows(name)
	if err != nil {
		return fmt.Errorf("read sheet %s: %w", name, err)
	}

	st := &sheetState{kind: kind, keys: make(map[string]struct{}, len(rows))}
	if len(rows) == 0 {
		if err := s.writeHeader(kind); err != nil {
			return err
		}
		st.nextRow = 2
		s.sheets[kind] = st
		return nil
	}

	keyCol := len(kind.Header()) - 1
	for _, row := range rows[1:] {
		if keyCol >= len(row) {
			continue
		}
		if key := normalize.Scalar(row[keyCol]); key != "" {
			st.keys[key] = struct{}{}
		}
	}
	st.nextRow = len(rows) + 1
	s.sheets[kind] = st
	return nil
}

// writeHeader writes the bold header row and freezes it.
func (s *Store) writeHeader(kind model.Kind) error {
	name := kind.Sheet()
	header := kind.Header()

	if err := s.file.SetSheetRow(name, "A1", &header); err != nil {
		return fmt.Errorf("write header of %s: %w", name, err)
	}

	style, err := s.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := s.file.SetCellStyle(name, "A1", last, style); err != nil {
		return fmt.Errorf("style header of %s: %w", name, err)
	}

	err = s.file.SetPanes(name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
	if err != nil {
		return fmt.Errorf("freeze header of %s: %w", name, err)
	}
	return nil
}

// Append writes records of one kind in order, skipping records whose key
// is empty or already present. Keys are registered as rows are written,
// so duplicates inside records collapse as well.
func (s *Store) Append(kind model.Kind, records []model.Record) (added, skipped int, err error) {
	if s.file == nil {
		return 0, 0, ErrClosed
	}
	st := s.sheets[kind]
	name := kind.Sheet()

	for _, rec := range records {
		key := rec.Key()
		if key == "" {
			skipped++
			continue
		}
		if _, dup := st.keys[key]; dup {
			skipped++
			continue
		}

		row := rec.Values()
		for i := range row {
			row[i] = normalize.Scalar(row[i])
		}
		cell, err := excelize.CoordinatesToCellName(1, st.nextRow)
		if err != nil {
			return added, skipped, err
		}
		if err := s.file.SetSheetRow(name, cell, &row); err != nil {
			return added, skipped, fmt.Errorf("append row %d to %s: %w", st.nextRow, name, err)
		}
		st.keys[key] = struct{}{}
		st.nextRow++
		added++
	}
	return added, skipped, nil
}

// AppendLegal appends legal entity records.
func (s *Store) AppendLegal(records []*model.LegalEntityRecord) (added, skipped int, err error) {
	return s.Append(model.KindLegal, model.LegalRecords(records))
}

// AppendIndividuals appends individual records.
func (s *Store) AppendIndividuals(records []*model.IndividualRecord) (added, skipped int, err error) {
	return s.Append(model.KindIndividual, model.IndividualRecords(records))
}

// Contains reports whether key is already stored for kind.
func (s *Store) Contains(kind model.Kind, key string) bool {
	st, ok := s.sheets[kind]
	if !ok {
		return false
	}
	_, found := st.keys[normalize.Scalar(key)]
	return found
}

// Len returns the number of keyed rows of kind.
func (s *Store) Len(kind model.Kind) int {
	if st, ok := s.sheets[kind]; ok {
		return len(st.keys)
	}
	return 0
}

// Save autosizes the columns and writes the workbook to its path. The
// file is written to a temporary file in the same directory and renamed
// over the target, so a failed save leaves the previous file intact.
func (s *Store) Save() error {
	if s.file == nil {
		return ErrClosed
	}
	for _, kind := range model.AllKinds {
		if err := s.autosize(kind); err != nil {
			return err
		}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary workbook: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := s.file.Write(tmp); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write workbook: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temporary workbook: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("replace workbook %s: %w", s.path, err)
	}
	return nil
}

// autosize sets every column width to its longest value plus padding,
// capped at maxColumnWidth.
func (s *Store) autosize(kind model.Kind) error {
	name := kind.Sheet()
	rows, err := s.file.GetRows(name)
	if err != nil {
		return fmt.Errorf("read sheet %s: %w", name, err)
	}

	widths := make([]int, len(kind.Header()))
	for _, row := range rows {
		for i, v := range row {
			if i >= len(widths) {
				break
			}
			widths[i] = max(widths[i], utf8.RuneCountInString(v))
		}
	}
	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := s.file.SetColWidth(name, col, col, float64(min(w+columnPadding, maxColumnWidth))); err != nil {
			return fmt.Errorf("set width of %s!%s: %w", name, col, err)
		}
	}
	return nil
}

// Rows returns all rows of kind's sheet, header included.
func (s *Store) Rows(kind model.Kind) ([][]string, error) {
	if s.file == nil {
		return nil, ErrClosed
	}
	return s.file.GetRows(kind.Sheet())
}

// Close releases the workbook. Unsaved changes are discarded.
func (s *Store) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// Persist opens the workbook at path, appends both record sets, saves
// and closes it. Duplicate-only input is not an error.
func Persist(path string, legal []*model.LegalEntityRecord, individuals []*model.IndividualRecord, opts ...Option) (Result, error) {
	store, err := Open(path, opts...)
	if err != nil {
		return Result{}, err
	}
	defer store.Close()

	var res Result
	if res.AddedLegal, res.SkippedLegal, err = store.AppendLegal(legal); err != nil {
		return res, err
	}
	if res.AddedIndividual, res.SkippedIndividual, err = store.AppendIndividuals(individuals); err != nil {
		return res, err
	}
	if err := store.Save(); err != nil {
		return res, err
	}

	store.logger.Info("workbook updated",
		"path", path,
		"added_legal", res.AddedLegal,
		"added_individual", res.AddedIndividual,
		"skipped_legal", res.SkippedLegal,
		"skipped_individual", res.SkippedIndividual)
	return res, nil
}
