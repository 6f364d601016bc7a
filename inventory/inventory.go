package inventory

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"github.com/xuri/excelize/v2"
	"golang.org/x/exp/slices"
	"golang.org/x/xerrors"

	"github.com/flyingphish/intune-os-checker/matcher"
)

const (
	osColumn      = "OS"
	versionColumn = "OS version"

	// extra per-family output columns
	ColCodename = "Codename"
	ColLatest   = "Latest Version"
)

var resultColumns = []string{"Supported", "Release Label", "Release Date", "EOL Date"}

// Excel rejects most punctuation in sheet names.
var sheetNameRe = regexp.MustCompile(`[^a-zA-Z0-9 ()_-]`)

// SheetName builds the output sheet name for a family label,
// e.g. "iOS/iPadOS" -> "iOSiPadOS Versions".
func SheetName(label string) string {
	return sheetNameRe.ReplaceAllString(label, "") + " Versions"
}

// Row is one device row from the inventory sheet. Index is the zero-based
// data row position and stays stable for the life of the workbook, so it
// doubles as the row identity for match results.
type Row struct {
	Index     int
	Cells     []string
	OS        string
	OSVersion string
}

type option func(*Store)

func WithFs(v afero.Fs) option {
	return func(s *Store) { s.appFs = v }
}

// Store reads device rows from an Intune .xlsx export and writes per-family
// result sheets back into the same workbook.
type Store struct {
	appFs afero.Fs
	path  string
	book  *excelize.File
}

func NewStore(path string, opts ...option) *Store {
	store := &Store{
		appFs: afero.NewOsFs(),
		path:  path,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) Load() error {
	f, err := s.appFs.Open(s.path)
	if err != nil {
		return xerrors.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	book, err := excelize.OpenReader(f)
	if err != nil {
		return xerrors.Errorf("failed to read workbook: %w", err)
	}
	s.book = book
	return nil
}

// Rows returns the header and the device rows of the named sheet. The OS and
// OS version columns are located by header name, not position.
func (s *Store) Rows(sheet string) ([]string, []Row, error) {
	all, err := s.book.GetRows(sheet)
	if err != nil {
		return nil, nil, xerrors.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(all) == 0 {
		return nil, nil, xerrors.Errorf("sheet %q has no header row", sheet)
	}

	header := all[0]
	osIdx := headerIndex(header, osColumn)
	if osIdx < 0 {
		return nil, nil, xerrors.Errorf("sheet %q has no %q column", sheet, osColumn)
	}
	verIdx := headerIndex(header, versionColumn)
	if verIdx < 0 {
		return nil, nil, xerrors.Errorf("sheet %q has no %q column", sheet, versionColumn)
	}

	rows := make([]Row, 0, len(all)-1)
	for i, cells := range all[1:] {
		rows = append(rows, Row{
			Index:     i,
			Cells:     cells,
			OS:        cell(cells, osIdx),
			OSVersion: cell(cells, verIdx),
		})
	}
	return header, rows, nil
}

func headerIndex(header []string, name string) int {
	return slices.IndexFunc(header, func(h string) bool {
		return strings.EqualFold(strings.TrimSpace(h), name)
	})
}

// GetRows drops trailing empty cells, so short rows are normal.
func cell(cells []string, idx int) string {
	if idx < len(cells) {
		return strings.TrimSpace(cells[idx])
	}
	return ""
}

// WriteFamily replaces the family's result sheet with the given rows, the
// original columns first, then the derived status columns and any extras.
func (s *Store) WriteFamily(label string, header []string, rows []Row, results map[int]matcher.Result, extras []string) error {
	sheet := SheetName(label)
	if idx, err := s.book.GetSheetIndex(sheet); err == nil && idx >= 0 {
		if err := s.book.DeleteSheet(sheet); err != nil {
			return xerrors.Errorf("failed to replace sheet %q: %w", sheet, err)
		}
	}
	if _, err := s.book.NewSheet(sheet); err != nil {
		return xerrors.Errorf("failed to create sheet %q: %w", sheet, err)
	}

	out := append(slices.Clone(header), resultColumns...)
	out = append(out, extras...)
	if err := s.writeRow(sheet, 1, out); err != nil {
		return err
	}

	for i, row := range rows {
		res, ok := results[row.Index]
		if !ok {
			return xerrors.Errorf("row %d of %s has no match result", row.Index, label)
		}
		cells := slices.Clone(row.Cells)
		for len(cells) < len(header) {
			cells = append(cells, "")
		}
		cells = append(cells, string(res.Status), res.ReleaseLabel, res.ReleaseDate, res.EOLDate)
		for _, extra := range extras {
			switch extra {
			case ColCodename:
				cells = append(cells, res.Codename)
			case ColLatest:
				v := matcher.NotAvailable
				if res.IsLatest != nil {
					v = strconv.FormatBool(*res.IsLatest)
				}
				cells = append(cells, v)
			default:
				return xerrors.Errorf("unknown extra column %q", extra)
			}
		}
		if err := s.writeRow(sheet, i+2, cells); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) writeRow(sheet string, n int, cells []string) error {
	addr, err := excelize.JoinCellName("A", n)
	if err != nil {
		return xerrors.Errorf("invalid row number %d: %w", n, err)
	}
	values := make([]interface{}, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	if err := s.book.SetSheetRow(sheet, addr, &values); err != nil {
		return xerrors.Errorf("failed to write row %d of sheet %q: %w", n, sheet, err)
	}
	return nil
}

// Save writes the workbook back to its original path.
func (s *Store) Save() error {
	f, err := s.appFs.Create(s.path)
	if err != nil {
		return xerrors.Errorf("failed to create workbook file: %w", err)
	}
	defer f.Close()

	if err := s.book.Write(f); err != nil {
		return xerrors.Errorf("failed to save workbook: %w", err)
	}
	return nil
}
