package faultsheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/vectorscan/fault-diagnosis/internal/core/domain"
)

// Fault-history column headers, matched case-insensitively.
const (
	ColumnID         = "Fault Entry ID"
	ColumnEquipment  = "Equipment Affected"
	ColumnFault      = "Fault Description"
	ColumnCause      = "Cause (if known)"
	ColumnResolution = "Resolution Action"
	ColumnShip       = "Ship"
)

var ErrUnsupportedFormat = errors.New("unsupported fault history format")

// ReadFile reads a .csv or .xlsx fault-history export.
func ReadFile(path string) ([]domain.FaultRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fault history: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ReadCSV(f)
	case ".xlsx", ".xlsm":
		return ReadXLSX(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
}

func ReadCSV(r io.Reader) ([]domain.FaultRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return recordsFromRows(rows)
}

// ReadXLSX reads the first sheet of a workbook.
func ReadXLSX(r io.Reader) ([]domain.FaultRecord, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("read xlsx: workbook has no sheets")
	}
	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read xlsx sheet %q: %w", sheets[0], err)
	}
	return recordsFromRows(rows)
}

type columnIndex map[string]int

func (c columnIndex) value(row []string, column string) string {
	idx, ok := c[strings.ToLower(column)]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func recordsFromRows(rows [][]string) ([]domain.FaultRecord, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("fault history is empty")
	}

	columns := make(columnIndex, len(rows[0]))
	for i, header := range rows[0] {
		header = strings.TrimPrefix(header, "\ufeff")
		columns[strings.ToLower(strings.TrimSpace(header))] = i
	}
	if _, ok := columns[strings.ToLower(ColumnID)]; !ok {
		return nil, fmt.Errorf("fault history: missing %q column", ColumnID)
	}

	out := make([]domain.FaultRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		out = append(out, domain.FaultRecord{
			ID:         columns.value(row, ColumnID),
			Equipment:  columns.value(row, ColumnEquipment),
			Fault:      columns.value(row, ColumnFault),
			Cause:      columns.value(row, ColumnCause),
			Resolution: columns.value(row, ColumnResolution),
			Ship:       columns.value(row, ColumnShip),
		})
	}
	return out, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
