// Package report renders an enriched result table to a file. The row order
// is the caller's, normally the rank order, and the column layout comes
// from the table itself.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/epiworks/episeek/internal/model"

	"github.com/xuri/excelize/v2"
)

// Write renders table to path in the format implied by its extension:
// .tsv, .json or .xlsx. The file is written atomically enough for a CLI:
// create, render, close; a render error leaves no partial file behind.
func Write(path string, t *model.Table, order []model.Key) error {
	var render func() error

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx":
		render = func() error { return writeWorkbook(path, t, order) }
	case ".json":
		render = func() error { return toFile(path, t, order, WriteJSON) }
	case ".tsv", "":
		render = func() error { return toFile(path, t, order, WriteTSV) }
	default:
		return fmt.Errorf("unsupported report format %q", ext)
	}

	if err := render(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("write report %s: %w", path, err)
	}
	slog.Info("report written", "path", path, "rows", len(order))
	return nil
}

func toFile(path string, t *model.Table, order []model.Key, render func(io.Writer, *model.Table, []model.Key) error) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render(fh, t, order); err != nil {
		_ = fh.Close()
		return err
	}
	return fh.Close()
}

// WriteTSV renders the header row and one row per key.
func WriteTSV(w io.Writer, t *model.Table, order []model.Key) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	if err := cw.Write(t.Header()); err != nil {
		return err
	}
	for _, key := range order {
		if err := cw.Write(t.RenderRow(key)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// jsonRow is one peptide's rendered record. Failed services carry the
// failure reason instead of values.
type jsonRow struct {
	Peptide  string            `json:"peptide"`
	Values   map[string]string `json:"values,omitempty"`
	Failures map[string]string `json:"failures,omitempty"`
}

// WriteJSON renders an array of records, one per key. Unlike the tabular
// formats, failures keep their classified reason so downstream tooling can
// distinguish a timeout from a rejection.
func WriteJSON(w io.Writer, t *model.Table, order []model.Key) error {
	rows := make([]jsonRow, 0, len(order))
	for _, key := range order {
		row := jsonRow{Peptide: string(key)}
		for _, service := range t.Services() {
			out, ok := t.Outcome(key, service)
			if !ok {
				continue
			}
			if !out.OK() {
				if row.Failures == nil {
					row.Failures = make(map[string]string)
				}
				row.Failures[service] = string(out.Reason)
				continue
			}
			if row.Values == nil {
				row.Values = make(map[string]string)
			}
			for _, col := range out.Value.Columns() {
				row.Values[col.Name] = col.Value
			}
		}
		rows = append(rows, row)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

const sheetName = "results"

func writeWorkbook(path string, t *model.Table, order []model.Key) error {
	wb := excelize.NewFile()
	defer func() {
		_ = wb.Close()
	}()

	idx, err := wb.NewSheet(sheetName)
	if err != nil {
		return err
	}
	wb.SetActiveSheet(idx)
	if err := wb.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	if err := setRow(wb, 1, t.Header()); err != nil {
		return err
	}
	for i, key := range order {
		if err := setRow(wb, i+2, t.RenderRow(key)); err != nil {
			return err
		}
	}
	return wb.SaveAs(path)
}

func setRow(wb *excelize.File, row int, cells []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	values := make([]any, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	return wb.SetSheetRow(sheetName, cell, &values)
}
