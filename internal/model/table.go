package model

import (
	"log/slog"
	"slices"
)

// FailureSentinel is what a failed cell renders to. Failed cells are always
// present so consumers can compute failure rates without special-casing
// missing rows.
const FailureSentinel = ""

// Table is the keyed result table: one row per input key, one column group
// per merged service. Cells are written at most once and never lost; merging
// is associative, so the order services are merged in does not matter.
type Table struct {
	keys     []Key
	rows     map[Key]map[string]Outcome
	services []string
	schema   map[string][]string // service -> column names
}

// NewTable creates a table with exactly one empty row per key. Keys must be
// unique, deduplication is the caller's concern.
func NewTable(keys []Key) *Table {
	t := &Table{
		keys:   slices.Clone(keys),
		rows:   make(map[Key]map[string]Outcome, len(keys)),
		schema: make(map[string][]string),
	}
	for _, k := range keys {
		t.rows[k] = make(map[string]Outcome)
	}
	return t
}

// Merge folds one service's outcome map into the table. Outcomes for keys the
// table does not know are dropped. A cell already written stays as it is:
// re-merging the same map is a no-op, a conflicting write is ignored and
// logged.
func (t *Table) Merge(service string, outcomes map[Key]Outcome) {
	if !slices.Contains(t.services, service) {
		t.services = append(t.services, service)
	}
	for key, out := range outcomes {
		row, ok := t.rows[key]
		if !ok {
			slog.Warn("merge: dropping outcome for unknown key", "service", service, "key", string(key))
			continue
		}
		if prev, written := row[service]; written {
			if !prev.Equal(out) {
				slog.Warn("merge: conflicting outcome ignored", "service", service, "key", string(key))
			}
			continue
		}
		row[service] = out
		if _, ok := t.schema[service]; !ok && out.OK() {
			names := make([]string, 0, 4)
			for _, c := range out.Value.Columns() {
				names = append(names, c.Name)
			}
			t.schema[service] = names
		}
	}
}

// Keys returns input keys in their original order.
func (t *Table) Keys() []Key {
	return slices.Clone(t.keys)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.keys)
}

// Services returns merged service names sorted, so the column layout does not
// depend on merge order.
func (t *Table) Services() []string {
	s := slices.Clone(t.services)
	slices.Sort(s)
	return s
}

// Outcome returns the cell for (key, service) and whether it was written.
func (t *Table) Outcome(key Key, service string) (Outcome, bool) {
	row, ok := t.rows[key]
	if !ok {
		return Outcome{}, false
	}
	out, ok := row[service]
	return out, ok
}

// ColumnNames returns the column group of a service. For a service where
// every call failed the group collapses to the service name itself, so the
// failures stay visible.
func (t *Table) ColumnNames(service string) []string {
	if names, ok := t.schema[service]; ok {
		return slices.Clone(names)
	}
	return []string{service}
}

// Header returns the full header row: key column followed by every merged
// service's column group.
func (t *Table) Header() []string {
	header := []string{"peptide"}
	for _, service := range t.Services() {
		header = append(header, t.ColumnNames(service)...)
	}
	return header
}

// RenderRow returns the rendered cells for one key in Header order. Failed
// or missing cells render as the failure sentinel.
func (t *Table) RenderRow(key Key) []string {
	cells := []string{string(key)}
	for _, service := range t.Services() {
		names := t.ColumnNames(service)
		out, ok := t.Outcome(key, service)
		if !ok || !out.OK() {
			for range names {
				cells = append(cells, FailureSentinel)
			}
			continue
		}
		cols := out.Value.Columns()
		for i := range names {
			if i < len(cols) {
				cells = append(cells, cols[i].Value)
			} else {
				cells = append(cells, FailureSentinel)
			}
		}
	}
	return cells
}

// FailureCount returns how many cells of a service are failures.
func (t *Table) FailureCount(service string) int {
	var n int
	for _, k := range t.keys {
		if out, ok := t.rows[k][service]; !ok || !out.OK() {
			n++
		}
	}
	return n
}
