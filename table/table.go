// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package table implements the generic tabular result returned by the data
// service: an ordered list of column names and rows of loosely typed values.
package table

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/stockparfait/errors"
)

// Value of a single table cell. Decoded values are one of nil, string, bool,
// int64, float64, or nested []interface{} / map[string]interface{}.
type Value = interface{}

// Row of values, in the order of the Table header.
type Row []Value

// FormatValue prints a cell value for CSV or text output.
func FormatValue(v Value) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	}
	return fmt.Sprintf("%v", v)
}

// CSV is an encoding/csv compatible row representation.
func (r Row) CSV() []string {
	res := make([]string, len(r))
	for i, v := range r {
		res[i] = FormatValue(v)
	}
	return res
}

// Table container.
//
// A typical use:
//   t := NewTable("secu_code", "secu_abbr")
//   t.AddRow(Row{"600570", "HS"}, Row{"600000", "PF"})
//   v, ok := t.Value(0, "secu_code") // "600570", true
//
// A Table is safe for concurrent reads once it is fully built.
type Table struct {
	Header []string // optional, may be nil
	Rows   []Row
	index  map[string]int // column name -> position in Header; built on write
}

// NewTable creates a new Table instance with optional column headers. It is
// expected that, when present, the number of column headers is the same as the
// number of elements in each Row.
func NewTable(header ...string) *Table {
	t := &Table{}
	for _, h := range header {
		t.addColumn(h)
	}
	return t
}

func (t *Table) addColumn(name string) {
	if t.index == nil {
		t.index = make(map[string]int)
	}
	if _, ok := t.index[name]; !ok {
		t.index[name] = len(t.Header)
	}
	t.Header = append(t.Header, name)
}

// AddRow adds one or more rows to the table.
func (t *Table) AddRow(rows ...Row) {
	t.Rows = append(t.Rows, rows...)
}

// Len is the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Column returns the position of the named column in the header.
// It never modifies the table.
func (t *Table) Column(name string) (int, bool) {
	if i, ok := t.index[name]; ok && i < len(t.Header) && t.Header[i] == name {
		return i, true
	}
	// Header was set or changed directly.
	for i, h := range t.Header {
		if h == name {
			return i, true
		}
	}
	return 0, false
}

// Value of the named column in the i-th row. A row shorter than the header
// has nil values in the missing columns.
func (t *Table) Value(i int, column string) (Value, bool) {
	if i < 0 || i >= len(t.Rows) {
		return nil, false
	}
	j, ok := t.Column(column)
	if !ok {
		return nil, false
	}
	if j >= len(t.Rows[i]) {
		return nil, true
	}
	return t.Rows[i][j], true
}

// Records converts the rows to a list of column name -> value maps.
func (t *Table) Records() []map[string]Value {
	res := make([]map[string]Value, len(t.Rows))
	for i, r := range t.Rows {
		m := make(map[string]Value, len(t.Header))
		for j, h := range t.Header {
			if j < len(r) {
				m[h] = r[j]
			} else {
				m[h] = nil
			}
		}
		res[i] = m
	}
	return res
}

// cells formats a row for output, padding it to the header width.
func (t *Table) cells(r Row) []string {
	res := r.CSV()
	for len(res) < len(t.Header) {
		res = append(res, "")
	}
	return res
}

// Params are parameters for pretty-printing or CSV export of Table data.
type Params struct {
	Rows        int  // max. number of rows to write; 0 = unlimited (default)
	NoHeader    bool // whether to print the header, default - yes
	MaxColWidth int  // for WriteText only; 0 = unlimited, otherwise must be >= 4
}

// WriteCSV writes the entire table to w in CSV format.
func (t *Table) WriteCSV(w io.Writer, p Params) error {
	cw := csv.NewWriter(w)
	if !p.NoHeader && len(t.Header) > 0 {
		if err := cw.Write(t.Header); err != nil {
			return errors.Annotate(err, "failed to write header")
		}
	}
	for i, r := range t.Rows {
		if p.Rows > 0 && i >= p.Rows {
			break
		}
		if err := cw.Write(t.cells(r)); err != nil {
			return errors.Annotate(err, "failed to write row %d", i)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Annotate(err, "failed to flush written rows")
	}
	return nil
}

// WriteText writes the table as a text formatted for ease of reading. Column
// widths are measured in runes.
func (t *Table) WriteText(w io.Writer, p Params) error {
	if p.MaxColWidth != 0 && p.MaxColWidth < 4 {
		return errors.Reason("MaxColWidth [%d] must be 0 or >= 4", p.MaxColWidth)
	}
	var widths []int
	update := func(row []string) error {
		if len(row) == 0 {
			return errors.Reason("row size = 0")
		}
		if len(widths) == 0 {
			widths = make([]int, len(row))
		}
		if len(row) != len(widths) {
			return errors.Reason("row size [%d] != expected size [%d]",
				len(row), len(widths))
		}
		for i := range widths {
			if n := len([]rune(row[i])); widths[i] < n {
				widths[i] = n
				if p.MaxColWidth > 0 && widths[i] > p.MaxColWidth {
					widths[i] = p.MaxColWidth
				}
			}
		}
		return nil
	}

	write := func(row []string) error {
		padded := make([]string, len(row))
		for i, s := range row {
			r := []rune(s)
			if len(r) > widths[i] {
				r = append(r[:widths[i]-2], '.', '.')
			}
			padded[i] = strings.Repeat(" ", widths[i]-len(r)) + string(r)
		}
		_, err := fmt.Fprintf(w, "%s\n", strings.Join(padded, " | "))
		return err
	}

	dashedRow := func() []string {
		row := make([]string, len(widths))
		for i, w := range widths {
			row[i] = strings.Repeat("-", w)
		}
		return row
	}

	header := !p.NoHeader && len(t.Header) > 0
	if header {
		if err := update(t.Header); err != nil {
			return errors.Annotate(err, "failed to update header widths")
		}
	}
	for i, r := range t.Rows {
		if p.Rows > 0 && i >= p.Rows {
			break
		}
		if err := update(t.cells(r)); err != nil {
			return errors.Annotate(err, "failed to update row widths")
		}
	}

	if header {
		if err := write(t.Header); err != nil {
			return errors.Annotate(err, "failed to write header")
		}
		if err := write(dashedRow()); err != nil {
			return errors.Annotate(err, "failed to write header separator")
		}
	}
	for i, r := range t.Rows {
		if p.Rows > 0 && i >= p.Rows {
			break
		}
		if err := write(t.cells(r)); err != nil {
			return errors.Annotate(err, "failed to write row")
		}
	}
	return nil
}
