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

package table

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/stockparfait/errors"
)

// DecodeOptions control how DecodeRecords shapes the table.
type DecodeOptions struct {
	LowerCase bool     // lower-case all column names
	Int       []string // columns to coerce to int64
	Float     []string // columns to coerce to float64
}

// field is a single key/value pair of a JSON object, in the wire order.
type field struct {
	name  string
	value interface{}
}

// DecodeRecords converts a JSON array of objects into a Table. The header lists
// the columns in the order of their first appearance. Absent data (empty input,
// null or an empty array) yields a table with zero rows. A single JSON object
// is treated as a one-row array.
//
// Numbers not covered by opts.Int are float64, as in encoding/json.
func DecodeRecords(data []byte, opts DecodeOptions) (*Table, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return NewTable(), nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var records [][]field
	switch data[0] {
	case '[':
		if _, err := dec.Token(); err != nil {
			return nil, errors.Annotate(err, "failed to read array start")
		}
		for dec.More() {
			r, err := decodeObject(dec)
			if err != nil {
				return nil, errors.Annotate(err, "failed to decode record %d", len(records))
			}
			records = append(records, r)
		}
		if _, err := dec.Token(); err != nil {
			return nil, errors.Annotate(err, "failed to read array end")
		}
	case '{':
		r, err := decodeObject(dec)
		if err != nil {
			return nil, errors.Annotate(err, "failed to decode record")
		}
		if len(r) > 0 {
			records = append(records, r)
		}
	default:
		return nil, errors.Reason("expected a JSON array of objects, got: %.40s", string(data))
	}
	return buildTable(records, opts)
}

func decodeObject(dec *json.Decoder) ([]field, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, errors.Annotate(err, "failed to read object start")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.Reason("expected an object, got %v", tok)
	}
	var res []field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.Annotate(err, "failed to read key")
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.Reason("object key is not a string: %v", tok)
		}
		var v interface{}
		if err := dec.Decode(&v); err != nil {
			return nil, errors.Annotate(err, "failed to decode value of '%s'", key)
		}
		res = append(res, field{name: key, value: v})
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, errors.Annotate(err, "failed to read object end")
	}
	return res, nil
}

func buildTable(records [][]field, opts DecodeOptions) (*Table, error) {
	name := func(s string) string {
		if opts.LowerCase {
			return strings.ToLower(s)
		}
		return s
	}
	kinds := make(map[string]byte)
	for _, c := range opts.Float {
		kinds[name(c)] = 'f'
	}
	for _, c := range opts.Int {
		kinds[name(c)] = 'i'
	}

	t := NewTable()
	for _, r := range records {
		for _, f := range r {
			n := name(f.name)
			if _, ok := t.Column(n); !ok {
				t.addColumn(n)
			}
		}
	}
	for i, r := range records {
		row := make(Row, len(t.Header))
		for _, f := range r {
			n := name(f.name)
			j, _ := t.Column(n)
			var err error
			switch kinds[n] {
			case 'i':
				row[j], err = toInt(f.value)
			case 'f':
				row[j], err = toFloat(f.value)
			default:
				row[j] = normalize(f.value)
			}
			if err != nil {
				return nil, errors.Annotate(err, "row %d, column '%s'", i, n)
			}
		}
		t.AddRow(row)
	}
	return t, nil
}

// normalize replaces json.Number with float64, recursively.
func normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return x.String()
		}
		return f
	case []interface{}:
		for i := range x {
			x[i] = normalize(x[i])
		}
	case map[string]interface{}:
		for k := range x {
			x[k] = normalize(x[k])
		}
	}
	return v
}

func parseNumber(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, errors.Reason("not a number: '%s'", s)
	}
	return f, nil
}

func toFloat(v interface{}) (Value, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case json.Number:
		return parseNumber(x.String())
	case string:
		if strings.TrimSpace(x) == "" {
			return nil, nil
		}
		return parseNumber(x)
	case bool:
		if x {
			return 1.0, nil
		}
		return 0.0, nil
	}
	return nil, errors.Reason("cannot convert %v to float", v)
}

func toInt(v interface{}) (Value, error) {
	var s string
	switch x := v.(type) {
	case nil:
		return nil, nil
	case json.Number:
		s = x.String()
	case string:
		s = strings.TrimSpace(x)
		if s == "" {
			return nil, nil
		}
	case bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	default:
		return nil, errors.Reason("cannot convert %v to int", v)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := parseNumber(s)
	if err != nil {
		return nil, err
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt64 {
		return nil, errors.Reason("not an integer: '%s'", s)
	}
	return int64(f), nil
}
