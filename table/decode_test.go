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
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDecodeRecords(t *testing.T) {
	t.Parallel()

	Convey("DecodeRecords", t, func() {
		Convey("preserves column order and lower-cases names", func() {
			tbl, err := DecodeRecords([]byte(`[
				{"SECU_CODE": "600570", "SECU_ABBR": "恒生电子", "Close": 31.5},
				{"SECU_ABBR": "浦发银行", "SECU_CODE": "600000", "VOLUME": 100}]`),
				DecodeOptions{LowerCase: true})
			So(err, ShouldBeNil)
			So(tbl.Header, ShouldResemble, []string{"secu_code", "secu_abbr", "close", "volume"})
			So(tbl.Rows, ShouldResemble, []Row{
				{"600570", "恒生电子", 31.5, nil},
				{"600000", "浦发银行", nil, 100.0},
			})
		})

		Convey("keeps names when not lower-casing", func() {
			tbl, err := DecodeRecords([]byte(`[{"SECU_CODE": "600570"}]`), DecodeOptions{})
			So(err, ShouldBeNil)
			So(tbl.Header, ShouldResemble, []string{"SECU_CODE"})
		})

		Convey("absent data is zero rows", func() {
			for _, s := range []string{``, `null`, `[]`, `{}`, " \n"} {
				tbl, err := DecodeRecords([]byte(s), DecodeOptions{LowerCase: true})
				So(err, ShouldBeNil)
				So(tbl, ShouldNotBeNil)
				So(tbl.Len(), ShouldEqual, 0)
			}
		})

		Convey("a single object is one row", func() {
			tbl, err := DecodeRecords([]byte(`{"A": 1, "B": "x"}`), DecodeOptions{LowerCase: true})
			So(err, ShouldBeNil)
			So(tbl.Header, ShouldResemble, []string{"a", "b"})
			So(tbl.Rows, ShouldResemble, []Row{{1.0, "x"}})
		})

		Convey("coerces int and float columns", func() {
			tbl, err := DecodeRecords([]byte(`[
				{"VOL": "1200", "PRICE": "10.25", "N": 3, "OTHER": "7"},
				{"VOL": 1300, "PRICE": 11, "N": "4.0", "OTHER": null},
				{"VOL": null, "PRICE": "", "N": 12345678901234, "OTHER": [1, {"x": 2}]}]`),
				DecodeOptions{LowerCase: true, Int: []string{"VOL", "n"}, Float: []string{"price"}})
			So(err, ShouldBeNil)
			So(tbl.Rows, ShouldResemble, []Row{
				{int64(1200), 10.25, int64(3), "7"},
				{int64(1300), 11.0, int64(4), nil},
				{nil, nil, int64(12345678901234), []interface{}{1.0, map[string]interface{}{"x": 2.0}}},
			})
		})

		Convey("rejects values that cannot be coerced", func() {
			_, err := DecodeRecords([]byte(`[{"vol": "abc"}]`), DecodeOptions{Int: []string{"vol"}})
			So(err, ShouldNotBeNil)
			_, err = DecodeRecords([]byte(`[{"vol": 1.5}]`), DecodeOptions{Int: []string{"vol"}})
			So(err, ShouldNotBeNil)
			_, err = DecodeRecords([]byte(`[{"p": [1]}]`), DecodeOptions{Float: []string{"p"}})
			So(err, ShouldNotBeNil)
		})

		Convey("rejects malformed data", func() {
			_, err := DecodeRecords([]byte(`"text"`), DecodeOptions{})
			So(err, ShouldNotBeNil)
			_, err = DecodeRecords([]byte(`[1, 2]`), DecodeOptions{})
			So(err, ShouldNotBeNil)
			_, err = DecodeRecords([]byte(`[{"a": 1}`), DecodeOptions{})
			So(err, ShouldNotBeNil)
		})
	})
}
