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

// Package market provides typed accessors for the market data methods of the
// data service.
package market

import (
	"context"
	"time"

	"github.com/stockparfait/datafeed/table"
	"github.com/stockparfait/datafeed/udata"
)

// DateFormat of the dates sent to the service.
const DateFormat = "20060102"

// DefaultSecuMarket is the Shanghai stock exchange.
const DefaultSecuMarket = "83"

var dateLayouts = []string{DateFormat, "2006-01-02", "2006/01/02", time.RFC3339}

// now is replaced in tests.
var now = time.Now

// NormalizeDate converts a time.Time or a date string in one of the formats
// YYYYMMDD, YYYY-MM-DD, YYYY/MM/DD or RFC 3339 into YYYYMMDD.
func NormalizeDate(v interface{}) (string, error) {
	switch d := v.(type) {
	case time.Time:
		return d.Format(DateFormat), nil
	case *time.Time:
		if d != nil {
			return d.Format(DateFormat), nil
		}
	case string:
		for _, l := range dateLayouts {
			if t, err := time.Parse(l, d); err == nil {
				return t.Format(DateFormat), nil
			}
		}
		return "", udata.NewInvalidArgument("invalid date '%s'", d)
	}
	return "", udata.NewInvalidArgument("unsupported date value %v of type %T", v, v)
}

// Fields converts a field selection into a list: nil is empty, a string is a
// single field.
func Fields(v interface{}) ([]string, error) {
	switch f := v.(type) {
	case nil:
		return []string{}, nil
	case string:
		return []string{f}, nil
	case []string:
		return f, nil
	}
	return nil, udata.NewInvalidArgument(
		"unsupported fields value %v of type %T: expected nil, string or []string", v, v)
}

// StockListArgs are the arguments of StockList.
type StockListArgs struct {
	Fields interface{} // nil, string or []string
}

// Validate the arguments.
func (a StockListArgs) Validate() error {
	_, err := Fields(a.Fields)
	return err
}

// StockList lists the securities: method stock_list of basic_data.
func StockList(ctx context.Context, args StockListArgs) (*table.Table, error) {
	fields, err := Fields(args.Fields)
	if err != nil {
		return nil, err
	}
	return udata.GetData(ctx, "stock_list", udata.Params{
		udata.URLPathKey:    "basic_data",
		"fields":            fields,
		udata.IntParamKey:   []string{},
		udata.FloatParamKey: []string{},
	})
}

// TradingCalendarArgs are the arguments of TradingCalendar. Empty strings and
// nil dates take the defaults.
type TradingCalendarArgs struct {
	SecuMarket   string // default "83"
	IfTradingDay string
	IfWeekEnd    string
	IfMonthEnd   string
	StartDate    interface{} // time.Time or date string; default one year ago
	EndDate      interface{} // time.Time or date string; default today
}

func (a TradingCalendarArgs) dates() (start, end string, err error) {
	t := now()
	start = t.AddDate(-1, 0, 0).Format(DateFormat)
	end = t.Format(DateFormat)
	if a.StartDate != nil {
		if start, err = NormalizeDate(a.StartDate); err != nil {
			return
		}
	}
	if a.EndDate != nil {
		if end, err = NormalizeDate(a.EndDate); err != nil {
			return
		}
	}
	if start > end {
		err = udata.NewInvalidArgument("start date %s is after end date %s", start, end)
	}
	return
}

// Validate the arguments.
func (a TradingCalendarArgs) Validate() error {
	_, _, err := a.dates()
	return err
}

// optional returns nil for an empty string so it is not sent.
func optional(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// TradingCalendar lists the trading calendar: method trading_calendar1.
func TradingCalendar(ctx context.Context, args TradingCalendarArgs) (*table.Table, error) {
	start, end, err := args.dates()
	if err != nil {
		return nil, err
	}
	market := args.SecuMarket
	if market == "" {
		market = DefaultSecuMarket
	}
	return udata.GetData(ctx, "trading_calendar1", udata.Params{
		"secu_market":       market,
		"if_trading_day":    optional(args.IfTradingDay),
		"if_week_end":       optional(args.IfWeekEnd),
		"if_month_end":      optional(args.IfMonthEnd),
		"start_date":        start,
		"end_date":          end,
		udata.IntParamKey:   []string{},
		udata.FloatParamKey: []string{},
	})
}
