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

// Package datafeed queries historical futures bars from the data service.
package datafeed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"

	"github.com/stockparfait/datafeed/table"
	"github.com/stockparfait/datafeed/udata"
)

// Gateway is the name recorded in every Bar.
const Gateway = "UDATA"

// MinuteMethod is the service method returning minute bars of a future.
const MinuteMethod = "fut_quote_minute"

// ChinaTZ is the time zone of the bar timestamps. Shanghai has had no DST
// since 1991.
var ChinaTZ = time.FixedZone("CST", 8*60*60)

// Exchange is a futures exchange.
type Exchange string

// Supported exchanges.
const (
	CFFEX = Exchange("CFFEX")
	SHFE  = Exchange("SHFE")
	DCE   = Exchange("DCE")
	CZCE  = Exchange("CZCE")
	INE   = Exchange("INE")
)

var exchangeCodes = map[Exchange]string{
	CFFEX: "CFE",
	SHFE:  "SHF",
	DCE:   "DCE",
	CZCE:  "CZC",
	INE:   "INE",
}

// Code of the exchange used by the service, and whether it is supported.
func (e Exchange) Code() (string, bool) {
	c, ok := exchangeCodes[e]
	return c, ok
}

// Interval of the requested bars. The service returns minute bars; the
// interval is carried into the bars as requested.
type Interval string

// Values of Interval.
const (
	Minute = Interval("1m")
	Hour   = Interval("1h")
	Daily  = Interval("d")
)

// Symbol converts a contract symbol into the service's SYMBOL.EXG form.
func Symbol(symbol string, e Exchange) (string, error) {
	code, ok := e.Code()
	if !ok {
		return "", udata.NewInvalidArgument("unsupported exchange '%s'", e)
	}
	return strings.ToUpper(symbol) + "." + code, nil
}

// Request for historical bars.
type Request struct {
	Symbol   string
	Exchange Exchange
	Interval Interval // default: Minute
	Start    time.Time
	End      time.Time
}

// Validate the request.
func (r Request) Validate() error {
	if r.Symbol == "" {
		return udata.NewInvalidArgument("symbol is required")
	}
	if _, err := Symbol(r.Symbol, r.Exchange); err != nil {
		return err
	}
	if r.Start.IsZero() || r.End.IsZero() {
		return udata.NewInvalidArgument("start and end dates are required")
	}
	if r.Start.After(r.End) {
		return udata.NewInvalidArgument("start %s is after end %s",
			r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
	}
	return nil
}

// Bar is a single price bar.
type Bar struct {
	Symbol       string
	Exchange     Exchange
	Interval     Interval
	Time         time.Time // in ChinaTZ
	Open         float64
	High         float64
	Low          float64
	Close        float64
	Volume       float64
	Turnover     float64
	OpenInterest float64
	Gateway      string
}

var floatColumns = []string{
	"open", "high", "low", "close", "turnover_volume", "turnover_value", "amount",
}

// Bars queries the bars of the requested contract between the Start and End
// dates inclusive, using the client in the context or the default one.
func Bars(ctx context.Context, req Request) ([]Bar, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Interval == "" {
		req.Interval = Minute
	}
	symbol, _ := Symbol(req.Symbol, req.Exchange)
	tbl, err := udata.GetData(ctx, MinuteMethod, udata.Params{
		"en_prod_code":      symbol,
		"begin_date":        req.Start.Format("2006-01-02"),
		"end_date":          req.End.Format("2006-01-02"),
		udata.IntParamKey:   []string{"time"},
		udata.FloatParamKey: floatColumns,
	})
	if err != nil {
		return nil, err
	}
	bars := make([]Bar, 0, tbl.Len())
	for i := 0; i < tbl.Len(); i++ {
		b, err := parseBar(tbl, i, req)
		if err != nil {
			logging.Warningf(ctx, "%s: bad bar in row %d: %s", symbol, i, err.Error())
			return nil, &udata.Error{Kind: udata.RequestFailed,
				Msg: fmt.Sprintf("bad bar for %s in row %d", symbol, i)}
		}
		bars = append(bars, b)
	}
	return bars, nil
}

// barTime combines the date (YYYY-MM-DD or YYYYMMDD) with the time of day as HHMM, which
// may lack leading zeros.
func barTime(date, hhmm table.Value) (time.Time, error) {
	d, ok := date.(string)
	if !ok || d == "" {
		return time.Time{}, errors.Reason("missing date")
	}
	var hm string
	switch v := hhmm.(type) {
	case int64:
		hm = fmt.Sprintf("%04d", v)
	case string:
		hm = v
		if len(hm) < 4 {
			hm = strings.Repeat("0", 4-len(hm)) + hm
		}
	default:
		return time.Time{}, errors.Reason("missing time")
	}
	for _, layout := range []string{"2006-01-02 1504", "20060102 1504"} {
		if t, err := time.ParseInLocation(layout, d+" "+hm, ChinaTZ); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Reason("invalid date and time '%s %s'", d, hm)
}

func parseBar(tbl *table.Table, i int, req Request) (Bar, error) {
	value := func(col string) table.Value {
		v, _ := tbl.Value(i, col)
		return v
	}
	number := func(col string) float64 {
		f, _ := value(col).(float64)
		return f
	}
	t, err := barTime(value("date"), value("time"))
	if err != nil {
		return Bar{}, err
	}
	return Bar{
		Symbol:       req.Symbol,
		Exchange:     req.Exchange,
		Interval:     req.Interval,
		Time:         t,
		Open:         number("open"),
		High:         number("high"),
		Low:          number("low"),
		Close:        number("close"),
		Volume:       number("turnover_volume"),
		Turnover:     number("turnover_value"),
		OpenInterest: number("amount"),
		Gateway:      Gateway,
	}, nil
}
