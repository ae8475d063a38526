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

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"

	"github.com/stockparfait/datafeed/table"
	"github.com/stockparfait/datafeed/udata"
)

// paramsFlag collects repeated -param key=value flags. A repeated key becomes
// a list.
type paramsFlag udata.Params

func (p paramsFlag) String() string {
	var parts []string
	for k, v := range p {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(parts, ",")
}

func (p paramsFlag) Set(s string) error {
	kv := strings.SplitN(s, "=", 2)
	if len(kv) != 2 || kv[0] == "" {
		return errors.Reason("expected key=value, got '%s'", s)
	}
	k, v := kv[0], kv[1]
	switch prev := p[k].(type) {
	case nil:
		p[k] = v
	case string:
		p[k] = []string{prev, v}
	case []string:
		p[k] = append(prev, v)
	}
	return nil
}

func splitList(s string) []string {
	var res []string
	for _, e := range strings.Split(s, ",") {
		if e = strings.TrimSpace(e); e != "" {
			res = append(res, e)
		}
	}
	return res
}

type Flags struct {
	ConfigDir string // default: ~/.udata
	LogLevel  logging.Level
	Token     string // license token; default: stored
	URL       string // service URL; default: stored
	PoolSize  int    // 0 means stored
	Path      string // url_path of the methods
	Methods   []string
	Params    udata.Params
	Int       []string // columns typed as integers
	Float     []string // columns typed as floats
	Post      bool
	CSV       bool // dump CSV format; default: text.
	Rows      int  // max. rows to print; 0 means all
}

func parseFlags(args []string) (*Flags, error) {
	var flags Flags
	var methods, ints, floats string
	flags.Params = make(udata.Params)
	// Errors are returned rather than exiting, main exits on them.
	fs := flag.NewFlagSet("udata-query", flag.ContinueOnError)
	fs.StringVar(&flags.ConfigDir, "config", udata.DefaultDir(),
		"directory with config.toml and credentials.env")
	flags.LogLevel = logging.Info
	fs.Var(&flags.LogLevel, "log-level", "Log level: debug, info, warning, error")
	fs.StringVar(&flags.Token, "token", "", "license token; saved for later runs")
	fs.StringVar(&flags.URL, "url", "", "service URL; saved for later runs")
	fs.IntVar(&flags.PoolSize, "pool-size", 0, "max. concurrent requests, (0, 100]")
	fs.StringVar(&flags.Path, "path", "", "URL path of the methods, e.g. basic_data")
	fs.StringVar(&methods, "method", "", "comma-separated methods to call (required)")
	fs.Var(paramsFlag(flags.Params), "param", "request parameter key=value (repeated)")
	fs.StringVar(&ints, "int", "", "comma-separated columns to type as integers")
	fs.StringVar(&floats, "float", "", "comma-separated columns to type as floats")
	fs.BoolVar(&flags.Post, "post", false, "use POST instead of GET")
	fs.BoolVar(&flags.CSV, "csv", false, "print tables in CSV format; default: text")
	fs.IntVar(&flags.Rows, "rows", 0, "max. number of rows to print; default: all")

	err := fs.Parse(args)
	if err != nil {
		return nil, err
	}
	flags.Methods = splitList(methods)
	flags.Int = splitList(ints)
	flags.Float = splitList(floats)
	if len(flags.Methods) == 0 {
		return nil, errors.Reason("missing required -method argument")
	}
	if flags.Rows < 0 {
		return nil, errors.Reason("-rows must be non-negative")
	}
	return &flags, nil
}

func requests(flags *Flags) []udata.Request {
	var reqs []udata.Request
	for _, m := range flags.Methods {
		p := flags.Params.Copy()
		p[udata.URLPathKey] = flags.Path
		p[udata.IntParamKey] = flags.Int
		p[udata.FloatParamKey] = flags.Float
		if flags.Post {
			p[udata.HTTPMethodKey] = "POST"
		}
		reqs = append(reqs, udata.Request{Method: m, Params: p})
	}
	return reqs
}

func printTable(w io.Writer, tbl *table.Table, flags *Flags) error {
	p := table.Params{Rows: flags.Rows}
	if flags.CSV {
		if err := tbl.WriteCSV(w, p); err != nil {
			return errors.Annotate(err, "failed to print CSV")
		}
		return nil
	}
	if err := tbl.WriteText(w, p); err != nil {
		return errors.Annotate(err, "failed to print text")
	}
	return nil
}

func query(ctx context.Context, flags *Flags, w io.Writer) error {
	client := udata.NewFileClient(flags.ConfigDir)
	defer client.Close()

	var opts []udata.Option
	if flags.URL != "" {
		opts = append(opts, udata.WithURL(flags.URL))
	}
	if flags.PoolSize != 0 {
		opts = append(opts, udata.WithPoolSize(flags.PoolSize))
	}
	if err := client.Init(ctx, "", flags.Token, opts...); err != nil {
		return errors.Annotate(err, "failed to initialize the client")
	}
	tables, err := client.SendAll(ctx, requests(flags))
	if err != nil {
		return err
	}
	for i, tbl := range tables {
		if len(tables) > 1 {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "# %s: %d rows\n", flags.Methods[i], tbl.Len())
		}
		if err := printTable(w, tbl, flags); err != nil {
			return errors.Annotate(err, "failed to print %s", flags.Methods[i])
		}
	}
	return nil
}

func main() {
	ctx := context.Background()
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		ctx = logging.Use(ctx, logging.DefaultGoLogger(logging.Info))
		logging.Errorf(ctx, "failed to parse flags: %s", err.Error())
		os.Exit(1)
	}
	ctx = logging.Use(ctx, logging.DefaultGoLogger(flags.LogLevel))

	if err := query(ctx, flags, os.Stdout); err != nil {
		logging.Errorf(ctx, "%s", err.Error())
		os.Exit(1)
	}
}
