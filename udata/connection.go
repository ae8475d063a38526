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

package udata

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/stockparfait/logging"

	"github.com/stockparfait/datafeed/table"
)

// Wire field names.
const (
	fieldErrorCode = "error_code"
	fieldResultMsg = "result_msg"
	fieldErrorNo   = "error_no"
	fieldErrorInfo = "error_info"
	fieldData      = "data"
)

// Connection is a single logical connection to the data service. It must not
// be used by more than one goroutine at a time; ConnectionPool guarantees that.
type Connection struct {
	url        string
	token      string
	timeout    time.Duration
	compressor string
	client     *http.Client
	owned      bool // client was created by this connection

	mu    sync.Mutex
	state ConnectionState
}

// NewConnection creates a connection from the configuration. When client is
// nil, the connection gets its own HTTP client, released on Close.
func NewConnection(cfg Config, client *http.Client) (*Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Connection{
		url:        strings.TrimSuffix(cfg.URL, "/"),
		token:      cfg.Auth.Password,
		timeout:    cfg.RequestTimeout,
		compressor: cfg.Compressor,
		client:     client,
		state:      Connecting,
	}
	if c.client == nil {
		c.client = &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()}
		c.owned = true
	}
	c.state = Connected
	return c, nil
}

// State of the connection.
func (c *Connection) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Check that the connection can send requests.
func (c *Connection) Check() bool {
	return c.State().Usable()
}

// Close the connection. It is safe to call Close multiple times.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Disconnected {
		return nil
	}
	if c.owned {
		c.client.CloseIdleConnections()
	}
	c.state = Disconnected
	return nil
}

// Endpoint is the URL of the method: {url}/{url_path}/{method}.
func (c *Connection) Endpoint(method string, p Params) string {
	return c.url + "/" + p.URLPath() + "/" + method
}

func (c *Connection) newRequest(ctx context.Context, method string, p Params) (*http.Request, error) {
	uri := c.Endpoint(method, p) + "?" + p.Values().Encode()
	req, err := http.NewRequestWithContext(ctx, p.HTTPMethod(), uri, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Application-Token", c.token)
	if c.compressor == CompressorGzip {
		req.Header.Set("Accept-Encoding", "gzip")
	}
	return req, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return true
	}
	return err == context.DeadlineExceeded || ctx.Err() == context.DeadlineExceeded
}

func (c *Connection) readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	}
	return io.ReadAll(r)
}

// Send issues a single request and classifies the response. It fails with
// ConnectionClosed on a closed connection and with RequestTimeout when the
// request does not complete within the request timeout.
func (c *Connection) Send(ctx context.Context, method string, p Params) (*table.Table, error) {
	if !c.Check() {
		logging.Warningf(ctx, "%s: connection is closed", method)
		return nil, newError(ConnectionClosed, "connection is closed, cannot fetch data")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.newRequest(ctx, method, p)
	if err != nil {
		logging.Warningf(ctx, "%s: failed to create request: %s", method, err.Error())
		return nil, newError(ConfigurationError, "failed to create request for %s: %s",
			method, err.Error())
	}
	logging.Debugf(ctx, "%s %s", req.Method, c.Endpoint(method, p))
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, transportError(ctx, method, err)
	}
	defer resp.Body.Close()

	body, err := c.readBody(resp)
	if err != nil {
		return nil, transportError(ctx, method, err)
	}
	return classify(ctx, method, p, resp.StatusCode, body)
}

func transportError(ctx context.Context, method string, err error) error {
	if isTimeout(ctx, err) {
		logging.Warningf(ctx, "%s: request timed out: %s", method, err.Error())
		return newError(RequestTimeout, "request %s timed out: %s", method, err.Error())
	}
	logging.Warningf(ctx, "%s: transport failure: %s", method, err.Error())
	return newError(Unclassified, "request %s failed: %s", method, err.Error())
}

// classify converts the HTTP response into a table or a classified error.
func classify(ctx context.Context, method string, p Params, status int, body []byte) (*table.Table, error) {
	switch {
	case status == http.StatusOK:
		return decodeSuccess(ctx, method, p, body)
	case status >= 400 && status < 500:
		return nil, gatewayError(ctx, body)
	case status >= 500 && status <= 600:
		logging.Warningf(ctx, "service failure, status %d: %s", status, string(body))
		return nil, newError(ServerFailed, "%s", string(body))
	}
	logging.Warningf(ctx, "unexpected response, status %d: %s", status, string(body))
	return nil, newError(Unclassified, "%s", string(body))
}

// parseCode reads an integer code which may be sent as a number or a string.
func parseCode(raw json.RawMessage) (int, bool) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	n, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0, false
		}
		n = int(f)
	}
	return n, true
}

func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// emptyData reports whether the data field carries no rows: absent, null, or
// any other false-like scalar ("", false, 0).
func emptyData(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == '[' || raw[0] == '{' {
		return len(raw) == 0
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case float64:
		return x == 0
	}
	return false
}

func decodeSuccess(ctx context.Context, method string, p Params, body []byte) (*table.Table, error) {
	var rsp map[string]json.RawMessage
	if err := json.Unmarshal(body, &rsp); err != nil {
		logging.Warningf(ctx, "%s: malformed response: %s", method, err.Error())
		return nil, newError(RequestFailed, "malformed response from %s: %s", method, err.Error())
	}
	rawCode, ok := rsp[fieldErrorCode]
	if !ok {
		logging.Warningf(ctx, "%s: response has no %s: %s", method, fieldErrorCode, string(body))
		return nil, newError(RequestFailed, "response from %s has no %s", method, fieldErrorCode)
	}
	code, ok := parseCode(rawCode)
	if !ok {
		logging.Warningf(ctx, "%s: invalid %s: %s", method, fieldErrorCode, string(rawCode))
		return nil, newError(RequestFailed, "invalid %s in response from %s: %s",
			fieldErrorCode, method, string(rawCode))
	}
	msg := rawString(rsp[fieldResultMsg])
	if code != 0 {
		if known, ok := ServerMessage(code); ok {
			if msg == "" {
				msg = known
			}
			logging.Warningf(ctx, "request failed: %s", msg)
			return nil, newError(RequestFailed, "%s", msg)
		}
		logging.Warningf(ctx, "failed to fetch data, path=%s, params=%v, error_info=%s",
			method, p, msg)
		return nil, newError(RequestFailed, "undefined request error: %s", msg)
	}
	if emptyData(rsp[fieldData]) {
		return table.NewTable(), nil
	}
	t, err := table.DecodeRecords(rsp[fieldData], table.DecodeOptions{
		LowerCase: true,
		Int:       p.IntFields(),
		Float:     p.FloatFields(),
	})
	if err != nil {
		logging.Warningf(ctx, "%s: failed to decode data: %s", method, err.Error())
		return nil, newError(RequestFailed, "failed to decode data from %s", method)
	}
	return t, nil
}

// gatewayError classifies a 4xx response. The gateway reports errors either as
// {error_no, error_info} or, in the legacy format, wrapped in {data: [...]}.
func gatewayError(ctx context.Context, body []byte) error {
	unknown := func() error {
		logging.Warningf(ctx, "gateway returned an undefined error: %s", string(body))
		return newError(GatewayFailed, "%s", string(body))
	}
	var rsp map[string]json.RawMessage
	if err := json.Unmarshal(body, &rsp); err != nil {
		return unknown()
	}
	if _, ok := rsp[fieldErrorNo]; !ok {
		data, ok := rsp[fieldData]
		if !ok {
			return unknown()
		}
		data = bytes.TrimSpace(data)
		if len(data) > 0 && data[0] == '[' {
			var list []json.RawMessage
			if err := json.Unmarshal(data, &list); err != nil || len(list) == 0 {
				return unknown()
			}
			data = list[0]
		}
		rsp = nil
		if err := json.Unmarshal(data, &rsp); err != nil || rsp == nil {
			return unknown()
		}
		if _, ok := rsp[fieldErrorNo]; !ok {
			return unknown()
		}
	}
	info := rawString(rsp[fieldErrorInfo])
	if code, ok := parseCode(rsp[fieldErrorNo]); ok {
		if _, known := GatewayMessage(code); known {
			logging.Warningf(ctx, "gateway returned an error: %s", info)
			return newError(GatewayFailed, "%s", info)
		}
	}
	logging.Warningf(ctx, "gateway returned an undefined error: %s", info)
	return newError(GatewayFailed, "undefined gateway error: %s", info)
}
