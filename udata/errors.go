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
	"fmt"

	"github.com/stockparfait/errors"
)

// Kind of a classified failure.
type Kind int

// Values of Kind.
const (
	Unclassified       Kind = iota // unexpected status or transport failure
	ConnectionClosed               // pool or connection is unusable
	ConnectionTimeout              // establishing a connection took too long; retried
	RequestTimeout                 // a request took too long; retried
	RequestFailed                  // the service reported an application-level failure
	GatewayFailed                  // the gateway in front of the service rejected the call
	ServerFailed                   // the service returned 5xx
	InvalidArgument                // a caller-supplied parameter is invalid
	ConfigurationError             // malformed or missing configuration
	PoolExhausted                  // the context was done while waiting for a free connection
)

var kindNames = map[Kind]string{
	Unclassified:       "Unclassified",
	ConnectionClosed:   "ConnectionClosed",
	ConnectionTimeout:  "ConnectionTimeout",
	RequestTimeout:     "RequestTimeout",
	RequestFailed:      "RequestFailed",
	GatewayFailed:      "GatewayFailed",
	ServerFailed:       "ServerFailed",
	InvalidArgument:    "InvalidArgument",
	ConfigurationError: "ConfigurationError",
	PoolExhausted:      "PoolExhausted",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a classified failure. Its message is meant to be shown to the user
// as is.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return e.Msg
}

// Is matches any *Error of the same Kind, so that errors.Is(err,
// ErrRequestTimeout) works regardless of the message. A target with a non-empty
// message must match it exactly.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Msg == "" || t.Msg == e.Msg)
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Sentinels for errors.Is.
var (
	ErrUnclassified       = &Error{Kind: Unclassified}
	ErrConnectionClosed   = &Error{Kind: ConnectionClosed}
	ErrConnectionTimeout  = &Error{Kind: ConnectionTimeout}
	ErrRequestTimeout     = &Error{Kind: RequestTimeout}
	ErrRequestFailed      = &Error{Kind: RequestFailed}
	ErrGatewayFailed      = &Error{Kind: GatewayFailed}
	ErrServerFailed       = &Error{Kind: ServerFailed}
	ErrInvalidArgument    = &Error{Kind: InvalidArgument}
	ErrConfigurationError = &Error{Kind: ConfigurationError}
	ErrPoolExhausted      = &Error{Kind: PoolExhausted}
)

var sentinels = []*Error{
	ErrConnectionClosed, ErrConnectionTimeout, ErrRequestTimeout,
	ErrRequestFailed, ErrGatewayFailed, ErrServerFailed, ErrInvalidArgument,
	ErrConfigurationError, ErrPoolExhausted,
}

// KindOf returns the Kind of the first classified error in err's chain, or
// Unclassified.
func KindOf(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Kind
		}
	}
	return Unclassified
}

// NewInvalidArgument creates an InvalidArgument error for use by accessors
// validating their arguments.
func NewInvalidArgument(format string, args ...interface{}) error {
	return newError(InvalidArgument, format, args...)
}

// Gateway error codes, as reported in the error_no field.
const gatewayErrorBase = 9100

var gatewayMessages = map[int]string{
	gatewayErrorBase + 1:  "no timestamp field",
	gatewayErrorBase + 2:  "error timestamp format",
	gatewayErrorBase + 3:  "error timestamp",
	gatewayErrorBase + 4:  "no signature head",
	gatewayErrorBase + 5:  "unkown HTTP method",
	gatewayErrorBase + 6:  "resty_sm3:new() failed",
	gatewayErrorBase + 7:  "sm3:update() failed",
	gatewayErrorBase + 8:  "error packet",
	gatewayErrorBase + 9:  "no appkey head",
	gatewayErrorBase + 10: "redis not config, please check...",
	gatewayErrorBase + 11: "no getinfo_byself.lua or no get_secret_byself function in getinfo_byself.lua",
	gatewayErrorBase + 12: "no app_secret in redis or hget from redis timeout",
	gatewayErrorBase + 13: "authentication failure,no client_key in clients",
	gatewayErrorBase + 14: "authentication failure,ip not in whitelist",
	gatewayErrorBase + 15: "authentication failure,ip in blacklist",
	gatewayErrorBase + 16: "authentication failure,app_auth_type is nil",
	gatewayErrorBase + 17: "no client_id in body",
	gatewayErrorBase + 18: "no client_id in args",
	gatewayErrorBase + 19: "error client id",
	gatewayErrorBase + 20: "no client_id head",
	gatewayErrorBase + 21: "error packet,no data_value with get request",
	gatewayErrorBase + 22: "must json type",
	gatewayErrorBase + 23: "error packet,not data_value in post_args",
	gatewayErrorBase + 24: "error packet,not data_value in header or args",
}

// Service error codes, as reported in the error_code field of a 200 response.
const serverErrorBase = 100000

var serverMessages = map[int]string{
	serverErrorBase + 0:  "exception occurred",
	serverErrorBase + 1:  "failed to parse parameter",
	serverErrorBase + 2:  "request method does not match the api",
	serverErrorBase + 3:  "failed to convert parameter type",
	serverErrorBase + 4:  "database connection failed",
	serverErrorBase + 5:  "statement contains no select keyword",
	serverErrorBase + 6:  "wrong execution mode",
	serverErrorBase + 7:  "database type not supported",
	serverErrorBase + 8:  "query failed",
	serverErrorBase + 9:  "engine not supported",
	serverErrorBase + 10: "query failed",
	serverErrorBase + 11: "parameter must not be empty",
	serverErrorBase + 12: "driver not found",
	serverErrorBase + 13: "database does not support unified paging",
	serverErrorBase + 14: "failed to push data",
	serverErrorBase + 15: "GET requests are not supported",
	serverErrorBase + 16: "failed to write csv file",
	serverErrorBase + 17: "failed to upload ftp file",
	serverErrorBase + 18: "output channel not supported",
	serverErrorBase + 19: "kerberos authentication failed",
	serverErrorBase + 20: "kerberos authentication failed, file does not exist",
	serverErrorBase + 24: "failed to upload ftp file, login failed",
	serverErrorBase + 25: "ftp connection failed",
	serverErrorBase + 26: "failed to send notification",
	serverErrorBase + 27: "malformed request",
	serverErrorBase + 28: "failed to create ftp directory",
	serverErrorBase + 29: "data table does not exist in the data source",
}

// GatewayMessage returns the description of a known gateway error code.
func GatewayMessage(code int) (string, bool) {
	m, ok := gatewayMessages[code]
	return m, ok
}

// ServerMessage returns the description of a known service error code.
func ServerMessage(code int) (string, bool) {
	m, ok := serverMessages[code]
	return m, ok
}
