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
	"context"
	"net/http"
	"time"

	"github.com/stockparfait/logging"
)

// Protocol is the transport used to reach the data service.
type Protocol string

// Recognized protocols. Only HTTP is implemented.
const (
	ProtocolHTTP = Protocol("HTTP")
	ProtocolTCP  = Protocol("TCP")
)

// LicenseUser is the only supported login mode: the password is the license
// token issued by the vendor.
const LicenseUser = "license"

// Defaults and valid ranges (0, max] of the numeric settings. Timeouts are in
// seconds.
const (
	DefaultConnectTimeout = 5
	DefaultRequestTimeout = 300
	DefaultPoolSize       = 10
	DefaultPageSize       = 100000

	MaxConnectTimeout = 1000
	MaxRequestTimeout = 100000
	MaxPoolSize       = 100
	MaxPageSize       = 100000
)

// CompressorGzip is the only supported compressor.
const CompressorGzip = "gzip"

// Credentials for the data service.
type Credentials struct {
	Username string
	Password string
}

// Config of a ConnectionPool and its connections. It is immutable once the pool
// is created.
type Config struct {
	Protocol       Protocol
	URL            string
	Auth           Credentials
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	PoolSize       int
	Compressor     string  // "" (none) or "gzip"
	PageSize       int     // not interpreted by the transport
	RateLimit      float64 // max. requests per second; 0 = unlimited
}

// DefaultConfig returns the configuration with all the default values, but
// without the URL and credentials.
func DefaultConfig() Config {
	return Config{
		Protocol:       ProtocolHTTP,
		Auth:           Credentials{Username: LicenseUser},
		ConnectTimeout: DefaultConnectTimeout * time.Second,
		RequestTimeout: DefaultRequestTimeout * time.Second,
		PoolSize:       DefaultPoolSize,
		PageSize:       DefaultPageSize,
	}
}

func inRange(d time.Duration, max int) bool {
	return d > 0 && d <= time.Duration(max)*time.Second
}

// Validate checks that the configuration can be used to create connections.
// It returns a ConfigurationError otherwise.
func (c Config) Validate() error {
	switch {
	case c.URL == "":
		return newError(ConfigurationError, "missing service url")
	case c.Auth.Username == "":
		return newError(ConfigurationError, "missing username")
	case c.Auth.Password == "":
		return newError(ConfigurationError, "missing password (license token)")
	case c.Auth.Username != LicenseUser:
		return newError(ConfigurationError,
			"unsupported login mode '%s': only '%s' login is supported",
			c.Auth.Username, LicenseUser)
	case !inRange(c.ConnectTimeout, MaxConnectTimeout):
		return newError(ConfigurationError, "connect timeout %s is out of range (0, %ds]",
			c.ConnectTimeout, MaxConnectTimeout)
	case !inRange(c.RequestTimeout, MaxRequestTimeout):
		return newError(ConfigurationError, "request timeout %s is out of range (0, %ds]",
			c.RequestTimeout, MaxRequestTimeout)
	case c.PoolSize <= 0 || c.PoolSize > MaxPoolSize:
		return newError(ConfigurationError, "pool size %d is out of range (0, %d]",
			c.PoolSize, MaxPoolSize)
	case c.PageSize <= 0 || c.PageSize > MaxPageSize:
		return newError(ConfigurationError, "page size %d is out of range (0, %d]",
			c.PageSize, MaxPageSize)
	case c.Compressor != "" && c.Compressor != CompressorGzip:
		return newError(ConfigurationError, "unsupported compressor '%s'", c.Compressor)
	case c.RateLimit < 0:
		return newError(ConfigurationError, "rate limit %g must be >= 0", c.RateLimit)
	}
	return nil
}

// Environ is the configuration snapshot in the form reported by Environ().
func (c Config) Environ() map[string]interface{} {
	var compressor interface{}
	if c.Compressor != "" {
		compressor = c.Compressor
	}
	return map[string]interface{}{
		"protocol": string(c.Protocol),
		"auth": map[string]interface{}{
			"username": c.Auth.Username,
			"password": c.Auth.Password,
		},
		"url":             c.URL,
		"connect_timeout": int(c.ConnectTimeout / time.Second),
		"request_timeout": int(c.RequestTimeout / time.Second),
		"pool_size":       c.PoolSize,
		"compressor":      compressor,
		"page_size":       c.PageSize,
	}
}

// Settings is the persisted part of the configuration, everything except the
// credentials.
type Settings struct {
	URL            string  `toml:"url"`
	Protocol       string  `toml:"protocol"`
	ConnectTimeout int     `toml:"connect_timeout"` // seconds
	RequestTimeout int     `toml:"request_timeout"` // seconds
	PoolSize       int     `toml:"pool_size"`
	Compressor     string  `toml:"compressor,omitempty"`
	PageSize       int     `toml:"page_size"`
	RateLimit      float64 `toml:"rate_limit,omitempty"` // requests per second
}

// DefaultSettings without the URL.
func DefaultSettings() Settings {
	return Settings{
		Protocol:       string(ProtocolHTTP),
		ConnectTimeout: DefaultConnectTimeout,
		RequestTimeout: DefaultRequestTimeout,
		PoolSize:       DefaultPoolSize,
		PageSize:       DefaultPageSize,
	}
}

// fillDefaults replaces missing or out of range values, e.g. from a hand-edited
// file, with the defaults.
func (s *Settings) fillDefaults(ctx context.Context) {
	d := DefaultSettings()
	fix := func(name string, v *int, def, max int) {
		if *v <= 0 || *v > max {
			if *v != 0 {
				logging.Warningf(ctx, "stored %s = %d is out of range (0, %d], using %d",
					name, *v, max, def)
			}
			*v = def
		}
	}
	if s.Protocol == "" {
		s.Protocol = d.Protocol
	}
	fix("connect_timeout", &s.ConnectTimeout, d.ConnectTimeout, MaxConnectTimeout)
	fix("request_timeout", &s.RequestTimeout, d.RequestTimeout, MaxRequestTimeout)
	fix("pool_size", &s.PoolSize, d.PoolSize, MaxPoolSize)
	fix("page_size", &s.PageSize, d.PageSize, MaxPageSize)
	if s.RateLimit < 0 {
		s.RateLimit = 0
	}
}

// Config combines the settings with the credentials.
func (s Settings) Config(creds Credentials) Config {
	return Config{
		Protocol:       Protocol(s.Protocol),
		URL:            s.URL,
		Auth:           creds,
		ConnectTimeout: time.Duration(s.ConnectTimeout) * time.Second,
		RequestTimeout: time.Duration(s.RequestTimeout) * time.Second,
		PoolSize:       s.PoolSize,
		Compressor:     s.Compressor,
		PageSize:       s.PageSize,
		RateLimit:      s.RateLimit,
	}
}

// Option overrides a setting in Client.Init.
type Option func(*overrides)

type overrides struct {
	url            *string
	protocol       *string
	connectTimeout *int
	requestTimeout *int
	poolSize       *int
	compressor     *string
	pageSize       *int
	rateLimit      *float64
	httpClient     *http.Client
}

// WithURL sets the service URL, e.g. "https://host/udata/business/v1/app_services".
func WithURL(url string) Option {
	return func(o *overrides) { o.url = &url }
}

// WithProtocol sets the transport protocol. Only "HTTP" is accepted.
func WithProtocol(p string) Option {
	return func(o *overrides) { o.protocol = &p }
}

// WithConnectTimeout in seconds, (0, 1000].
func WithConnectTimeout(seconds int) Option {
	return func(o *overrides) { o.connectTimeout = &seconds }
}

// WithRequestTimeout in seconds, (0, 100000].
func WithRequestTimeout(seconds int) Option {
	return func(o *overrides) { o.requestTimeout = &seconds }
}

// WithPoolSize sets the max. number of concurrent connections, (0, 100].
func WithPoolSize(n int) Option {
	return func(o *overrides) { o.poolSize = &n }
}

// WithCompressor sets the response compressor; "" disables compression.
func WithCompressor(c string) Option {
	return func(o *overrides) { o.compressor = &c }
}

// WithPageSize sets the page size, (0, 100000].
func WithPageSize(n int) Option {
	return func(o *overrides) { o.pageSize = &n }
}

// WithRateLimit sets the max. number of requests per second; 0 = unlimited.
func WithRateLimit(perSecond float64) Option {
	return func(o *overrides) { o.rateLimit = &perSecond }
}

// WithHTTPClient uses the given client for all the connections instead of a
// dedicated one per connection. It is not persisted.
func WithHTTPClient(c *http.Client) Option {
	return func(o *overrides) { o.httpClient = c }
}

// apply merges the overrides onto the settings. Out of range values are
// ignored with a warning, keeping the previous value.
func (o *overrides) apply(ctx context.Context, s *Settings) {
	setInt := func(name string, v *int, dst *int, max int) {
		if v == nil {
			return
		}
		if *v <= 0 || *v > max {
			logging.Warningf(ctx, "%s: valid range is (0, %d], ignoring %d and keeping %d",
				name, max, *v, *dst)
			return
		}
		*dst = *v
	}
	if o.url != nil {
		s.URL = *o.url
	}
	if o.protocol != nil {
		if Protocol(*o.protocol) != ProtocolHTTP {
			logging.Warningf(ctx, "protocol: only %s is supported, ignoring '%s'",
				ProtocolHTTP, *o.protocol)
		} else {
			s.Protocol = *o.protocol
		}
	}
	setInt("connect_timeout", o.connectTimeout, &s.ConnectTimeout, MaxConnectTimeout)
	setInt("request_timeout", o.requestTimeout, &s.RequestTimeout, MaxRequestTimeout)
	setInt("pool_size", o.poolSize, &s.PoolSize, MaxPoolSize)
	setInt("page_size", o.pageSize, &s.PageSize, MaxPageSize)
	if o.compressor != nil {
		s.Compressor = *o.compressor
	}
	if o.rateLimit != nil {
		if *o.rateLimit < 0 {
			logging.Warningf(ctx, "rate_limit: must be >= 0, ignoring %g", *o.rateLimit)
		} else {
			s.RateLimit = *o.rateLimit
		}
	}
}
