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

// Factory creates connections for a pool.
type Factory struct {
	// Create a connection; defaults to NewConnection with Client.
	Create func(cfg Config, client *http.Client) (*Connection, error)
	// Client shared by the created connections; nil means a dedicated client
	// per connection.
	Client *http.Client
}

type created struct {
	conn *Connection
	err  error
}

// Get creates a connection within the configured connect timeout. A connection
// which completes after the deadline is closed and never returned.
func (f *Factory) Get(ctx context.Context, cfg Config) (*Connection, error) {
	if cfg.Protocol != ProtocolHTTP {
		return nil, newError(ConfigurationError, "protocol '%s' is not supported", cfg.Protocol)
	}
	create := f.Create
	if create == nil {
		create = NewConnection
	}
	ch := make(chan created, 1)
	start := time.Now()
	go func() {
		c, err := create(cfg, f.Client)
		ch <- created{conn: c, err: err}
	}()

	timer := time.NewTimer(cfg.ConnectTimeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		return r.conn, r.err
	case <-timer.C:
	case <-ctx.Done():
	}
	go func() {
		if r := <-ch; r.conn != nil {
			r.conn.Close()
		}
	}()
	elapsed := time.Since(start)
	logging.Warningf(ctx, "connection was not created within %s (%s elapsed)",
		cfg.ConnectTimeout, elapsed)
	return nil, newError(ConnectionTimeout, "connection timed out after %s", elapsed)
}
