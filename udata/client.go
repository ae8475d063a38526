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
	"sync"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/iterator"
	"github.com/stockparfait/logging"

	"github.com/stockparfait/datafeed/table"
)

type contextKey int

const (
	clientContextKey contextKey = iota
)

// Client owns the connection pool and its persisted configuration. The pool is
// created by Init, or lazily on the first request from the stored settings.
type Client struct {
	store Store
	creds CredentialStore

	mu   sync.Mutex
	pool *ConnectionPool
}

// NewClient creates an uninitialized client.
func NewClient(store Store, creds CredentialStore) *Client {
	return &Client{store: store, creds: creds}
}

// UseClient injects the client into the context.
func UseClient(ctx context.Context, c *Client) context.Context {
	return context.WithValue(ctx, clientContextKey, c)
}

// GetClient extracts the Client from the context, if any.
func GetClient(ctx context.Context) *Client {
	c, ok := ctx.Value(clientContextKey).(*Client)
	if !ok {
		return nil
	}
	return c
}

// Init (re)creates the connection pool. Non-empty username and password take
// precedence over the stored credentials, and the username defaults to
// "license". Invalid overrides are ignored with a warning. The resulting
// settings and credentials are saved when they differ from the stored ones.
//
// An existing pool is replaced and closed; requests in flight on it complete.
func (c *Client) Init(ctx context.Context, username, password string, opts ...Option) error {
	stored, err := c.creds.Credentials(ctx)
	if err != nil {
		return errors.Annotate(err, "failed to load credentials")
	}
	creds := stored
	if username != "" {
		creds.Username = username
	}
	if password != "" {
		creds.Password = password
	}
	if creds.Username == "" {
		creds.Username = LicenseUser
	}
	if creds.Password == "" {
		logging.Warningf(ctx, "no password (license token) is configured")
		return newError(ConfigurationError,
			"password is required: pass it to Init or store it in the credentials")
	}

	settings, err := c.store.Load(ctx)
	if err != nil {
		return errors.Annotate(err, "failed to load settings")
	}
	loaded := *settings
	var o overrides
	for _, opt := range opts {
		opt(&o)
	}
	o.apply(ctx, settings)

	var poolOpts []PoolOption
	if o.httpClient != nil {
		poolOpts = append(poolOpts, WithFactory(&Factory{Client: o.httpClient}))
	}
	pool, err := NewConnectionPool(settings.Config(creds), poolOpts...)
	if err != nil {
		return err
	}

	c.mu.Lock()
	old := c.pool
	c.pool = pool
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}
	logging.Infof(ctx, "connection pool initialized: url=%s pool_size=%d",
		settings.URL, settings.PoolSize)

	if *settings != loaded {
		if err := c.store.Save(ctx, settings); err != nil {
			return errors.Annotate(err, "failed to save settings")
		}
	}
	if creds != stored {
		if err := c.creds.SaveCredentials(ctx, creds); err != nil {
			return errors.Annotate(err, "failed to save credentials")
		}
	}
	return nil
}

// Pool returns the current connection pool, initializing it from the stored
// configuration on first use.
func (c *Client) Pool(ctx context.Context) (*ConnectionPool, error) {
	c.mu.Lock()
	p := c.pool
	c.mu.Unlock()
	if p != nil {
		return p, nil
	}
	if err := c.Init(ctx, "", ""); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pool, nil
}

// Send a request through the pool.
func (c *Client) Send(ctx context.Context, method string, p Params) (*table.Table, error) {
	pool, err := c.Pool(ctx)
	if err != nil {
		return nil, err
	}
	return pool.Send(ctx, method, p)
}

// Request is a single call in SendAll.
type Request struct {
	Method string
	Params Params
}

type response struct {
	index int
	table *table.Table
	err   error
}

// SendAll sends the requests concurrently, at most the pool size at a time,
// and returns the tables in the order of the requests. The first failed
// request, in that order, determines the error.
func (c *Client) SendAll(ctx context.Context, reqs []Request) ([]*table.Table, error) {
	pool, err := c.Pool(ctx)
	if err != nil {
		return nil, err
	}
	indices := make([]int, len(reqs))
	for i := range indices {
		indices[i] = i
	}
	f := func(i int) response {
		t, err := pool.Send(ctx, reqs[i].Method, reqs[i].Params)
		return response{index: i, table: t, err: err}
	}
	pm := iterator.ParallelMap(ctx, pool.Config().PoolSize, iterator.FromSlice(indices), f)

	res := make([]*table.Table, len(reqs))
	errs := iterator.Reduce[response, []error](pm, make([]error, len(reqs)),
		func(r response, errs []error) []error {
			res[r.index] = r.table
			errs[r.index] = r.err
			return errs
		})
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Environ is the configuration of the current pool, or an empty map before the
// first initialization.
func (c *Client) Environ() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pool == nil {
		return map[string]interface{}{}
	}
	return c.pool.Config().Environ()
}

// Close the pool, if any. The next request initializes a new one.
func (c *Client) Close() error {
	c.mu.Lock()
	p := c.pool
	c.pool = nil
	c.mu.Unlock()
	if p == nil {
		return nil
	}
	return p.Close()
}
