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
	"time"

	"github.com/stockparfait/logging"
	"golang.org/x/time/rate"

	"github.com/stockparfait/datafeed/table"
)

// Retry policies of the pool.
const (
	SendAttempts   = 3
	CreateAttempts = 5
	RetryDelay     = time.Second
)

// ConnectionPool bounds the number of in-flight requests to Config.PoolSize
// and reuses idle connections in FIFO order. It is safe for concurrent use.
type ConnectionPool struct {
	config      Config
	factory     *Factory
	sem         chan struct{}
	limiter     *rate.Limiter
	sendRetry   Retry
	createRetry Retry

	mu     sync.Mutex
	idle   []*Connection
	closed bool
}

// PoolOption customizes a ConnectionPool.
type PoolOption func(*ConnectionPool)

// WithFactory sets the connection factory.
func WithFactory(f *Factory) PoolOption {
	return func(p *ConnectionPool) { p.factory = f }
}

// WithSleep replaces the wait between retries, mostly for tests.
func WithSleep(sleep func(time.Duration)) PoolOption {
	return func(p *ConnectionPool) {
		p.sendRetry.Sleep = sleep
		p.createRetry.Sleep = sleep
	}
}

// WithLimiter sets the rate limiter of outgoing requests, overriding
// Config.RateLimit.
func WithLimiter(l *rate.Limiter) PoolOption {
	return func(p *ConnectionPool) { p.limiter = l }
}

// NewConnectionPool creates an empty pool. Connections are created lazily.
func NewConnectionPool(cfg Config, opts ...PoolOption) (*ConnectionPool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Protocol != ProtocolHTTP {
		return nil, newError(ConfigurationError, "protocol '%s' is not supported", cfg.Protocol)
	}
	p := &ConnectionPool{
		config:      cfg,
		factory:     &Factory{},
		sem:         make(chan struct{}, cfg.PoolSize),
		sendRetry:   Retry{Attempts: SendAttempts, Delay: RetryDelay, On: RequestTimeout},
		createRetry: Retry{Attempts: CreateAttempts, Delay: RetryDelay, On: ConnectionTimeout},
	}
	if cfg.RateLimit > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.PoolSize)
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Config of the pool.
func (p *ConnectionPool) Config() Config { return p.config }

// Idle is the number of idle connections.
func (p *ConnectionPool) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// InFlight is the number of requests currently holding a connection slot.
func (p *ConnectionPool) InFlight() int { return len(p.sem) }

func (p *ConnectionPool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *ConnectionPool) acquire(ctx context.Context) error {
	if p.isClosed() {
		return newError(ConnectionClosed, "connection pool is closed")
	}
	select {
	case p.sem <- struct{}{}:
		return nil
	default:
	}
	select {
	case p.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return newError(PoolExhausted, "no free connection: %s", ctx.Err().Error())
	}
}

func (p *ConnectionPool) release() { <-p.sem }

// borrow the oldest healthy idle connection, or create a new one.
func (p *ConnectionPool) borrow(ctx context.Context) (*Connection, error) {
	p.mu.Lock()
	for len(p.idle) > 0 {
		c := p.idle[0]
		p.idle[0] = nil
		p.idle = p.idle[1:]
		if c.Check() {
			p.mu.Unlock()
			return c, nil
		}
		logging.Debugf(ctx, "discarding unhealthy connection in state %s", c.State())
		c.Close()
	}
	p.mu.Unlock()

	var conn *Connection
	err := p.createRetry.Do(ctx, "create connection", func() error {
		c, err := p.factory.Get(ctx, p.config)
		if err != nil {
			return err
		}
		conn = c
		return nil
	})
	if err == nil {
		logging.Debugf(ctx, "created a new connection to %s", p.config.URL)
	}
	return conn, err
}

// giveBack returns a healthy connection to the idle queue.
func (p *ConnectionPool) giveBack(c *Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || !c.Check() {
		c.Close()
		return
	}
	p.idle = append(p.idle, c)
}

func (p *ConnectionPool) send(ctx context.Context, method string, params Params) (*table.Table, error) {
	if err := p.acquire(ctx); err != nil {
		return nil, err
	}
	defer p.release()

	conn, err := p.borrow(ctx)
	if err != nil {
		return nil, err
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			p.giveBack(conn)
			return nil, newError(PoolExhausted, "rate limit wait failed: %s", err.Error())
		}
	}
	t, err := conn.Send(ctx, method, params)
	if err != nil {
		logging.Debugf(ctx, "discarding connection after failed %s", method)
		conn.Close()
		return nil, err
	}
	p.giveBack(conn)
	return t, nil
}

// Send a request using a pooled connection. Requests timing out are retried,
// and a connection whose request failed in any way is discarded.
func (p *ConnectionPool) Send(ctx context.Context, method string, params Params) (*table.Table, error) {
	var res *table.Table
	err := p.sendRetry.Do(ctx, method, func() error {
		t, err := p.send(ctx, method, params)
		if err != nil {
			return err
		}
		res = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Close the pool and all of its idle connections. Connections currently in use
// are closed when they are returned. Subsequent Send fails with
// ConnectionClosed.
func (p *ConnectionPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	for _, c := range p.idle {
		c.Close()
	}
	p.idle = nil
	return nil
}
