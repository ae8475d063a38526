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
	"testing"
	"time"

	"github.com/stockparfait/errors"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRetry(t *testing.T) {
	t.Parallel()

	Convey("Retry works", t, func() {
		ctx := testContext()
		var sr sleepRecorder
		r := Retry{Attempts: 3, Delay: time.Second, On: RequestTimeout, Sleep: sr.sleep}
		calls := 0
		fail := func(errs ...error) func() error {
			return func() error {
				calls++
				if calls <= len(errs) {
					return errs[calls-1]
				}
				return nil
			}
		}
		timeout := newError(RequestTimeout, "timeout")

		Convey("succeeds immediately", func() {
			So(r.Do(ctx, "op", fail()), ShouldBeNil)
			So(calls, ShouldEqual, 1)
			So(len(sr.get()), ShouldEqual, 0)
		})

		Convey("retries the matching kind", func() {
			So(r.Do(ctx, "op", fail(timeout, timeout)), ShouldBeNil)
			So(calls, ShouldEqual, 3)
			So(sr.get(), ShouldResemble, []time.Duration{time.Second, time.Second})
		})

		Convey("returns the last error when exhausted", func() {
			last := newError(RequestTimeout, "last")
			err := r.Do(ctx, "op", fail(timeout, timeout, last))
			So(err, ShouldEqual, last)
			So(calls, ShouldEqual, 3)
		})

		Convey("does not retry other kinds", func() {
			failed := newError(ServerFailed, "boom")
			So(r.Do(ctx, "op", fail(failed)), ShouldEqual, failed)
			So(calls, ShouldEqual, 1)

			plain := errors.Reason("plain")
			calls = 0
			So(r.Do(ctx, "op", fail(plain)), ShouldEqual, plain)
			So(calls, ShouldEqual, 1)
		})

		Convey("stops waiting when the context is done", func() {
			r.Sleep = nil
			r.Delay = time.Hour
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			err := r.Do(cctx, "op", fail(timeout, timeout))
			So(err, ShouldEqual, timeout)
			So(calls, ShouldEqual, 1)
		})
	})
}

func TestFactory(t *testing.T) {
	t.Parallel()

	Convey("Factory works", t, func() {
		ctx := testContext()
		cfg := testConfig("http://localhost")

		Convey("creates a connection", func() {
			f := &Factory{}
			c, err := f.Get(ctx, cfg)
			So(err, ShouldBeNil)
			So(c.Check(), ShouldBeTrue)
			c.Close()
		})

		Convey("rejects unsupported protocols", func() {
			f := &Factory{}
			cfg.Protocol = ProtocolTCP
			_, err := f.Get(ctx, cfg)
			So(KindOf(err), ShouldEqual, ConfigurationError)
		})

		Convey("times out and closes the late connection", func() {
			unblock := make(chan struct{})
			late := make(chan *Connection, 1)
			f := &Factory{Create: func(cfg Config, c *http.Client) (*Connection, error) {
				<-unblock
				conn, err := NewConnection(cfg, c)
				late <- conn
				return conn, err
			}}
			cfg.ConnectTimeout = 10 * time.Millisecond
			_, err := f.Get(ctx, cfg)
			So(KindOf(err), ShouldEqual, ConnectionTimeout)
			So(errors.Is(err, ErrConnectionTimeout), ShouldBeTrue)

			close(unblock)
			conn := <-late
			for conn.State() != Disconnected {
				time.Sleep(time.Millisecond)
			}
			So(conn.Check(), ShouldBeFalse)
		})

		Convey("propagates creation errors", func() {
			f := &Factory{Create: func(cfg Config, c *http.Client) (*Connection, error) {
				return nil, errors.Reason("no way")
			}}
			_, err := f.Get(ctx, cfg)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "no way")
		})
	})
}
