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
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stockparfait/testutil"

	. "github.com/smartystreets/goconvey/convey"
)

func TestClient(t *testing.T) {
	t.Parallel()

	tmpdir, tmpdirErr := os.MkdirTemp("", "test_udata_client")
	defer os.RemoveAll(tmpdir)

	Convey("Setup succeeded", t, func() {
		So(tmpdirErr, ShouldBeNil)
	})

	Convey("Client works", t, func() {
		ctx := testContext()
		server := testutil.NewTestServer()
		defer server.Close()
		server.ResponseBody = []string{
			`{"error_code": 0, "data": [{"SECU_CODE": "600000", "SECU_ABBR": "PFYH"}]}`}

		store := NewMemoryStore(nil, Credentials{})
		c := NewClient(store, store)
		defer c.Close()

		Convey("Environ is empty before Init", func() {
			So(c.Environ(), ShouldResemble, map[string]interface{}{})
		})

		Convey("Init requires a password", func() {
			err := c.Init(ctx, "", "", WithURL(server.URL()))
			So(KindOf(err), ShouldEqual, ConfigurationError)
			So(c.Environ(), ShouldResemble, map[string]interface{}{})
		})

		Convey("lazy initialization fails without configuration", func() {
			_, err := c.Send(ctx, "stock_list", Params{URLPathKey: "basic_data"})
			So(KindOf(err), ShouldEqual, ConfigurationError)
		})

		Convey("Init and Send", func() {
			So(c.Init(ctx, "", "token", WithURL(server.URL()), WithPoolSize(500),
				WithHTTPClient(server.Client())), ShouldBeNil)

			env := c.Environ()
			So(env["pool_size"], ShouldEqual, DefaultPoolSize)
			So(env["url"], ShouldEqual, server.URL())
			So(env["auth"], ShouldResemble, map[string]interface{}{
				"username": LicenseUser,
				"password": "token",
			})

			tbl, err := c.Send(ctx, "stock_list", Params{URLPathKey: "basic_data"})
			So(err, ShouldBeNil)
			So(tbl.Len(), ShouldEqual, 1)
			So(tbl.Header, ShouldResemble, []string{"secu_code", "secu_abbr"})

			Convey("persists changed configuration once", func() {
				So(store.Saves(), ShouldEqual, 2)
				stored, err := store.Load(ctx)
				So(err, ShouldBeNil)
				So(stored.URL, ShouldEqual, server.URL())
				creds, err := store.Credentials(ctx)
				So(err, ShouldBeNil)
				So(creds, ShouldResemble, Credentials{Username: LicenseUser, Password: "token"})

				So(c.Init(ctx, "", "", WithHTTPClient(server.Client())), ShouldBeNil)
				So(store.Saves(), ShouldEqual, 2)
			})

			Convey("re-Init replaces the pool", func() {
				old, err := c.Pool(ctx)
				So(err, ShouldBeNil)
				So(c.Init(ctx, "", "", WithPoolSize(3), WithHTTPClient(server.Client())),
					ShouldBeNil)
				p, err := c.Pool(ctx)
				So(err, ShouldBeNil)
				So(p, ShouldNotEqual, old)
				So(p.Config().PoolSize, ShouldEqual, 3)
				So(old.Idle(), ShouldEqual, 0)
			})

			Convey("Close resets the client", func() {
				So(c.Close(), ShouldBeNil)
				So(c.Environ(), ShouldResemble, map[string]interface{}{})
			})
		})

		Convey("rejects other login modes", func() {
			err := c.Init(ctx, "user", "pwd", WithURL(server.URL()))
			So(KindOf(err), ShouldEqual, ConfigurationError)
		})

		Convey("context injection", func() {
			So(GetClient(ctx), ShouldBeNil)
			cctx := UseClient(ctx, c)
			So(GetClient(cctx), ShouldEqual, c)
			So(SetToken(cctx, "tok", WithURL(server.URL()),
				WithHTTPClient(server.Client())), ShouldBeNil)
			So(Environ(cctx)["auth"], ShouldResemble, map[string]interface{}{
				"username": LicenseUser,
				"password": "tok",
			})
			tbl, err := GetData(cctx, "stock_list", Params{URLPathKey: "basic_data"})
			So(err, ShouldBeNil)
			So(tbl.Len(), ShouldEqual, 1)
		})
	})

	Convey("SendAll works", t, func() {
		ctx := testContext()
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
			if method == "broken" {
				w.WriteHeader(500)
				w.Write([]byte("broken"))
				return
			}
			w.Write([]byte(`{"error_code": 0, "data": [{"method": "` + method + `"}]}`))
		}))
		defer server.Close()

		store := NewMemoryStore(&Settings{URL: server.URL}, Credentials{Password: "p"})
		c := NewClient(store, store)
		defer c.Close()
		So(c.Init(ctx, "", "", WithPoolSize(2)), ShouldBeNil)

		Convey("in order", func() {
			var reqs []Request
			for _, m := range []string{"a", "b", "c", "d", "e"} {
				reqs = append(reqs, Request{Method: m, Params: Params{URLPathKey: "p"}})
			}
			tables, err := c.SendAll(ctx, reqs)
			So(err, ShouldBeNil)
			So(len(tables), ShouldEqual, 5)
			for i, m := range []string{"a", "b", "c", "d", "e"} {
				v, ok := tables[i].Value(0, "method")
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, m)
			}
			So(int(atomic.LoadInt32(&calls)), ShouldEqual, 5)
		})

		Convey("with a failure", func() {
			tables, err := c.SendAll(ctx, []Request{
				{Method: "a", Params: Params{URLPathKey: "p"}},
				{Method: "broken", Params: Params{URLPathKey: "p"}},
			})
			So(tables, ShouldBeNil)
			So(err, ShouldResemble, &Error{Kind: ServerFailed, Msg: "broken"})
		})

		Convey("nothing to send", func() {
			tables, err := c.SendAll(ctx, nil)
			So(err, ShouldBeNil)
			So(len(tables), ShouldEqual, 0)
		})
	})

	Convey("Default client uses the files", t, func() {
		ctx := testContext()
		server := testutil.NewTestServer()
		defer server.Close()
		server.ResponseBody = []string{`{"error_code": 0, "data": []}`}

		dir := filepath.Join(tmpdir, "files")
		c := NewFileClient(dir)
		So(c.Init(ctx, "", "file-token", WithURL(server.URL()),
			WithHTTPClient(server.Client())), ShouldBeNil)
		defer c.Close()

		c2 := NewFileClient(dir)
		defer c2.Close()
		p, err := c2.Pool(context.Background())
		So(err, ShouldBeNil)
		So(p.Config().URL, ShouldEqual, server.URL())
		So(p.Config().Auth.Password, ShouldEqual, "file-token")
		So(Default(), ShouldEqual, Default())
	})
}
