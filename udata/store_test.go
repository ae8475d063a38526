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
	"os"
	"path/filepath"
	"testing"

	"github.com/stockparfait/testutil"

	. "github.com/smartystreets/goconvey/convey"
)

func TestStores(t *testing.T) {
	t.Parallel()

	tmpdir, tmpdirErr := os.MkdirTemp("", "test_udata_store")
	defer os.RemoveAll(tmpdir)

	Convey("Setup succeeded", t, func() {
		So(tmpdirErr, ShouldBeNil)
	})

	Convey("FileStore works", t, func() {
		ctx := testContext()

		Convey("missing file yields defaults", func() {
			s := &FileStore{Path: filepath.Join(tmpdir, "missing", ConfigFile)}
			settings, err := s.Load(ctx)
			So(err, ShouldBeNil)
			So(*settings, ShouldResemble, DefaultSettings())
		})

		Convey("reads a hand-written file", func() {
			path := filepath.Join(tmpdir, "hand.toml")
			So(testutil.WriteFile(path, `
url = "https://host/udata/business/v1/app_services"
pool_size = 500
request_timeout = 60
compressor = "gzip"
`), ShouldBeNil)
			s := &FileStore{Path: path}
			settings, err := s.Load(ctx)
			So(err, ShouldBeNil)
			So(*settings, ShouldResemble, Settings{
				URL:            "https://host/udata/business/v1/app_services",
				Protocol:       "HTTP",
				ConnectTimeout: DefaultConnectTimeout,
				RequestTimeout: 60,
				PoolSize:       DefaultPoolSize,
				Compressor:     CompressorGzip,
				PageSize:       DefaultPageSize,
			})
		})

		Convey("rejects a malformed file", func() {
			path := filepath.Join(tmpdir, "bad.toml")
			So(testutil.WriteFile(path, "url = [unterminated"), ShouldBeNil)
			s := &FileStore{Path: path}
			_, err := s.Load(ctx)
			So(err, ShouldNotBeNil)
		})

		Convey("saves and loads", func() {
			s := &FileStore{Path: filepath.Join(tmpdir, "saved", ConfigFile)}
			settings := DefaultSettings()
			settings.URL = "http://localhost"
			settings.RateLimit = 2.5
			So(s.Save(ctx, &settings), ShouldBeNil)
			loaded, err := s.Load(ctx)
			So(err, ShouldBeNil)
			So(*loaded, ShouldResemble, settings)
		})
	})

	Convey("EnvFileStore works", t, func() {
		ctx := testContext()

		Convey("missing file yields empty credentials", func() {
			s := &EnvFileStore{Path: filepath.Join(tmpdir, "missing", CredentialsFile)}
			c, err := s.Credentials(ctx)
			So(err, ShouldBeNil)
			So(c, ShouldResemble, Credentials{})
		})

		Convey("reads a hand-written file", func() {
			path := filepath.Join(tmpdir, "hand.env")
			So(testutil.WriteFile(path, "UDATA_USERNAME=license\nUDATA_PASSWORD=abc123\n"),
				ShouldBeNil)
			s := &EnvFileStore{Path: path}
			c, err := s.Credentials(ctx)
			So(err, ShouldBeNil)
			So(c, ShouldResemble, Credentials{Username: "license", Password: "abc123"})
		})

		Convey("saves privately and loads", func() {
			path := filepath.Join(tmpdir, "saved", CredentialsFile)
			s := &EnvFileStore{Path: path}
			c := Credentials{Username: LicenseUser, Password: "token with spaces"}
			So(s.SaveCredentials(ctx, c), ShouldBeNil)
			info, err := os.Stat(path)
			So(err, ShouldBeNil)
			So(info.Mode().Perm(), ShouldEqual, os.FileMode(0600))
			loaded, err := s.Credentials(ctx)
			So(err, ShouldBeNil)
			So(loaded, ShouldResemble, c)
			So(os.Getenv(EnvPassword), ShouldEqual, "")
		})
	})

	Convey("MemoryStore works", t, func() {
		ctx := testContext()
		m := NewMemoryStore(nil, Credentials{})
		s, err := m.Load(ctx)
		So(err, ShouldBeNil)
		So(*s, ShouldResemble, DefaultSettings())

		s.URL = "u"
		So(m.Save(ctx, s), ShouldBeNil)
		s.URL = "changed"
		loaded, err := m.Load(ctx)
		So(err, ShouldBeNil)
		So(loaded.URL, ShouldEqual, "u")

		So(m.SaveCredentials(ctx, Credentials{Password: "p"}), ShouldBeNil)
		c, err := m.Credentials(ctx)
		So(err, ShouldBeNil)
		So(c.Password, ShouldEqual, "p")
		So(m.Saves(), ShouldEqual, 2)
	})
}
