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
	"os"
	"path/filepath"
	"sync"

	"github.com/stockparfait/datafeed/table"
)

// Default file names under DefaultDir.
const (
	ConfigFile      = "config.toml"
	CredentialsFile = "credentials.env"
)

var (
	defaultOnce   sync.Once
	defaultClient *Client
)

// DefaultDir is the directory of the persisted configuration: ~/.udata.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".udata")
}

// NewFileClient creates a client persisting its configuration in dir.
func NewFileClient(dir string) *Client {
	return NewClient(
		&FileStore{Path: filepath.Join(dir, ConfigFile)},
		&EnvFileStore{Path: filepath.Join(dir, CredentialsFile)})
}

// Default is the process-wide client backed by the files in DefaultDir.
func Default() *Client {
	defaultOnce.Do(func() { defaultClient = NewFileClient(DefaultDir()) })
	return defaultClient
}

// client from the context, or the default one.
func client(ctx context.Context) *Client {
	if c := GetClient(ctx); c != nil {
		return c
	}
	return Default()
}

// Init initializes the client in the context, or the default client.
func Init(ctx context.Context, username, password string, opts ...Option) error {
	return client(ctx).Init(ctx, username, password, opts...)
}

// SetToken initializes the client with a license token.
func SetToken(ctx context.Context, token string, opts ...Option) error {
	return Init(ctx, LicenseUser, token, opts...)
}

// Environ of the client in the context, or of the default client.
func Environ(ctx context.Context) map[string]interface{} {
	return client(ctx).Environ()
}

// GetData sends a request with the client in the context, or the default one.
func GetData(ctx context.Context, method string, p Params) (*table.Table, error) {
	return client(ctx).Send(ctx, method, p)
}
