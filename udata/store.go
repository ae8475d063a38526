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

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
)

// Keys of the credentials in the env file.
const (
	EnvUsername = "UDATA_USERNAME"
	EnvPassword = "UDATA_PASSWORD"
)

// Store persists the settings between runs.
type Store interface {
	// Load the settings; defaults when nothing is stored yet.
	Load(ctx context.Context) (*Settings, error)
	Save(ctx context.Context, s *Settings) error
}

// CredentialStore persists the credentials between runs.
type CredentialStore interface {
	// Credentials stored so far; empty when nothing is stored yet.
	Credentials(ctx context.Context) (Credentials, error)
	SaveCredentials(ctx context.Context, c Credentials) error
}

// FileStore keeps the settings in a TOML file.
type FileStore struct {
	Path string
}

var _ Store = &FileStore{}

// Load the settings from the file. A missing file yields the default settings.
func (s *FileStore) Load(ctx context.Context) (*Settings, error) {
	res := DefaultSettings()
	f, err := os.Open(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Debugf(ctx, "config file '%s' does not exist, using defaults", s.Path)
			return &res, nil
		}
		return nil, errors.Annotate(err, "failed to open config file '%s'", s.Path)
	}
	defer f.Close()

	var loaded Settings
	if err := toml.NewDecoder(f).Decode(&loaded); err != nil {
		return nil, errors.Annotate(err, "failed to read config file '%s'", s.Path)
	}
	loaded.fillDefaults(ctx)
	return &loaded, nil
}

// Save the settings, creating the directory when necessary.
func (s *FileStore) Save(ctx context.Context, settings *Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0700); err != nil {
		return errors.Annotate(err, "failed to create config dir for '%s'", s.Path)
	}
	f, err := os.Create(s.Path)
	if err != nil {
		return errors.Annotate(err, "failed to create config file '%s'", s.Path)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(settings); err != nil {
		return errors.Annotate(err, "failed to write config file '%s'", s.Path)
	}
	logging.Debugf(ctx, "saved settings to '%s'", s.Path)
	return nil
}

// EnvFileStore keeps the credentials in a dotenv file readable only by the
// owner.
type EnvFileStore struct {
	Path string
}

var _ CredentialStore = &EnvFileStore{}

// Credentials from the file; empty when the file does not exist.
func (s *EnvFileStore) Credentials(ctx context.Context) (Credentials, error) {
	if _, err := os.Stat(s.Path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Credentials{}, nil
		}
		return Credentials{}, errors.Annotate(err, "cannot check credentials file '%s'", s.Path)
	}
	env, err := godotenv.Read(s.Path)
	if err != nil {
		return Credentials{}, errors.Annotate(err, "failed to read credentials file '%s'", s.Path)
	}
	return Credentials{Username: env[EnvUsername], Password: env[EnvPassword]}, nil
}

// SaveCredentials overwrites the file.
func (s *EnvFileStore) SaveCredentials(ctx context.Context, c Credentials) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0700); err != nil {
		return errors.Annotate(err, "failed to create config dir for '%s'", s.Path)
	}
	env := map[string]string{EnvUsername: c.Username, EnvPassword: c.Password}
	if err := godotenv.Write(env, s.Path); err != nil {
		return errors.Annotate(err, "failed to write credentials file '%s'", s.Path)
	}
	if err := os.Chmod(s.Path, 0600); err != nil {
		return errors.Annotate(err, "failed to restrict access to '%s'", s.Path)
	}
	return nil
}

// MemoryStore keeps both the settings and the credentials in memory.
type MemoryStore struct {
	mu       sync.Mutex
	settings *Settings
	creds    Credentials
	saves    int
}

var _ Store = &MemoryStore{}
var _ CredentialStore = &MemoryStore{}

// NewMemoryStore with optional initial settings; nil means defaults.
func NewMemoryStore(s *Settings, c Credentials) *MemoryStore {
	m := &MemoryStore{creds: c}
	if s != nil {
		cp := *s
		m.settings = &cp
	}
	return m
}

func (m *MemoryStore) Load(ctx context.Context) (*Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		res := DefaultSettings()
		return &res, nil
	}
	res := *m.settings
	res.fillDefaults(ctx)
	return &res, nil
}

func (m *MemoryStore) Save(ctx context.Context, s *Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.settings = &cp
	m.saves++
	return nil
}

func (m *MemoryStore) Credentials(ctx context.Context) (Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds, nil
}

func (m *MemoryStore) SaveCredentials(ctx context.Context, c Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = c
	m.saves++
	return nil
}

// Saves counts the calls to Save and SaveCredentials.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
