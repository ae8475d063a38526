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
	"time"

	"github.com/stockparfait/logging"
)

// Retry re-runs an operation failing with a specific error kind.
type Retry struct {
	Attempts int           // total number of attempts, at least 1
	Delay    time.Duration // between attempts
	On       Kind          // only errors of this kind are retried
	// Sleep, when set, replaces the context-aware wait between attempts.
	Sleep func(time.Duration)
}

func (r Retry) wait(ctx context.Context) error {
	if r.Sleep != nil {
		r.Sleep(r.Delay)
		return nil
	}
	t := time.NewTimer(r.Delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs f until it succeeds, fails with an error of a different kind, or the
// attempts are exhausted. The last error is returned unchanged.
func (r Retry) Do(ctx context.Context, name string, f func() error) error {
	var err error
	for i := 1; ; i++ {
		if err = f(); err == nil {
			return nil
		}
		if KindOf(err) != r.On || i >= r.Attempts {
			return err
		}
		logging.Warningf(ctx, "%s: attempt %d of %d failed: %s; retrying in %s",
			name, i, r.Attempts, err.Error(), r.Delay)
		if r.wait(ctx) != nil {
			return err
		}
	}
}
