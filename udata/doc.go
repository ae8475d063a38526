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

// Package udata implements the connection layer of a client for a financial
// market data service (quotes, fundamentals, fund, bond, futures and HK market
// reference data).
//
// Every data accessor reduces to a single call:
//
//   Send(ctx, method, params) -> *table.Table
//
// which is issued as an HTTP request to {url}/{url_path}/{method} carrying the
// license token in the Application-Token header. The response is classified
// into a table of rows or one of the Error kinds.
//
// Connections are pooled by ConnectionPool. The number of concurrent requests
// is bounded by the configured pool size; callers beyond capacity wait for a
// free slot or until their context is done. Requests which time out are retried
// up to 3 times, connection creation up to 5 times.
//
// Client binds a pool to a persisted configuration (Store) and credentials
// (CredentialStore). A process-wide default Client is available via Default()
// and the package-level Init, SetToken, Environ and GetData functions. Library
// code should prefer an explicit Client injected with UseClient.
package udata
