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

// ConnectionState of a single Connection.
type ConnectionState int

// Values of ConnectionState. Only Connected and SafeConnected connections can
// send requests.
const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	SafeConnecting
	SafeConnected
	Registering
	Registered
	Rejected
)

var stateNames = []string{
	"Disconnected",
	"Connecting",
	"Connected",
	"SafeConnecting",
	"SafeConnected",
	"Registering",
	"Registered",
	"Rejected",
}

func (s ConnectionState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// Usable reports whether a connection in this state may send requests.
func (s ConnectionState) Usable() bool {
	return s == Connected || s == SafeConnected
}
