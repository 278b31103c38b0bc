// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package https is a readiness-driven async HTTP client: a single request is
// dispatched to a real net/http transport on a dedicated goroutine, and its
// progress is surfaced to a host event loop purely through pollable file
// descriptors (§4.3 of the design).
package https

import "github.com/jacobsa/nbio"

// EventKind enumerates the terminal events a Module can produce.
type EventKind int

const (
	EventInit EventKind = iota
	EventInitFail
	EventStop
	EventStopFail
	EventReqData
	EventReqFin
	EventReqFail
)

func (k EventKind) String() string {
	switch k {
	case EventInit:
		return "init"
	case EventInitFail:
		return "init_fail"
	case EventStop:
		return "stop"
	case EventStopFail:
		return "stop_fail"
	case EventReqData:
		return "req_data"
	case EventReqFin:
		return "req_fin"
	case EventReqFail:
		return "req_fail"
	default:
		return "unknown"
	}
}

// Event is a single HTTPS occurrence produced during an Update call.
type Event struct {
	Kind EventKind

	// Status is the HTTP response status code, set on EventReqFin (and on
	// EventReqData once the header has arrived).
	Status int

	// Fail carries the failure detail for EventInitFail/EventReqFail.
	Fail nbio.FailRecord
}

// Stopped implements nbio.Event.
func (e Event) Stopped() bool { return e.Kind == EventStop }
