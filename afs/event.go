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

package afs

import "github.com/jacobsa/nbio"

// EventKind enumerates the terminal events AFS can produce. Every command
// has a success kind and a matching "_fail" kind, following the naming
// convention of the underlying record format this library was distilled
// from.
type EventKind int

const (
	EventInit EventKind = iota
	EventInitFail
	EventStop
	EventStopFail
	EventOpen
	EventOpenFail
	EventClose
	EventCloseFail
	EventFsync
	EventFsyncFail
	EventWrite
	EventWriteFail
	EventReadAll
	EventReadAllFail
	EventMkdir
	EventMkdirFail
	EventReaddir
	EventReaddirFail
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
	case EventOpen:
		return "open"
	case EventOpenFail:
		return "open_fail"
	case EventClose:
		return "close"
	case EventCloseFail:
		return "close_fail"
	case EventFsync:
		return "fsync"
	case EventFsyncFail:
		return "fsync_fail"
	case EventWrite:
		return "write"
	case EventWriteFail:
		return "write_fail"
	case EventReadAll:
		return "readall"
	case EventReadAllFail:
		return "readall_fail"
	case EventMkdir:
		return "mkdir"
	case EventMkdirFail:
		return "mkdir_fail"
	case EventReaddir:
		return "readdir"
	case EventReaddirFail:
		return "readdir_fail"
	default:
		return "unknown"
	}
}

// Event is a single AFS occurrence produced during an Update call. Handle is
// -1 for the final Stop event, which has no associated slot.
type Event struct {
	Kind   EventKind
	Handle Handle

	// WriteLen is the number of bytes actually written; set only on
	// EventWrite.
	WriteLen int

	// ReadData borrows directly from the slot's rw-buffer; it is valid only
	// until the next call to Update. Set only on EventReadAll.
	ReadData []byte

	// DirNames is the directory listing produced by Readdir, newline-split
	// out of the rw-buffer. Set only on EventReaddir.
	DirNames []string

	// Fail carries the failure detail for any "_fail" kind.
	Fail nbio.FailRecord
}

// Stopped implements nbio.Event.
func (e Event) Stopped() bool { return e.Kind == EventStop }
