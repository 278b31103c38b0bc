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

package nbio

import "golang.org/x/sys/unix"

// Module is the capability set shared by every asynchronous primitive in
// this repository (afs.Context, https.Module, and so on). A host event loop
// drives any number of modules uniformly:
//
//	for {
//	        var fds []unix.PollFd
//	        for _, m := range modules {
//	                fds = m.PollFDs(fds)
//	        }
//	        unix.Poll(fds, -1)
//	        for _, m := range modules {
//	                m.Update(fds)
//	                for _, ev := range m.Events(nil) {
//	                        handle(ev)
//	                }
//	        }
//	}
//
// Update is the only place a module may advance its state machine or
// produce events; the events returned by Events are valid only until the
// next call to Update.
type Module interface {
	// PollFDs appends the descriptors this module needs included in the
	// host's next readiness wait to out and returns the extended slice.
	PollFDs(out []unix.PollFd) []unix.PollFd

	// Update consumes the readiness set collected via PollFDs (ready may be
	// a superset containing other modules' descriptors; a module ignores
	// entries for file descriptors it does not own) and advances state.
	// Update with no relevant readiness entries is legal and may be a no-op.
	Update(ready []unix.PollFd) error

	// Events appends events produced by the most recent Update to out and
	// returns the extended slice. Calling Events without an intervening
	// Update returns nothing new.
	Events(out []Event) []Event

	// StopPrep requests graceful quiescence. It is idempotent but must not
	// be called again before a Stopped event has been observed.
	StopPrep()

	// Stop releases all resources. It is only legal after a Stopped event.
	Stop() error
}

// Event is the common envelope every module's Events call yields. Kind
// namespaces are module-specific (see afs.EventKind, https.EventKind, ...);
// Stopped is the one kind every module shares, so that a host driving a
// heterogeneous set of modules can recognize shutdown completion without
// switching on the module's concrete event type.
type Event interface {
	// Stopped reports whether this event is the module's terminal "fully
	// torn down" event.
	Stopped() bool
}
