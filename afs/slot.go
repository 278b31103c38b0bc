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

import (
	"strings"

	"golang.org/x/sys/unix"

	"github.com/jacobsa/nbio"
	"github.com/jacobsa/reqtrace"
)

// slotState is the per-slot lifecycle of §4.2.4.
type slotState int

const (
	slotUninit slotState = iota
	slotInitPending
	slotAvailable
	slotBusy
	slotDead
)

// slot is one worker: a child process, its control socket, and its shared
// page, plus the bookkeeping needed to run the state machine in §4.2.4.
//
// The first field is left unused while the slot is parked on
// Context.free (internal/freelist overwrites it with the free-list link);
// allocSlot always zeroes a reused slot before handing it back out, so no
// code ever observes that overwrite.
type slot struct {
	handle Handle
	state  slotState
	w      *spawnedWorker

	// The command about to be (or currently being) run.
	pendingCmd            cmdKind
	pendingOpenFlags      int32
	pendingPath           string
	pendingWriteLen       int
	terminalAfterSuccess  bool
	inFlightCmd           cmdKind

	isStopReq bool
	fail      nbio.FailRecord

	// report closes the reqtrace span opened for the in-flight command when
	// its terminal event is emitted; nil when no command is outstanding.
	report reqtrace.ReportFunc
}

// updateSlot advances one slot given the readiness flags observed for its
// control-socket fd (0 if the slot has no fd or it wasn't in the readiness
// set).
func (c *Context) updateSlot(s *slot, re int16) {
	switch s.state {
	case slotInitPending:
		c.updateInitPending(s, re)
	case slotBusy:
		c.updateBusy(s, re)
	case slotAvailable, slotUninit, slotDead:
		// Nothing to advance; these states only change in response to a
		// new command or StopPrep, not spontaneously during Update.
	}
}

func (c *Context) updateInitPending(s *slot, re int16) {
	if re == 0 {
		return
	}

	// Hangup/error takes precedence over readable (§4.2.4 tie-break).
	if re&(unix.POLLHUP|unix.POLLERR) != 0 {
		s.w.destroy()
		s.fail = nbio.NewFail(0, 0, "worker exited during init")
		reportSpan(s, s.fail)
		c.emit(Event{Kind: EventInitFail, Handle: s.handle, Fail: s.fail})
		c.freeSlot(s)
		return
	}

	if re&unix.POLLIN != 0 {
		var b [1]byte
		unix.Read(s.w.sockFD, b[:])
		s.state = slotAvailable
		c.emit(Event{Kind: EventInit, Handle: s.handle})

		// If a command was queued before init finished (the normal case for
		// Open: the very first command on a handle is also what triggers
		// slot creation), dispatch it now.
		if s.pendingCmd != cmdNone {
			c.dispatch(s)
		}
	}
}

func (c *Context) updateBusy(s *slot, re int16) {
	if re == 0 {
		return
	}

	if re&(unix.POLLHUP|unix.POLLERR) != 0 {
		s.fail = nbio.NewFail(0, 0, "worker died while running %v", s.inFlightCmd)
		c.lastFail = s.fail
		reportSpan(s, s.fail)
		c.emit(Event{Kind: failKindFor(s.inFlightCmd), Handle: s.handle, Fail: s.fail})
		s.w.destroy()
		c.freeSlot(s)
		return
	}

	if re&unix.POLLIN == 0 {
		return
	}

	var b [1]byte
	unix.Read(s.w.sockFD, b[:])

	ctrl := castCtrl(s.w.page)
	cmd := s.inFlightCmd

	if resultKind(ctrl.result) != resultOK {
		s.fail = getFail(ctrl)
		c.lastFail = s.fail
		reportSpan(s, s.fail)
		c.emit(Event{Kind: failKindFor(cmd), Handle: s.handle, Fail: s.fail})
		s.state = slotAvailable
		if s.terminalAfterSuccess || s.isStopReq {
			c.sendExit(s)
		}
		return
	}

	ev := Event{Kind: successKindFor(cmd), Handle: s.handle}
	switch cmd {
	case cmdWrite:
		ev.WriteLen = int(ctrl.bytesWritten)
	case cmdReadAll:
		n := int(ctrl.bytesRead)
		ev.ReadData = s.w.page[ctrlSize : ctrlSize+n]
	case cmdReaddir:
		n := int(ctrl.bytesRead)
		joined := string(s.w.page[ctrlSize : ctrlSize+n])
		if joined != "" {
			ev.DirNames = strings.Split(joined, "\n")
		}
	}
	reportSpan(s, nil)
	c.emit(ev)

	s.state = slotAvailable
	if s.terminalAfterSuccess || s.isStopReq {
		c.sendExit(s)
	}
}

// reportSpan closes the reqtrace span opened for s's in-flight command, if
// any. Once a span has been reported (including by beginCommand when
// spawning the worker failed) report is nil and this is a no-op.
func reportSpan(s *slot, err error) {
	if s.report != nil {
		s.report(err)
		s.report = nil
	}
}

func failKindFor(cmd cmdKind) EventKind {
	switch cmd {
	case cmdOpen:
		return EventOpenFail
	case cmdClose:
		return EventCloseFail
	case cmdFsync:
		return EventFsyncFail
	case cmdWrite:
		return EventWriteFail
	case cmdReadAll:
		return EventReadAllFail
	case cmdMkdir:
		return EventMkdirFail
	case cmdReaddir:
		return EventReaddirFail
	default:
		return EventInitFail
	}
}

func successKindFor(cmd cmdKind) EventKind {
	switch cmd {
	case cmdOpen:
		return EventOpen
	case cmdClose:
		return EventClose
	case cmdFsync:
		return EventFsync
	case cmdWrite:
		return EventWrite
	case cmdReadAll:
		return EventReadAll
	case cmdMkdir:
		return EventMkdir
	case cmdReaddir:
		return EventReaddir
	default:
		return EventInit
	}
}
