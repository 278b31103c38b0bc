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

// Package afs is an asynchronous filesystem facade: every blocking file
// descriptor is hidden behind a dedicated worker process connected by a
// control socket and a shared memory page, so a single-threaded host event
// loop never blocks on disk (§4.2 of the design).
package afs

import (
	"context"
	"fmt"
	"log"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/jacobsa/nbio"
	"github.com/jacobsa/nbio/internal/freelist"
	"github.com/jacobsa/reqtrace"
)

// Handle is the opaque integer AFS issues to identify a worker slot. It is
// distinct from any OS file descriptor.
type Handle int32

// Config configures a new Context.
type Config struct {
	// MinRWBuf is the minimum size in bytes of each slot's rw-buffer. The
	// actual capacity is rounded up to a whole number of OS pages minus the
	// control struct (§6.2). Zero selects a 64 KiB default.
	MinRWBuf int

	// Logger receives debug traces of every slot transition. Nil selects
	// nbio.GetLogger().
	Logger *log.Logger
}

const defaultMinRWBuf = 64 * 1024

// Context is the AFS facade: the nbio.Module implementation that owns every
// worker slot.
type Context struct {
	cfg    Config
	logger *log.Logger

	minRWBuf int
	slots    []*slot // index by Handle
	free     freelist.Freelist

	events   []Event
	stopReq  bool
	stopped  bool // EventStop has been emitted
	lastFail nbio.FailRecord

	// pendingEvents holds events produced by an action taken outside Update
	// (StopPrep's immediate destruction of init-pending workers, and a
	// worker that Open, Mkdir or Readdir failed to spawn); they are
	// delivered on the next Update call, per the "Update is the only place
	// a module may produce events" rule.
	pendingEvents []Event
}

// New allocates a Context. It starts in the running state; call StopPrep
// then Stop to tear it down.
func New(cfg Config) *Context {
	logger := cfg.Logger
	if logger == nil {
		logger = nbio.GetLogger()
	}

	minRWBuf := cfg.MinRWBuf
	if minRWBuf <= 0 {
		minRWBuf = defaultMinRWBuf
	}

	return &Context{
		cfg:      cfg,
		logger:   logger,
		minRWBuf: minRWBuf,
	}
}

// allocSlot returns a slot bound to a fresh Handle, reusing a free slot
// struct if one is parked on the free list (§4.2.2).
func (c *Context) allocSlot() (Handle, *slot) {
	var s *slot
	if p := c.free.Get(); p != nil {
		s = (*slot)(p)
		*s = slot{}
	} else {
		s = &slot{}
	}

	// Reuse the lowest free index so Handle values are in fact reused, per
	// §3.2, rather than growing forever.
	for i, existing := range c.slots {
		if existing == nil {
			c.slots[i] = s
			s.handle = Handle(i)
			return s.handle, s
		}
	}

	c.slots = append(c.slots, s)
	s.handle = Handle(len(c.slots) - 1)
	return s.handle, s
}

func (c *Context) freeSlot(s *slot) {
	c.slots[s.handle] = nil
	c.free.Put(unsafe.Pointer(s))
}

func (c *Context) slotFor(h Handle) (*slot, error) {
	if h < 0 || int(h) >= len(c.slots) || c.slots[h] == nil {
		return nil, fmt.Errorf("bad handle %d", h)
	}
	return c.slots[h], nil
}

func (c *Context) emit(ev Event) {
	c.events = append(c.events, ev)
}

// beginCommand spawns a worker for a brand new slot (first command on a
// handle) or queues the command to run as soon as an existing slot becomes
// available.
func (c *Context) beginCommand(s *slot, cmd cmdKind, openFlags int32, path string, writeLen int, terminal bool) error {
	if c.stopReq {
		panic(fmt.Sprintf("afs: %v issued on handle %d after StopPrep", cmd, s.handle))
	}

	s.pendingCmd = cmd
	s.pendingOpenFlags = openFlags
	s.pendingPath = path
	s.pendingWriteLen = writeLen
	s.terminalAfterSuccess = terminal

	_, s.report = reqtrace.StartSpan(context.Background(), fmt.Sprintf("afs.%v", cmd))

	switch s.state {
	case slotUninit:
		w, err := spawnWorker(c.minRWBuf)
		if err != nil {
			reportSpan(s, err)
			return err
		}
		s.w = w
		s.state = slotInitPending
		return nil
	case slotAvailable:
		c.dispatch(s)
		return nil
	default:
		// Exactly one command in flight per handle is a caller invariant, not
		// a recoverable runtime condition (§3.3) — treat violating it the
		// way connection.go treats an unknown request ID in finishOp.
		panic(fmt.Sprintf("afs: handle %d already has a command in flight", s.handle))
	}
}

// dispatch writes the pending command into the control struct and signals
// the child, transitioning available -> busy.
func (c *Context) dispatch(s *slot) {
	ctrl := castCtrl(s.w.page)
	ctrl.cmd = int32(s.pendingCmd)
	ctrl.result = int32(resultNone)
	ctrl.openFlags = s.pendingOpenFlags

	if s.pendingPath != "" {
		rwbuf := s.w.page[ctrlSize:]
		n := copy(rwbuf, s.pendingPath)
		ctrl.pathLen = int32(n)
	}
	if s.pendingWriteLen > 0 {
		ctrl.writeLen = uint64(s.pendingWriteLen)
	}

	s.state = slotBusy
	s.inFlightCmd = s.pendingCmd
	_, _ = writeByte(s.w.sockFD)
}

// RWBuf returns the caller-writable/readable tail of the slot's shared
// page, for staging Write input or reading ReadAll output without copying
// at the API boundary (§4.2.1).
func (c *Context) RWBuf(h Handle) ([]byte, error) {
	s, err := c.slotFor(h)
	if err != nil {
		return nil, err
	}
	if s.w == nil {
		return nil, fmt.Errorf("handle %d has no worker yet", h)
	}
	return s.w.page[ctrlSize:], nil
}

// Open issues a non-blocking open against a freshly allocated handle.
func (c *Context) Open(path string, flags int) Handle {
	h, s := c.allocSlot()
	if err := c.beginCommand(s, cmdOpen, int32(flags), path, 0, false); err != nil {
		s.fail = nbio.NewFail(1, 0, "spawn worker: %v", err)
		c.pendingEvents = append(c.pendingEvents, Event{Kind: EventOpenFail, Handle: h, Fail: s.fail})
		c.freeSlot(s)
	}
	return h
}

// Close requests that the handle's underlying file descriptor be closed.
// The handle becomes invalid once the matching terminal event is observed.
func (c *Context) Close(h Handle) error {
	s, err := c.slotFor(h)
	if err != nil {
		return err
	}
	return c.beginCommand(s, cmdClose, 0, "", 0, true)
}

// Fsync requests an fsync of the handle's underlying file descriptor.
func (c *Context) Fsync(h Handle) error {
	s, err := c.slotFor(h)
	if err != nil {
		return err
	}
	return c.beginCommand(s, cmdFsync, 0, "", 0, false)
}

// Write stages writeLen bytes (previously placed in RWBuf's slice) to the
// handle's underlying file descriptor.
func (c *Context) Write(h Handle, writeLen int) error {
	s, err := c.slotFor(h)
	if err != nil {
		return err
	}
	return c.beginCommand(s, cmdWrite, 0, "", writeLen, false)
}

// ReadAll reads up to the rw-buffer's capacity from the handle's underlying
// file descriptor.
func (c *Context) ReadAll(h Handle) error {
	s, err := c.slotFor(h)
	if err != nil {
		return err
	}
	return c.beginCommand(s, cmdReadAll, 0, "", 0, false)
}

// Mkdir creates dir durably on a dedicated, single-use slot (§4.2.8).
func (c *Context) Mkdir(dir string) Handle {
	h, s := c.allocSlot()
	if err := c.beginCommand(s, cmdMkdir, 0, dir, 0, true); err != nil {
		s.fail = nbio.NewFail(1, 0, "spawn worker: %v", err)
		c.pendingEvents = append(c.pendingEvents, Event{Kind: EventMkdirFail, Handle: h, Fail: s.fail})
		c.freeSlot(s)
	}
	return h
}

// Readdir lists dir's entries on a dedicated, single-use slot, a feature
// supplemented from original_source/src/afs.c (§4.2.10).
func (c *Context) Readdir(dir string) Handle {
	h, s := c.allocSlot()
	if err := c.beginCommand(s, cmdReaddir, 0, dir, 0, true); err != nil {
		s.fail = nbio.NewFail(1, 0, "spawn worker: %v", err)
		c.pendingEvents = append(c.pendingEvents, Event{Kind: EventReaddirFail, Handle: h, Fail: s.fail})
		c.freeSlot(s)
	}
	return h
}

// PollFDs implements nbio.Module.
func (c *Context) PollFDs(out []unix.PollFd) []unix.PollFd {
	for _, s := range c.slots {
		if s == nil {
			continue
		}
		switch s.state {
		case slotInitPending, slotBusy:
			out = append(out, unix.PollFd{Fd: int32(s.w.sockFD), Events: unix.POLLIN})
		}
	}
	return out
}

// Update implements nbio.Module.
func (c *Context) Update(ready []unix.PollFd) error {
	c.events = append(c.events[:0], c.pendingEvents...)
	c.pendingEvents = c.pendingEvents[:0]

	for _, s := range c.slots {
		if s == nil {
			continue
		}
		c.updateSlot(s, revents(ready, s))
	}

	if c.stopReq && !c.stopped && c.allUninit() {
		c.stopped = true
		c.emit(Event{Kind: EventStop, Handle: -1, Fail: c.lastFail})
	}

	return nil
}

func revents(ready []unix.PollFd, s *slot) int16 {
	if s.w == nil {
		return 0
	}
	for _, pfd := range ready {
		if int(pfd.Fd) == s.w.sockFD {
			return pfd.Revents
		}
	}
	return 0
}

func (c *Context) allUninit() bool {
	for _, s := range c.slots {
		if s != nil {
			return false
		}
	}
	return true
}

// Events implements nbio.Module.
func (c *Context) Events(out []Event) []Event {
	return append(out, c.events...)
}

// StopPrep implements nbio.Module. It marks every live slot for teardown;
// idle slots are destroyed immediately, busy slots on their next idle
// transition (§4.2.9). Per §4.1, StopPrep never produces events itself —
// it only sets flags and tears down workers; the resulting EventInitFail
// and EventStop are delivered on the next Update call.
func (c *Context) StopPrep() {
	c.stopReq = true
	for _, s := range c.slots {
		if s == nil {
			continue
		}
		s.isStopReq = true
		switch s.state {
		case slotAvailable:
			c.sendExit(s)
		case slotInitPending:
			s.w.destroy()
			fail := nbio.NewFail(0, 0, "stop requested during init")
			c.lastFail = fail
			reportSpan(s, fail)
			c.pendingEvents = append(c.pendingEvents, Event{Kind: EventInitFail, Handle: s.handle, Fail: fail})
			c.freeSlot(s)
		}
	}
}

func (c *Context) sendExit(s *slot) {
	ctrl := castCtrl(s.w.page)
	ctrl.cmd = int32(cmdExit)
	_, _ = writeByte(s.w.sockFD)
	s.w.destroy()
	c.freeSlot(s)
}

// Stop implements nbio.Module.
func (c *Context) Stop() error {
	if !c.allUninit() {
		panic("afs: Stop called with live slots outstanding")
	}
	return nil
}
