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

package https

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/jacobsa/nbio"
	"github.com/jacobsa/reqtrace"
	"github.com/jacobsa/timeutil"
)

// moduleState is the per-module lifecycle of §4.3.5.
type moduleState int

const (
	stateUninit moduleState = iota
	stateJustInit
	stateIdle
	statePending
	stateStopped
)

// Config configures a new Module.
type Config struct {
	// Logger receives verbose request/response lines (when SetVerbose(true))
	// and debug traces. Nil selects nbio.GetLogger().
	Logger *log.Logger

	// Clock stamps the verbose request/response lines. Nil selects
	// timeutil.RealClock().
	Clock timeutil.Clock
}

// Module is the https facade: an nbio.Module driving a single in-flight
// HTTP request at a time over a real net/http transport (§4.3).
type Module struct {
	logger *log.Logger
	client *http.Client
	clock  timeutil.Clock

	state    moduleState
	stopReq  bool
	events   []Event
	reqStart time.Time

	timerFD    int
	timeout    time.Duration
	timeoutSet bool
	verbose    bool

	pipeR *os.File
	pipeW *os.File

	cancel context.CancelFunc
	report reqtrace.ReportFunc

	// Shared with the request-driving goroutine; guarded by mu.
	mu            sync.Mutex
	respBuf       []byte
	respLen       int
	status        int
	done          bool
	transportErr  error
	lastReportLen int

	lastFail nbio.FailRecord
}

// New allocates a Module. Call Init before issuing any request.
func New(cfg Config) *Module {
	logger := cfg.Logger
	if logger == nil {
		logger = nbio.GetLogger()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock()
	}
	return &Module{
		logger:  logger,
		client:  newClient(),
		clock:   clock,
		timerFD: -1,
	}
}

// Init wires up the module's descriptors and adopts respBuf as the response
// buffer every subsequent request writes into (§3.5). respBuf must hold room
// for a trailing null byte; it is never grown.
func (m *Module) Init(respBuf []byte) error {
	if m.state != stateUninit {
		panic("https: Init called twice")
	}
	if len(respBuf) == 0 {
		return fmt.Errorf("https: respBuf must be non-empty")
	}
	m.respBuf = respBuf

	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, 0)
	if err != nil {
		return fmt.Errorf("timerfd_create: %w", err)
	}
	m.timerFD = fd

	r, w, err := os.Pipe()
	if err != nil {
		unix.Close(fd)
		m.timerFD = -1
		return fmt.Errorf("pipe: %w", err)
	}
	if err := unix.SetNonblock(int(w.Fd()), true); err != nil {
		r.Close()
		w.Close()
		unix.Close(fd)
		m.timerFD = -1
		return fmt.Errorf("set nonblock: %w", err)
	}
	m.pipeR, m.pipeW = r, w

	m.state = stateJustInit
	return nil
}

// SetTimeout sets the per-request timeout. d may be 0, meaning "time out
// immediately" rather than "no timeout" — call SetTimeout never to disable
// the timer (§4.3.2).
func (m *Module) SetTimeout(d time.Duration) {
	m.timeout = d
	m.timeoutSet = true
}

// SetVerbose toggles request/response line logging through the module's
// logger, the AMBIENT STACK equivalent of libcurl's verbose flag (§4.3.6).
func (m *Module) SetVerbose(v bool) {
	m.verbose = v
}

// ReqJSON issues a request with the given body (nil for none), which must be
// JSON if non-nil by this library's convention, though the transport itself
// is content-type agnostic. At most one request may be in flight (§3.5).
func (m *Module) ReqJSON(method, url string, body []byte) error {
	if m.stopReq {
		panic("https: ReqJSON called after StopPrep")
	}
	if m.state == statePending {
		panic("https: ReqJSON called with a request already pending")
	}
	if m.state == stateUninit || m.state == stateJustInit {
		return fmt.Errorf("https: Init must complete before ReqJSON")
	}

	ctx, cancel := context.WithCancel(context.Background())
	ctx, report := reqtrace.StartSpan(ctx, fmt.Sprintf("https.%s", method))

	var bodyReader *bytes.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	var req *http.Request
	var err error
	if bodyReader != nil {
		req, err = http.NewRequestWithContext(ctx, method, url, bodyReader)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, url, nil)
	}
	if err != nil {
		cancel()
		report(err)
		return err
	}

	m.mu.Lock()
	m.respLen = 0
	if len(m.respBuf) > 0 {
		m.respBuf[0] = 0
	}
	m.status = 0
	m.done = false
	m.transportErr = nil
	m.lastReportLen = 0
	m.mu.Unlock()

	m.cancel = cancel
	m.report = report
	m.state = statePending
	m.reqStart = m.clock.Now()
	if m.verbose {
		m.logger.Printf("%s %s", method, url)
	}

	m.armTimer()
	go m.runRequest(req)

	return nil
}

// RespStatus returns the HTTP status code of the current or most recent
// request; zero before any status line has arrived.
func (m *Module) RespStatus() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// RespData returns the response body accumulated so far, not including the
// trailing null byte.
func (m *Module) RespData() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.respBuf[:m.respLen]
}

// RespLen returns len(RespData()).
func (m *Module) RespLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.respLen
}

// PollFDs implements nbio.Module.
func (m *Module) PollFDs(out []unix.PollFd) []unix.PollFd {
	if m.state != statePending {
		return out
	}
	out = append(out, unix.PollFd{Fd: int32(m.pipeR.Fd()), Events: unix.POLLIN})
	if m.timeoutSet {
		out = append(out, unix.PollFd{Fd: int32(m.timerFD), Events: unix.POLLIN})
	}
	return out
}

// Update implements nbio.Module.
func (m *Module) Update(ready []unix.PollFd) error {
	m.events = m.events[:0]

	if m.state == stateJustInit {
		m.state = stateIdle
		m.emit(Event{Kind: EventInit})
	}

	if m.stopReq && m.state == stateIdle {
		m.state = stateStopped
		m.emit(Event{Kind: EventStop})
		return nil
	}

	if m.state != statePending {
		return nil
	}

	if re := revents(ready, int32(m.timerFD)); re&unix.POLLIN != 0 {
		drainTimer(m.timerFD)
		m.lastFail = nbio.NewFail(0, 0, "request timed out")
		if m.cancel != nil {
			m.cancel()
		}
		if m.report != nil {
			m.report(m.lastFail)
		}
		m.emit(Event{Kind: EventReqFail, Fail: m.lastFail})
		m.finishTransition()
		return nil
	}

	if re := revents(ready, int32(m.pipeR.Fd())); re&unix.POLLIN != 0 {
		drainPipe(int(m.pipeR.Fd()))
		m.handleRequestWake()
	}

	return nil
}

func (m *Module) handleRequestWake() {
	m.mu.Lock()
	status := m.status
	respLen := m.respLen
	done := m.done
	transportErr := m.transportErr
	m.mu.Unlock()

	if !done {
		if respLen > m.lastReportLen {
			m.lastReportLen = respLen
			m.emit(Event{Kind: EventReqData, Status: status})
		}
		return
	}

	m.disarmTimer()
	if m.verbose {
		m.logger.Printf("done in %s, status %d", m.clock.Now().Sub(m.reqStart), status)
	}
	if transportErr != nil {
		m.lastFail = nbio.NewFail(0, 0, "request failed: %v", transportErr)
		m.emit(Event{Kind: EventReqFail, Status: status, Fail: m.lastFail})
	} else {
		m.emit(Event{Kind: EventReqFin, Status: status})
	}
	m.finishTransition()
}

// finishTransition returns the module to idle, or to stopped if a StopPrep
// arrived while the request was in flight (§4.3.5).
func (m *Module) finishTransition() {
	if m.report != nil {
		m.report(nil)
		m.report = nil
	}
	m.cancel = nil

	if m.stopReq {
		m.state = stateStopped
		m.emit(Event{Kind: EventStop})
		return
	}
	m.state = stateIdle
}

func revents(ready []unix.PollFd, fd int32) int16 {
	for _, pfd := range ready {
		if pfd.Fd == fd {
			return pfd.Revents
		}
	}
	return 0
}

// drainPipe reads every pending wake byte. os.File.Fd() leaves the pipe in
// blocking mode, so it is switched back to non-blocking first; otherwise the
// read after the last byte would wait for the next wake.
func drainPipe(fd int) {
	unix.SetNonblock(fd, true)
	var buf [64]byte
	for {
		n, err := unix.Read(fd, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (m *Module) emit(ev Event) {
	m.events = append(m.events, ev)
}

// Events implements nbio.Module.
func (m *Module) Events(out []Event) []Event {
	return append(out, m.events...)
}

// StopPrep implements nbio.Module. It only records the request and, if a
// request is in flight, cancels it; per §4.1 a module may only produce
// events from Update, so the transition to stopped — and the resulting
// EventStop — is always reported on a later Update (§4.3.5).
func (m *Module) StopPrep() {
	m.stopReq = true
	if m.state == statePending && m.cancel != nil {
		m.cancel()
	}
}

// Stop implements nbio.Module.
func (m *Module) Stop() error {
	if m.state == statePending {
		panic("https: Stop called with a request still pending")
	}
	if m.timerFD >= 0 {
		unix.Close(m.timerFD)
		m.timerFD = -1
	}
	if m.pipeR != nil {
		m.pipeR.Close()
	}
	if m.pipeW != nil {
		m.pipeW.Close()
	}
	return nil
}
