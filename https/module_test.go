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

package https_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	. "github.com/jacobsa/ogletest"

	"github.com/jacobsa/nbio/https"
)

func TestHTTPS(t *testing.T) { RunTests(t) }

////////////////////////////////////////////////////////////////////////
// Boilerplate
////////////////////////////////////////////////////////////////////////

type HTTPSTest struct {
	server *httptest.Server
	mod    *https.Module
	buf    [4096]byte
}

func init() { RegisterTestSuite(&HTTPSTest{}) }

func (t *HTTPSTest) SetUp(ti *TestInfo) {
	t.mod = https.New(https.Config{})
	AssertEq(nil, t.mod.Init(t.buf[:]))
}

func (t *HTTPSTest) TearDown() {
	if t.server != nil {
		t.server.Close()
	}
}

// pumpUntil drives Update/Events in a loop, polling the module's descriptors
// with a short timeout, until pred reports done or the deadline passes.
func (t *HTTPSTest) pumpUntil(pred func([]https.Event) bool) []https.Event {
	deadline := time.Now().Add(5 * time.Second)
	var all []https.Event

	for time.Now().Before(deadline) {
		fds := t.mod.PollFDs(nil)
		if len(fds) > 0 {
			unix.Poll(fds, 50)
		} else {
			time.Sleep(10 * time.Millisecond)
		}

		err := t.mod.Update(fds)
		AssertEq(nil, err)

		evs := t.mod.Events(nil)
		all = append(all, evs...)
		if pred(all) {
			return all
		}
	}

	panic("pumpUntil: deadline exceeded")
}

func hasKind(evs []https.Event, k https.EventKind) bool {
	for _, e := range evs {
		if e.Kind == k {
			return true
		}
	}
	return false
}

////////////////////////////////////////////////////////////////////////
// Test functions
////////////////////////////////////////////////////////////////////////

func (t *HTTPSTest) SuccessfulRequest() {
	t.server = httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"ok":true}`))
		}))

	// Drain the init event first.
	t.pumpUntil(func(evs []https.Event) bool { return hasKind(evs, https.EventInit) })

	err := t.mod.ReqJSON("GET", t.server.URL, nil)
	AssertEq(nil, err)

	evs := t.pumpUntil(func(evs []https.Event) bool {
		return hasKind(evs, https.EventReqFin) || hasKind(evs, https.EventReqFail)
	})

	AssertTrue(hasKind(evs, https.EventReqFin))
	ExpectEq(http.StatusOK, t.mod.RespStatus())
	ExpectEq(`{"ok":true}`, string(t.mod.RespData()))
}

func (t *HTTPSTest) RequestTimesOut() {
	blockCh := make(chan struct{})
	t.server = httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			<-blockCh
		}))
	defer close(blockCh)

	t.pumpUntil(func(evs []https.Event) bool { return hasKind(evs, https.EventInit) })

	t.mod.SetTimeout(50 * time.Millisecond)
	err := t.mod.ReqJSON("GET", t.server.URL, nil)
	AssertEq(nil, err)

	evs := t.pumpUntil(func(evs []https.Event) bool {
		return hasKind(evs, https.EventReqFin) || hasKind(evs, https.EventReqFail)
	})

	ExpectTrue(hasKind(evs, https.EventReqFail))
}

func (t *HTTPSTest) StopPrepAndStopAfterQuiescence() {
	// Drain the synchronous init event first so the module reaches idle.
	t.pumpUntil(func(evs []https.Event) bool { return hasKind(evs, https.EventInit) })

	// The module is already idle, so StopPrep only records the request; the
	// stop event itself is reported on the next Update, not synchronously.
	t.mod.StopPrep()
	evs := t.pumpUntil(func(evs []https.Event) bool { return hasKind(evs, https.EventStop) })
	ExpectTrue(hasKind(evs, https.EventStop))

	AssertEq(nil, t.mod.Stop())
}

func (t *HTTPSTest) PanicsOnConcurrentRequest() {
	t.server = httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(time.Second)
		}))

	t.pumpUntil(func(evs []https.Event) bool { return hasKind(evs, https.EventInit) })

	err := t.mod.ReqJSON("GET", t.server.URL, nil)
	AssertEq(nil, err)

	defer func() {
		r := recover()
		ExpectNe(nil, r)
	}()
	t.mod.ReqJSON("GET", t.server.URL, nil)
}
