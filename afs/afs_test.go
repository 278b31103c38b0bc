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

package afs_test

import (
	"io/ioutil"
	"os"
	"path"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	. "github.com/jacobsa/ogletest"

	"github.com/jacobsa/nbio/afs"
)

func TestAFS(t *testing.T) { RunTests(t) }

////////////////////////////////////////////////////////////////////////
// Boilerplate
////////////////////////////////////////////////////////////////////////

type AFSTest struct {
	dir string
	ctx *afs.Context
}

func init() { RegisterTestSuite(&AFSTest{}) }

func (t *AFSTest) SetUp(ti *TestInfo) {
	var err error
	t.dir, err = ioutil.TempDir("", "afs_test")
	if err != nil {
		panic(err)
	}
	t.ctx = afs.New(afs.Config{})
}

func (t *AFSTest) TearDown() {
	os.RemoveAll(t.dir)
}

func (t *AFSTest) pumpUntil(pred func([]afs.Event) bool) []afs.Event {
	deadline := time.Now().Add(10 * time.Second)
	var all []afs.Event

	for time.Now().Before(deadline) {
		fds := t.ctx.PollFDs(nil)
		if len(fds) > 0 {
			unix.Poll(fds, 50)
		} else {
			time.Sleep(10 * time.Millisecond)
		}

		AssertEq(nil, t.ctx.Update(fds))

		evs := t.ctx.Events(nil)
		all = append(all, evs...)
		if pred(all) {
			return all
		}
	}

	panic("pumpUntil: deadline exceeded")
}

func hasKind(evs []afs.Event, k afs.EventKind) bool {
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

func (t *AFSTest) WriteReadAllClose() {
	p := path.Join(t.dir, "foo")
	h := t.ctx.Open(p, os.O_RDWR|os.O_CREATE|os.O_TRUNC)

	t.pumpUntil(func(evs []afs.Event) bool { return hasKind(evs, afs.EventOpen) })

	buf, err := t.ctx.RWBuf(h)
	AssertEq(nil, err)
	n := copy(buf, "tacoburrito")

	AssertEq(nil, t.ctx.Write(h, n))
	evs := t.pumpUntil(func(evs []afs.Event) bool { return hasKind(evs, afs.EventWrite) })
	for _, e := range evs {
		if e.Kind == afs.EventWrite {
			ExpectEq(n, e.WriteLen)
		}
	}

	AssertEq(nil, t.ctx.Fsync(h))
	t.pumpUntil(func(evs []afs.Event) bool { return hasKind(evs, afs.EventFsync) })

	// h's file offset now sits past the bytes just written, so they are read
	// back through a second handle opened at offset 0.
	r := t.ctx.Open(p, os.O_RDONLY)
	t.pumpUntil(func(evs []afs.Event) bool { return hasKind(evs, afs.EventOpen) })

	AssertEq(nil, t.ctx.ReadAll(r))
	evs = t.pumpUntil(func(evs []afs.Event) bool { return hasKind(evs, afs.EventReadAll) })
	var got string
	for _, e := range evs {
		if e.Kind == afs.EventReadAll {
			got = string(e.ReadData)
		}
	}
	ExpectEq("tacoburrito", got)

	AssertEq(nil, t.ctx.Close(r))
	t.pumpUntil(func(evs []afs.Event) bool { return hasKind(evs, afs.EventClose) })

	AssertEq(nil, t.ctx.Close(h))
	t.pumpUntil(func(evs []afs.Event) bool { return hasKind(evs, afs.EventClose) })
}

func (t *AFSTest) OpenNonexistentFails() {
	p := path.Join(t.dir, "does-not-exist")
	h := t.ctx.Open(p, os.O_RDONLY)

	evs := t.pumpUntil(func(evs []afs.Event) bool {
		return hasKind(evs, afs.EventOpen) || hasKind(evs, afs.EventOpenFail)
	})
	ExpectTrue(hasKind(evs, afs.EventOpenFail))
	_ = h
}

func (t *AFSTest) Mkdir() {
	p := path.Join(t.dir, "subdir")
	h := t.ctx.Mkdir(p)

	t.pumpUntil(func(evs []afs.Event) bool { return hasKind(evs, afs.EventMkdir) })
	_ = h

	fi, err := os.Stat(p)
	AssertEq(nil, err)
	ExpectTrue(fi.IsDir())
}

func (t *AFSTest) Readdir() {
	AssertEq(nil, ioutil.WriteFile(path.Join(t.dir, "a"), nil, 0644))
	AssertEq(nil, ioutil.WriteFile(path.Join(t.dir, "b"), nil, 0644))

	h := t.ctx.Readdir(t.dir)
	evs := t.pumpUntil(func(evs []afs.Event) bool { return hasKind(evs, afs.EventReaddir) })
	_ = h

	var names []string
	for _, e := range evs {
		if e.Kind == afs.EventReaddir {
			names = e.DirNames
		}
	}
	ExpectEq(2, len(names))
}

func (t *AFSTest) PanicsOnConcurrentCommand() {
	p := path.Join(t.dir, "foo")
	h := t.ctx.Open(p, os.O_RDWR|os.O_CREATE|os.O_TRUNC)
	t.pumpUntil(func(evs []afs.Event) bool { return hasKind(evs, afs.EventOpen) })

	AssertEq(nil, t.ctx.Fsync(h))

	defer func() {
		r := recover()
		ExpectNe(nil, r)
	}()
	t.ctx.Fsync(h)
}

func (t *AFSTest) StopPrepAndStopAfterQuiescence() {
	p := path.Join(t.dir, "foo")
	h := t.ctx.Open(p, os.O_RDWR|os.O_CREATE|os.O_TRUNC)
	t.pumpUntil(func(evs []afs.Event) bool { return hasKind(evs, afs.EventOpen) })
	AssertEq(nil, t.ctx.Close(h))
	t.pumpUntil(func(evs []afs.Event) bool { return hasKind(evs, afs.EventClose) })

	// Every slot is already gone (Close is terminal-after-success), so
	// StopPrep finds the context already quiescent; it only sets the stop
	// flag, and the stop event itself is reported on the next Update.
	t.ctx.StopPrep()
	AssertEq(nil, t.ctx.Update(nil))
	ExpectTrue(hasKind(t.ctx.Events(nil), afs.EventStop))

	AssertEq(nil, t.ctx.Stop())
}
