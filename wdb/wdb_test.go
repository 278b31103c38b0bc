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

package wdb_test

import (
	"testing"

	. "github.com/jacobsa/ogletest"

	"github.com/jacobsa/nbio/rdb"
	"github.com/jacobsa/nbio/wdb"
)

func TestWDB(t *testing.T) { RunTests(t) }

////////////////////////////////////////////////////////////////////////
// Boilerplate
////////////////////////////////////////////////////////////////////////

type WDBTest struct {
	buf [256]byte
}

func init() { RegisterTestSuite(&WDBTest{}) }

func (t *WDBTest) SetUp(ti *TestInfo) {}

////////////////////////////////////////////////////////////////////////
// Test functions
////////////////////////////////////////////////////////////////////////

func (t *WDBTest) SingleRecord() {
	w := wdb.New(t.buf[:])

	_, err := w.Key("name")
	AssertEq(nil, err)
	_, err = w.Str("burrito")
	AssertEq(nil, err)
	_, err = w.EndRecord()
	AssertEq(nil, err)

	ExpectEq("name: \"burrito\"\n", string(w.Bytes()))
}

func (t *WDBTest) MultipleValuesAndRecords() {
	w := wdb.New(t.buf[:])

	_, err := w.Key("list")
	AssertEq(nil, err)
	_, err = w.Num(1)
	AssertEq(nil, err)
	_, err = w.Num(2)
	AssertEq(nil, err)
	_, err = w.EndRecord()
	AssertEq(nil, err)

	_, err = w.Key("flag")
	AssertEq(nil, err)
	_, err = w.Bool(true)
	AssertEq(nil, err)
	_, err = w.EndRecord()
	AssertEq(nil, err)

	ExpectEq("list: 1, 2\nflag: true\n", string(w.Bytes()))
}

func (t *WDBTest) FinEmitsTerminator() {
	w := wdb.New(t.buf[:])

	_, err := w.Key("a")
	AssertEq(nil, err)
	_, err = w.Num(1)
	AssertEq(nil, err)
	_, err = w.EndRecord()
	AssertEq(nil, err)

	_, err = w.Fin()
	AssertEq(nil, err)

	got := w.Bytes()
	ExpectEq(byte('\n'), got[len(got)-2])
	ExpectEq(byte(0), got[len(got)-1])
}

func (t *WDBTest) RejectsValueWithoutKey() {
	w := wdb.New(t.buf[:])

	st, err := w.Num(1)
	ExpectNe(nil, err)
	ExpectEq(wdb.StatusSyntax, st)
}

func (t *WDBTest) RejectsEndRecordWithoutValue() {
	w := wdb.New(t.buf[:])

	_, err := w.Key("a")
	AssertEq(nil, err)

	st, err := w.EndRecord()
	ExpectNe(nil, err)
	ExpectEq(wdb.StatusSyntax, st)
}

func (t *WDBTest) OverflowRollsBack() {
	var small [8]byte
	w := wdb.New(small[:])

	st, err := w.Key("verylong")
	AssertEq(nil, err)
	ExpectEq(wdb.StatusOverflow, st)
	ExpectEq(0, w.Len())
}

func (t *WDBTest) RoundTripsThroughRDB() {
	w := wdb.New(t.buf[:])

	_, err := w.Key("name")
	AssertEq(nil, err)
	_, err = w.Str("burrito")
	AssertEq(nil, err)
	_, err = w.EndRecord()
	AssertEq(nil, err)

	_, err = w.Key("count")
	AssertEq(nil, err)
	_, err = w.Num(3)
	AssertEq(nil, err)
	_, err = w.EndRecord()
	AssertEq(nil, err)

	_, err = w.Fin()
	AssertEq(nil, err)

	doc := w.Bytes()

	var strBuf [64]byte
	r := rdb.New(strBuf[:])

	var gotName string
	var gotCount float64
	for i := 0; i < len(doc)-1; i++ { // stop before the '\0' terminator byte
		_, err := r.Next(doc[i])
		AssertEq(nil, err)
		switch r.CurType() {
		case rdb.Str:
			gotName = string(r.CurStr())
		case rdb.Num:
			gotCount = r.CurNum()
		}
	}

	st, err := r.Next(0)
	AssertEq(nil, err)
	AssertEq(rdb.StatusFin, st)

	ExpectEq("burrito", gotName)
	ExpectEq(3.0, gotCount)
}
