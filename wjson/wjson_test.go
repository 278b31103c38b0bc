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

package wjson_test

import (
	"testing"

	"github.com/kylelemons/godebug/pretty"

	. "github.com/jacobsa/ogletest"

	"github.com/jacobsa/nbio/rjson"
	"github.com/jacobsa/nbio/wjson"
)

func TestWJSON(t *testing.T) { RunTests(t) }

////////////////////////////////////////////////////////////////////////
// Boilerplate
////////////////////////////////////////////////////////////////////////

type WJSONTest struct {
	buf [256]byte
}

func init() { RegisterTestSuite(&WJSONTest{}) }

func (t *WJSONTest) SetUp(ti *TestInfo) {}

////////////////////////////////////////////////////////////////////////
// Test functions
////////////////////////////////////////////////////////////////////////

func (t *WJSONTest) EmptyObject() {
	w := wjson.New(t.buf[:], false)

	st, err := w.BeginObj()
	AssertEq(nil, err)
	AssertEq(wjson.StatusOK, st)

	st, err = w.EndObj()
	AssertEq(nil, err)
	AssertEq(wjson.StatusOK, st)

	ExpectTrue(w.Finished())
	ExpectEq("{}", string(w.Bytes()))
}

func (t *WJSONTest) ObjectWithValues() {
	w := wjson.New(t.buf[:], false)

	_, err := w.BeginObj()
	AssertEq(nil, err)
	_, err = w.Key("a")
	AssertEq(nil, err)
	_, err = w.Num(1)
	AssertEq(nil, err)
	_, err = w.Key("b")
	AssertEq(nil, err)
	_, err = w.Str("x")
	AssertEq(nil, err)
	_, err = w.Key("c")
	AssertEq(nil, err)
	_, err = w.Bool(true)
	AssertEq(nil, err)
	_, err = w.Key("d")
	AssertEq(nil, err)
	_, err = w.Null()
	AssertEq(nil, err)
	_, err = w.EndObj()
	AssertEq(nil, err)

	ExpectEq(`{"a":1,"b":"x","c":true,"d":null}`, string(w.Bytes()))
}

func (t *WJSONTest) NestedArray() {
	w := wjson.New(t.buf[:], false)

	_, err := w.BeginObj()
	AssertEq(nil, err)
	_, err = w.Key("a")
	AssertEq(nil, err)
	_, err = w.BeginArr()
	AssertEq(nil, err)
	_, err = w.Num(1)
	AssertEq(nil, err)
	_, err = w.Num(2)
	AssertEq(nil, err)
	_, err = w.EndArr()
	AssertEq(nil, err)
	_, err = w.EndObj()
	AssertEq(nil, err)

	ExpectEq(`{"a":[1,2]}`, string(w.Bytes()))
}

func (t *WJSONTest) RejectsValueWhereKeyExpected() {
	w := wjson.New(t.buf[:], false)

	_, err := w.BeginObj()
	AssertEq(nil, err)

	st, err := w.Num(1)
	ExpectNe(nil, err)
	ExpectEq(wjson.StatusSyntax, st)
}

func (t *WJSONTest) RejectsArrayAtTopLevel() {
	w := wjson.New(t.buf[:], false)

	st, err := w.BeginArr()
	ExpectNe(nil, err)
	ExpectEq(wjson.StatusSyntax, st)
}

func (t *WJSONTest) OverflowRollsBack() {
	var small [8]byte
	w := wjson.New(small[:], false)

	_, err := w.BeginObj()
	AssertEq(nil, err)
	before := w.Len()

	st, err := w.Key("toolongforthisbuffer")
	AssertEq(nil, err)
	ExpectEq(wjson.StatusOverflow, st)
	ExpectEq(before, w.Len())
}

func (t *WJSONTest) PrettyPrintIndents() {
	w := wjson.New(t.buf[:], true)

	_, err := w.BeginObj()
	AssertEq(nil, err)
	_, err = w.Key("a")
	AssertEq(nil, err)
	_, err = w.Num(1)
	AssertEq(nil, err)
	_, err = w.EndObj()
	AssertEq(nil, err)

	ExpectEq("{\n  \"a\": 1\n}", string(w.Bytes()))
}

func (t *WJSONTest) RoundTripsThroughRJSON() {
	w := wjson.New(t.buf[:], false)

	_, err := w.BeginObj()
	AssertEq(nil, err)
	_, err = w.Key("name")
	AssertEq(nil, err)
	_, err = w.Str("burrito")
	AssertEq(nil, err)
	_, err = w.Key("count")
	AssertEq(nil, err)
	_, err = w.Num(3)
	AssertEq(nil, err)
	_, err = w.EndObj()
	AssertEq(nil, err)

	doc := string(w.Bytes())

	var strBuf [64]byte
	r := rjson.New(strBuf[:])

	var gotName string
	var gotCount float64
	var prevStr string
	for i := 0; i < len(doc); i++ {
		_, err := r.Next(doc[i])
		AssertEq(nil, err)
		switch r.CurType() {
		case rjson.Str:
			// Keys are reported as Str too; the name is the Str that
			// follows the "name" key.
			if prevStr == "name" {
				gotName = string(r.CurStr())
			}
			prevStr = string(r.CurStr())
		case rjson.Num:
			gotCount = r.CurNum()
		}
	}
	st, err := r.Next(0)
	AssertEq(nil, err)
	AssertEq(rjson.StatusFin, st)

	type decoded struct {
		Name  string
		Count float64
	}
	got := decoded{Name: gotName, Count: gotCount}
	want := decoded{Name: "burrito", Count: 3}
	ExpectEq("", pretty.Compare(got, want))
}
