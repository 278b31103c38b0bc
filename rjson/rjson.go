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

// Package rjson is a one-byte-at-a-time push parser for a restricted JSON
// grammar (§4.4 of the design). It exists because encoding/json's Decoder
// reads from an io.Reader and cannot be fed a byte at a time as it arrives
// off a non-blocking socket; there is no library in this repository's
// dependency stack built for that shape, so this parser is hand-written
// exactly the way AFS's wire protocol is hand-written.
package rjson

// Status is the outcome of a single Next call.
type Status int

const (
	StatusOK     Status = 1
	StatusFin    Status = 2
	StatusSyntax Status = -1
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFin:
		return "fin"
	case StatusSyntax:
		return "syntax"
	default:
		return "unknown"
	}
}

// ValType is the type of the value most recently completed (or in
// progress) by the parser.
type ValType int

const (
	Incomplete ValType = iota
	Str
	Num
	Bool
	Null
	ObjStart
	ObjEnd
	ArrStart
	ArrEnd
)

// maxDepth bounds object/array nesting (§4.4.2).
const maxDepth = 24

// frame is one level of the container stack.
type frame struct {
	isArr bool
	empty bool // true until the first key/value of this container is seen
}

// state is whether the parser is mid-scalar; pos (in reader.go) tracks
// position relative to the enclosing container. Together they realize the
// `idle | wantKey | wantColon | str | num | true | false | null` states of
// §4.4.3 (true/false/null are folded into a single stLit state here, since
// they share identical lookahead-termination handling).
type state int

const (
	stIdle state = iota
	stStr
	stNum
	stLit
)

// Reader is one push-parser instance. The zero value is not usable; use
// New.
type Reader struct {
	state state
	pos   pos

	stack []frame

	// pending holds at most one byte: a scalar's terminator, requeued so it
	// still gets its structural effect applied (§4.4.2's "lookahead").
	pending []byte

	strBuf   []byte
	strLen   int
	strIsKey bool
	strEsc   bool

	numBuf [64]byte
	numLen int
	numSeenDot, numSeenExp, numSeenExpDigit, numSeenIntDigit bool

	lit    string // "true", "false", or "null"
	litPos int

	curType ValType
	curStr  []byte
	curNum  float64
	curBool bool
}

// New returns a Reader whose string values are copied into strBuf. strBuf
// is reused across every string the document contains; overflowing it is a
// syntax error (§4.4.2).
func New(strBuf []byte) *Reader {
	return &Reader{strBuf: strBuf}
}

// CurType returns the type of the value completed (or, for containers,
// opened/closed) by the most recent successful Next call.
func (r *Reader) CurType() ValType { return r.curType }

// CurStr returns the string completed by the most recent Next call. Valid
// only when CurType() == Str, and only until the next Next call.
func (r *Reader) CurStr() []byte { return r.curStr }

// CurNum returns the number completed by the most recent Next call. Valid
// only when CurType() == Num.
func (r *Reader) CurNum() float64 { return r.curNum }

// CurIsTrue returns the boolean completed by the most recent Next call.
// Valid only when CurType() == Bool.
func (r *Reader) CurIsTrue() bool { return r.curBool }
