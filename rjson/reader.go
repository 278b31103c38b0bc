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

package rjson

import "fmt"

// pos tracks the parser's position relative to a container, independent of
// stIdle/stWantKey/etc (which track what kind of token is being assembled).
type pos int

const (
	posTopBeforeOpen pos = iota // nothing seen yet; only '{' is legal
	posWantKey                  // object: key string or '}' expected
	posWantColon                // object: ':' expected
	posWantValue                // object value or array element expected
	posPostValue                // ',' or closer expected
	posDone                     // top-level object closed; only '\0' remains legal
)

// Next feeds one byte and reports the resulting status. isValExpected,
// curType and friends are all updated for the caller's benefit; curType is
// reset to Incomplete at the top of every call per §3.6.
func (r *Reader) Next(ch byte) (Status, error) {
	r.curType = Incomplete

	if ch == 0 {
		return r.feedNUL()
	}

	r.pending = append(r.pending, ch)
	for len(r.pending) > 0 {
		c := r.pending[0]
		r.pending = r.pending[1:]

		st, requeue, err := r.step(c)
		if err != nil {
			return StatusSyntax, err
		}
		if requeue {
			// c was the terminator of a scalar; finalize happened inside
			// step, and c itself still needs structural processing. A
			// requeue always comes with a status, so Next returns below and
			// c is processed on the following call (or by feedNUL).
			r.pending = append([]byte{c}, r.pending...)
		}
		if st != 0 {
			return st, nil
		}
	}

	// Byte accepted but nothing completed yet (e.g. mid-string, mid-number):
	// still "ok", just with CurType left at Incomplete.
	return StatusOK, nil
}

// feedNUL handles the document terminator (§4.4.2). \0 is never a legal
// content byte, so it is not queued; a byte still held in the lookahead
// (e.g. the final '}') is validated first, without reporting its event.
func (r *Reader) feedNUL() (Status, error) {
	for len(r.pending) > 0 {
		c := r.pending[0]
		r.pending = r.pending[1:]
		if _, _, err := r.step(c); err != nil {
			return StatusSyntax, err
		}
	}
	if r.pos == posDone {
		return StatusFin, nil
	}
	return StatusSyntax, fmt.Errorf("rjson: unexpected end of document")
}

// step processes a single byte against the current state, returning a
// Status to report now (0 meaning "no event yet, keep going") and whether c
// must be requeued for structural handling (true only when a scalar just
// terminated on c).
func (r *Reader) step(c byte) (status Status, requeue bool, err error) {
	switch r.state {
	case stStr:
		return r.stepStr(c)
	case stNum:
		return r.stepNum(c)
	case stLit:
		return r.stepLit(c)
	}

	// Not mid-scalar: whitespace is always legal filler between tokens.
	if isSpace(c) {
		return 0, false, nil
	}

	switch r.pos {
	case posTopBeforeOpen:
		if c != '{' {
			return StatusSyntax, false, fmt.Errorf("rjson: top-level value must be an object")
		}
		return r.pushContainer(false)

	case posWantKey:
		if c == '}' {
			if top, ok := r.top(); ok && top.empty {
				return r.popContainer(false)
			}
			return StatusSyntax, false, fmt.Errorf("rjson: trailing comma before '}'")
		}
		if c == '"' {
			r.beginStr(true)
			return 0, false, nil
		}
		return StatusSyntax, false, fmt.Errorf("rjson: expected object key or '}', got %q", c)

	case posWantColon:
		if c != ':' {
			return StatusSyntax, false, fmt.Errorf("rjson: expected ':', got %q", c)
		}
		r.pos = posWantValue
		return 0, false, nil

	case posWantValue:
		return r.stepValue(c)

	case posPostValue:
		top, ok := r.top()
		if !ok {
			return StatusSyntax, false, fmt.Errorf("rjson: unexpected %q after document end", c)
		}
		switch {
		case c == ',':
			if top.isArr {
				r.pos = posWantValue
			} else {
				r.pos = posWantKey
			}
			return 0, false, nil
		case c == '}' && !top.isArr:
			return r.popContainer(false)
		case c == ']' && top.isArr:
			return r.popContainer(false)
		default:
			return StatusSyntax, false, fmt.Errorf("rjson: expected ',' or closer, got %q", c)
		}

	case posDone:
		return StatusSyntax, false, fmt.Errorf("rjson: unexpected %q after document end", c)
	}

	return StatusSyntax, false, fmt.Errorf("rjson: internal state error")
}

// stepValue handles the "a value is expected here" position, which covers
// array elements, object values after a colon, and (via posWantValue left
// over from an empty array's frame) the empty-array case.
func (r *Reader) stepValue(c byte) (Status, bool, error) {
	if top, ok := r.top(); ok && top.isArr && c == ']' && top.empty {
		return r.popContainer(false)
	}

	switch {
	case c == '{':
		return r.pushContainer(false)
	case c == '[':
		return r.pushContainer(true)
	case c == '"':
		r.beginStr(false)
		return 0, false, nil
	case c == '-' || (c >= '0' && c <= '9'):
		r.beginNum(c)
		return 0, false, nil
	case c == 't' || c == 'f' || c == 'n':
		r.beginLit(c)
		return 0, false, nil
	default:
		return StatusSyntax, false, fmt.Errorf("rjson: unexpected %q where a value was expected", c)
	}
}

func (r *Reader) pushContainer(isArr bool) (Status, bool, error) {
	if len(r.stack) >= maxDepth {
		return StatusSyntax, false, fmt.Errorf("rjson: nesting exceeds %d levels", maxDepth)
	}
	r.stack = append(r.stack, frame{isArr: isArr, empty: true})
	if isArr {
		r.pos = posWantValue
		r.curType = ArrStart
	} else {
		r.pos = posWantKey
		r.curType = ObjStart
	}
	return StatusOK, false, nil
}

func (r *Reader) popContainer(_ bool) (Status, bool, error) {
	n := len(r.stack)
	if n == 0 {
		return StatusSyntax, false, fmt.Errorf("rjson: unbalanced closer")
	}
	top := r.stack[n-1]
	r.stack = r.stack[:n-1]
	if top.isArr {
		r.curType = ArrEnd
	} else {
		r.curType = ObjEnd
	}
	r.markValueComplete()
	return StatusOK, false, nil
}

// markValueComplete transitions pos after any value (scalar or container)
// finishes: to posDone if that closed the whole document, else to
// posPostValue, and marks the enclosing frame non-empty.
func (r *Reader) markValueComplete() {
	if len(r.stack) == 0 {
		r.pos = posDone
		return
	}
	r.stack[len(r.stack)-1].empty = false
	r.pos = posPostValue
}

func (r *Reader) top() (frame, bool) {
	if len(r.stack) == 0 {
		return frame{}, false
	}
	return r.stack[len(r.stack)-1], true
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
