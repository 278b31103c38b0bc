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

package rdb

import "fmt"

// phase tracks position within a record, independent of state (which tracks
// whether a scalar is mid-assembly).
type phase int

const (
	phaseIdle       phase = iota // between records: expect a key byte, ws, or the doc terminator
	phaseWantColon               // key just ended: optional ws then ':'
	phaseWantValue               // colon consumed: optional ws then a value
	phaseAfterValue              // a value just ended: expect ',', ws, or newline
)

// Next feeds one byte and reports the resulting status (§4.6.2).
func (r *Reader) Next(ch byte) (Status, error) {
	r.curType = Incomplete

	if ch == 0 {
		// A byte still held in the lookahead (e.g. the newline that ended
		// the last value) is applied first, without reporting its event.
		for len(r.pending) > 0 {
			c := r.pending[0]
			r.pending = r.pending[1:]
			if _, _, err := r.step(c); err != nil {
				return StatusSyntax, err
			}
		}
		if r.ph == phaseIdle && r.state == stIdle {
			return StatusFin, nil
		}
		return StatusSyntax, fmt.Errorf("rdb: unexpected end of document")
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
			r.pending = append([]byte{c}, r.pending...)
		}
		if st != 0 {
			return st, nil
		}
	}

	return StatusOK, nil
}

func (r *Reader) step(c byte) (Status, bool, error) {
	switch r.state {
	case stKey:
		return r.stepKey(c)
	case stStr:
		return r.stepStr(c)
	case stLongStr:
		return r.stepLongStr(c)
	case stNum:
		return r.stepNum(c)
	case stBool:
		return r.stepBool(c)
	}

	switch r.ph {
	case phaseIdle:
		if c == '\n' || c == ' ' || c == '\t' {
			return 0, false, nil
		}
		if isKeyByte(c) {
			r.beginKey(c)
			return 0, false, nil
		}
		return StatusSyntax, false, fmt.Errorf("rdb: unexpected %q at start of record", c)

	case phaseWantColon:
		if c == ' ' || c == '\t' {
			return 0, false, nil
		}
		if c == ':' {
			r.ph = phaseWantValue
			return 0, false, nil
		}
		return StatusSyntax, false, fmt.Errorf("rdb: expected ':', got %q", c)

	case phaseWantValue:
		if c == ' ' || c == '\t' {
			return 0, false, nil
		}
		switch {
		case c == '"':
			r.beginStr()
			return 0, false, nil
		case c == '<':
			r.beginLongStr()
			return 0, false, nil
		case c == '-' || c == '+' || (c >= '0' && c <= '9'):
			r.beginNum(c)
			return 0, false, nil
		case c == 't' || c == 'f':
			r.beginBool(c)
			return 0, false, nil
		default:
			return StatusSyntax, false, fmt.Errorf("rdb: unexpected %q where a value was expected", c)
		}

	case phaseAfterValue:
		switch {
		case c == ' ' || c == '\t':
			return 0, false, nil
		case c == ',':
			r.ph = phaseWantValue
			return 0, false, nil
		case c == '\n':
			r.ph = phaseIdle
			r.gotKey = false
			r.gotFirstVal = false
			r.curType = RecordEnd
			return StatusOK, false, nil
		default:
			return StatusSyntax, false, fmt.Errorf("rdb: expected ',' or newline, got %q", c)
		}
	}

	return StatusSyntax, false, fmt.Errorf("rdb: internal state error")
}

func (r *Reader) beginKey(c byte) {
	r.state = stKey
	r.strLen = 0
	r.appendStrByte(c)
}

func (r *Reader) stepKey(c byte) (Status, bool, error) {
	if isKeyByte(c) {
		if r.strLen >= len(r.strBuf) {
			return StatusSyntax, false, fmt.Errorf("rdb: key overflows buffer")
		}
		r.appendStrByte(c)
		return 0, false, nil
	}

	r.state = stIdle
	r.curType = Key
	r.curStr = r.strBuf[:r.strLen]
	r.gotKey = true
	r.ph = phaseWantColon
	return StatusOK, true, nil
}

func (r *Reader) appendStrByte(c byte) {
	r.strBuf[r.strLen] = c
	r.strLen++
}
