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

import (
	"fmt"
	"strconv"
)

func (r *Reader) valueComplete() {
	r.gotFirstVal = true
	r.ph = phaseAfterValue
}

// --- quoted strings ---

func (r *Reader) beginStr() {
	r.state = stStr
	r.strLen = 0
	r.strEsc = false
}

func (r *Reader) stepStr(c byte) (Status, bool, error) {
	if r.strEsc {
		r.strEsc = false
		var out byte
		switch c {
		case 'n':
			out = '\n'
		case 'r':
			out = '\r'
		case 't':
			out = '\t'
		case '"':
			out = '"'
		case '\\':
			out = '\\'
		default:
			return StatusSyntax, false, fmt.Errorf("rdb: unsupported escape \\%q", c)
		}
		return r.appendQuoted(out)
	}
	if c == '\\' {
		r.strEsc = true
		return 0, false, nil
	}
	if c == '"' {
		r.state = stIdle
		r.curType = Str
		r.curStr = r.strBuf[:r.strLen]
		r.valueComplete()
		return StatusOK, false, nil
	}
	return r.appendQuoted(c)
}

func (r *Reader) appendQuoted(c byte) (Status, bool, error) {
	if r.strLen >= len(r.strBuf) {
		return StatusSyntax, false, fmt.Errorf("rdb: string overflows buffer")
	}
	r.strBuf[r.strLen] = c
	r.strLen++
	return 0, false, nil
}

// --- long strings: '<' newline? body '>' ---

type longSub int

const (
	longJustOpened longSub = iota
	longStrippingWS
	longBody
	longEsc
)

func (r *Reader) beginLongStr() {
	r.state = stLongStr
	r.strLen = 0
	r.longSub = longJustOpened
}

func (r *Reader) stepLongStr(c byte) (Status, bool, error) {
	switch r.longSub {
	case longJustOpened:
		r.longSub = longStrippingWS
		if c == '\n' {
			return 0, false, nil
		}
		return r.longBodyByte(c)

	case longStrippingWS:
		if c == ' ' || c == '\t' {
			return 0, false, nil
		}
		r.longSub = longBody
		return r.longBodyByte(c)

	case longEsc:
		r.longSub = longBody
		var out byte
		switch c {
		case 'n':
			out = '\n'
		case 't':
			out = '\t'
		case 'r':
			out = '\r'
		case '\\':
			out = '\\'
		case '>':
			out = '>'
		default:
			return StatusSyntax, false, fmt.Errorf("rdb: unsupported long-string escape \\%q", c)
		}
		return r.appendLong(out)

	default: // longBody
		return r.longBodyByte(c)
	}
}

func (r *Reader) longBodyByte(c byte) (Status, bool, error) {
	switch c {
	case '\\':
		r.longSub = longEsc
		return 0, false, nil
	case '>':
		// Drop a trailing literal newline immediately before the closer.
		if r.strLen > 0 && r.strBuf[r.strLen-1] == '\n' {
			r.strLen--
		}
		r.state = stIdle
		r.curType = Str
		r.curStr = r.strBuf[:r.strLen]
		r.valueComplete()
		return StatusOK, false, nil
	case '\n':
		if err := r.appendLongRaw('\n'); err != nil {
			return StatusSyntax, false, err
		}
		r.longSub = longStrippingWS
		return 0, false, nil
	default:
		if err := r.appendLongRaw(c); err != nil {
			return StatusSyntax, false, err
		}
		return 0, false, nil
	}
}

func (r *Reader) appendLong(c byte) (Status, bool, error) {
	if err := r.appendLongRaw(c); err != nil {
		return StatusSyntax, false, err
	}
	return 0, false, nil
}

func (r *Reader) appendLongRaw(c byte) error {
	if r.strLen >= len(r.strBuf) {
		return fmt.Errorf("rdb: long string overflows buffer")
	}
	r.strBuf[r.strLen] = c
	r.strLen++
	return nil
}

// --- numbers: permissive leading sign, JSON-style leading-zero rule ---

func (r *Reader) beginNum(c byte) {
	r.state = stNum
	r.numLen = 0
	r.numSeenDot = false
	r.numSeenExp = false
	r.numSeenIntDigit = false
	r.appendNum(c)
	if c >= '0' && c <= '9' {
		r.numSeenIntDigit = true
	}
}

func (r *Reader) appendNum(c byte) {
	if r.numLen < len(r.numBuf) {
		r.numBuf[r.numLen] = c
		r.numLen++
	}
}

func (r *Reader) stepNum(c byte) (Status, bool, error) {
	switch {
	case c >= '0' && c <= '9':
		if r.isLeadingZero() {
			return StatusSyntax, false, fmt.Errorf("rdb: leading zero in number")
		}
		r.numSeenIntDigit = true
		r.appendNum(c)
		return 0, false, nil
	case c == '.' && !r.numSeenDot && !r.numSeenExp && r.numSeenIntDigit:
		r.numSeenDot = true
		r.appendNum(c)
		return 0, false, nil
	case (c == 'e' || c == 'E') && !r.numSeenExp && r.numSeenIntDigit:
		r.numSeenExp = true
		r.appendNum(c)
		return 0, false, nil
	case (c == '+' || c == '-') && r.numSeenExp && r.lastNumIsExpMarker():
		r.appendNum(c)
		return 0, false, nil
	case isSeparator(c):
		return r.finishNum(c)
	default:
		return StatusSyntax, false, fmt.Errorf("rdb: unexpected %q in number", c)
	}
}

func (r *Reader) lastNumIsExpMarker() bool {
	if r.numLen == 0 {
		return false
	}
	last := r.numBuf[r.numLen-1]
	return last == 'e' || last == 'E'
}

func (r *Reader) isLeadingZero() bool {
	if r.numSeenDot || r.numSeenExp {
		return false
	}
	n := r.numLen
	if n == 0 {
		return false
	}
	start := 0
	if r.numBuf[0] == '-' || r.numBuf[0] == '+' {
		start = 1
	}
	return n-start == 1 && r.numBuf[start] == '0'
}

func (r *Reader) finishNum(terminator byte) (Status, bool, error) {
	if !r.numSeenIntDigit {
		return StatusSyntax, false, fmt.Errorf("rdb: malformed number")
	}
	text := string(r.numBuf[:r.numLen])
	if r.numBuf[0] == '+' {
		text = text[1:] // ParseFloat doesn't accept a leading '+'
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return StatusSyntax, false, fmt.Errorf("rdb: malformed number: %w", err)
	}

	r.state = stIdle
	r.curType = Num
	r.curNum = v
	r.valueComplete()
	return StatusOK, true, nil
}

// --- bare booleans ---

func (r *Reader) beginBool(c byte) {
	r.state = stBool
	r.litPos = 1
	if c == 't' {
		r.litVal = "true"
	} else {
		r.litVal = "false"
	}
	r.litAwaitingSep = false
}

func (r *Reader) stepBool(c byte) (Status, bool, error) {
	if r.litAwaitingSep {
		if !isSeparator(c) {
			return StatusSyntax, false, fmt.Errorf("rdb: malformed literal %q", r.litVal)
		}
		r.state = stIdle
		r.curType = Bool
		r.curBool = r.litVal == "true"
		r.valueComplete()
		return StatusOK, true, nil
	}

	if c != r.litVal[r.litPos] {
		return StatusSyntax, false, fmt.Errorf("rdb: malformed literal %q", r.litVal)
	}
	r.litPos++
	if r.litPos == len(r.litVal) {
		r.litAwaitingSep = true
	}
	return 0, false, nil
}
