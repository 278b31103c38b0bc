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

package wjson

import (
	"fmt"
	"strconv"
)

// BeginObj opens an object, as a value, array element, or (the only legal
// first call) the top-level document.
func (w *Writer) BeginObj() (Status, error) {
	snapshot, st, err := w.beginValue()
	if err != nil || st != StatusOK {
		return st, err
	}
	if st2 := w.appendRaw("{"); st2 != StatusOK {
		w.len = snapshot
		return st2, nil
	}
	w.stack = append(w.stack, level{kind: containerObj, isFirst: true, wantKey: true})
	return StatusOK, nil
}

// EndObj closes the innermost object. It is a syntax error to call while a
// key has been written without its value, or while the innermost container
// is an array.
func (w *Writer) EndObj() (Status, error) {
	top, ok := w.top()
	if !ok || top.kind != containerObj {
		return StatusSyntax, fmt.Errorf("wjson: not inside an object")
	}
	if !top.wantKey {
		return StatusSyntax, fmt.Errorf("wjson: key written without a value")
	}
	snapshot := w.len
	if st := w.appendRaw(w.closingBrace("}")); st != StatusOK {
		w.len = snapshot
		return st, nil
	}
	w.stack = w.stack[:len(w.stack)-1]
	w.endValue()
	return StatusOK, nil
}

// BeginArr opens an array, as a value, array element, or (illegally, for
// this library, since the top level must be an object) the document.
func (w *Writer) BeginArr() (Status, error) {
	if len(w.stack) == 0 && !w.opened {
		return StatusSyntax, fmt.Errorf("wjson: top-level value must be an object")
	}
	snapshot, st, err := w.beginValue()
	if err != nil || st != StatusOK {
		return st, err
	}
	if st2 := w.appendRaw("["); st2 != StatusOK {
		w.len = snapshot
		return st2, nil
	}
	w.stack = append(w.stack, level{kind: containerArr, isFirst: true})
	return StatusOK, nil
}

// EndArr closes the innermost array.
func (w *Writer) EndArr() (Status, error) {
	top, ok := w.top()
	if !ok || top.kind != containerArr {
		return StatusSyntax, fmt.Errorf("wjson: not inside an array")
	}
	snapshot := w.len
	if st := w.appendRaw(w.closingBrace("]")); st != StatusOK {
		w.len = snapshot
		return st, nil
	}
	w.stack = w.stack[:len(w.stack)-1]
	w.endValue()
	return StatusOK, nil
}

// closingBrace adds the pretty-mode newline+indent before a closer, unless
// the container is still empty (in which case "{}"/"[]" stay on one line).
func (w *Writer) closingBrace(brace string) string {
	top, _ := w.top()
	if w.pretty && !top.isFirst {
		return "\n" + indentString(len(w.stack)-1) + brace
	}
	return brace
}

// Key writes an object key. Must be called only while the innermost
// container is an object and expecting a key.
func (w *Writer) Key(key string) (Status, error) {
	top, ok := w.top()
	if !ok || top.kind != containerObj {
		return StatusSyntax, fmt.Errorf("wjson: not inside an object")
	}
	if !top.wantKey {
		return StatusSyntax, fmt.Errorf("wjson: expected a value, not a key")
	}

	snapshot := w.len
	if st := w.prefix(); st != StatusOK {
		w.len = snapshot
		return st, nil
	}
	if st := w.appendRaw(quote(key)); st != StatusOK {
		w.len = snapshot
		return st, nil
	}
	sep := ":"
	if w.pretty {
		sep = ": "
	}
	if st := w.appendRaw(sep); st != StatusOK {
		w.len = snapshot
		return st, nil
	}

	top.wantKey = false
	return StatusOK, nil
}

// Str writes a quoted string value.
func (w *Writer) Str(s string) (Status, error) {
	if len(w.stack) == 0 && !w.opened {
		return StatusSyntax, fmt.Errorf("wjson: top-level value must be an object")
	}
	snapshot, st, err := w.beginValue()
	if err != nil || st != StatusOK {
		return st, err
	}
	if st2 := w.appendRaw(quote(s)); st2 != StatusOK {
		w.len = snapshot
		return st2, nil
	}
	w.endValue()
	return StatusOK, nil
}

// Num writes a number value.
func (w *Writer) Num(v float64) (Status, error) {
	if len(w.stack) == 0 && !w.opened {
		return StatusSyntax, fmt.Errorf("wjson: top-level value must be an object")
	}
	snapshot, st, err := w.beginValue()
	if err != nil || st != StatusOK {
		return st, err
	}
	if st2 := w.appendRaw(strconv.FormatFloat(v, 'g', -1, 64)); st2 != StatusOK {
		w.len = snapshot
		return st2, nil
	}
	w.endValue()
	return StatusOK, nil
}

// Bool writes a boolean value.
func (w *Writer) Bool(v bool) (Status, error) {
	if len(w.stack) == 0 && !w.opened {
		return StatusSyntax, fmt.Errorf("wjson: top-level value must be an object")
	}
	snapshot, st, err := w.beginValue()
	if err != nil || st != StatusOK {
		return st, err
	}
	lit := "false"
	if v {
		lit = "true"
	}
	if st2 := w.appendRaw(lit); st2 != StatusOK {
		w.len = snapshot
		return st2, nil
	}
	w.endValue()
	return StatusOK, nil
}

// Null writes a null value.
func (w *Writer) Null() (Status, error) {
	if len(w.stack) == 0 && !w.opened {
		return StatusSyntax, fmt.Errorf("wjson: top-level value must be an object")
	}
	snapshot, st, err := w.beginValue()
	if err != nil || st != StatusOK {
		return st, err
	}
	if st2 := w.appendRaw("null"); st2 != StatusOK {
		w.len = snapshot
		return st2, nil
	}
	w.endValue()
	return StatusOK, nil
}

// Finished reports whether the document is syntactically complete (every
// container closed).
func (w *Writer) Finished() bool {
	return w.opened && len(w.stack) == 0
}

// quote renders s as a JSON string literal with the escape set symmetric
// to rjson's (§4.5).
func quote(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			out = append(out, '\\', '"')
		case '\\':
			out = append(out, '\\', '\\')
		case '\b':
			out = append(out, '\\', 'b')
		case '\f':
			out = append(out, '\\', 'f')
		case '\n':
			out = append(out, '\\', 'n')
		case '\r':
			out = append(out, '\\', 'r')
		case '\t':
			out = append(out, '\\', 't')
		default:
			out = append(out, c)
		}
	}
	out = append(out, '"')
	return string(out)
}
