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

package wdb

import "strconv"

// quote renders s as a quoted string value, escaping the set the reader
// understands (§4.6.1).
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

// quoteLong renders s as a long-string value. Characters the reader treats
// specially while stripping leading whitespace per line ('\\' and '>') are
// escaped; an embedded newline is escaped too so it survives the reader's
// leading-whitespace stripping on the following line verbatim.
func quoteLong(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '<')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			out = append(out, '\\', '\\')
		case '>':
			out = append(out, '\\', '>')
		case '\n':
			out = append(out, '\\', 'n')
		default:
			out = append(out, c)
		}
	}
	out = append(out, '>')
	return string(out)
}

// formatNum renders v the way rdb.Reader's number grammar expects: no
// leading '+', no leading zero other than a bare "0".
func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
