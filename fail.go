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

package nbio

import (
	"fmt"
	"path"
	"runtime"
	"syscall"
)

// FailRecord is a stable, immutable-once-written description of the last
// failure observed by a module. Every module owns exactly one and overwrites
// it wholesale on each new terminal failure; nothing partially updates it.
type FailRecord struct {
	File    string
	Line    int
	Errno   syscall.Errno
	Message string
}

// String renders the record the way the package's debug logger prints
// errors: "<file>:<line>: <message> (errno)".
func (f FailRecord) String() string {
	if f.Errno == 0 {
		return fmt.Sprintf("%s:%d: %s", f.File, f.Line, f.Message)
	}
	return fmt.Sprintf("%s:%d: %s (%v)", f.File, f.Line, f.Message, f.Errno)
}

// Error implements the error interface so a FailRecord can be returned
// directly from functions that fail.
func (f FailRecord) Error() string {
	return f.String()
}

// NewFail captures the caller's (or an ancestor's, per skip) source location
// together with the given errno and message into a new FailRecord. skip
// follows runtime.Caller conventions: 0 means "the caller of NewFail".
func NewFail(skip int, errno syscall.Errno, format string, args ...interface{}) FailRecord {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		file, line = "???", 0
	}

	return FailRecord{
		File:    path.Base(file),
		Line:    line,
		Errno:   errno,
		Message: fmt.Sprintf(format, args...),
	}
}

// Result is the shared taxonomy of result codes observable across the AFS
// style modules (§6.6). HTTPS carries its own negative codes alongside
// these, documented in package https.
type Result int32

const (
	ResultOK         Result = 1
	ResultFail       Result = -1
	ResultFailAlloc  Result = -2
	ResultFailBadFD  Result = -3
	ResultFailBadArg Result = -4
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultFail:
		return "fail"
	case ResultFailAlloc:
		return "fail_alloc"
	case ResultFailBadFD:
		return "fail_bad_fd"
	case ResultFailBadArg:
		return "fail_bad_arg"
	default:
		return fmt.Sprintf("result(%d)", int32(r))
	}
}
