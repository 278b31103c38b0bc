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

package afs

import (
	"syscall"
	"unsafe"

	"github.com/jacobsa/nbio"
)

// cmdKind is the command enum written into the control struct by the parent
// before the wake byte is sent.
type cmdKind int32

const (
	cmdNone cmdKind = iota
	cmdOpen
	cmdClose
	cmdFsync
	cmdWrite
	cmdReadAll
	cmdMkdir
	cmdReaddir
	cmdExit
)

// resultKind mirrors nbio.Result but is kept as its own type so the wire
// struct doesn't reach across the package boundary.
type resultKind int32

const (
	resultNone resultKind = 0
	resultOK   resultKind = 1
	resultFail resultKind = -1
)

const (
	failFileLen = 64
	failMsgLen  = 96
)

// ctrlStruct is the fixed-size control block living at offset 0 of the
// shared memory page (§6.2). It is overlaid directly on the mmap'd bytes
// with unsafe.Pointer in both the parent and the re-executed worker: both are the
// same binary built for the same architecture, so the in-memory layout of a
// value type containing no pointers is guaranteed identical.
//
// Only plain, fixed-width fields are allowed here: no slices, strings, or
// pointers, since those would refer to one side's private heap.
type ctrlStruct struct {
	cmd    int32
	result int32

	openFlags int32
	pathLen   int32

	writeLen     uint64
	bytesWritten uint64
	bytesRead    uint64

	failErrno int32
	failLine  int32
	failFile  [failFileLen]byte
	failMsg   [failMsgLen]byte
}

var ctrlSize = int(unsafe.Sizeof(ctrlStruct{}))

// castCtrl overlays a *ctrlStruct on the front of a shared memory page.
func castCtrl(page []byte) *ctrlStruct {
	return (*ctrlStruct)(unsafe.Pointer(&page[0]))
}

// pageLayout returns the total size of a shared page holding a ctrlStruct
// plus an rw-buffer of at least minRWBuf bytes, rounded up to whole OS
// pages, along with the resulting rw-buffer capacity.
func pageLayout(pageSize, minRWBuf int) (total, rwBufCap int) {
	need := ctrlSize + minRWBuf
	pages := (need + pageSize - 1) / pageSize
	if pages < 1 {
		pages = 1
	}
	total = pages * pageSize
	rwBufCap = total - ctrlSize
	return
}

// putFail writes a FailRecord into the control struct, truncating the file
// name and message to the fixed-width wire fields (§6.2).
func putFail(ctrl *ctrlStruct, rec nbio.FailRecord) {
	ctrl.failErrno = int32(rec.Errno)
	ctrl.failLine = int32(rec.Line)
	putFixed(ctrl.failFile[:], rec.File)
	putFixed(ctrl.failMsg[:], rec.Message)
}

// getFail reconstructs a FailRecord from the control struct.
func getFail(ctrl *ctrlStruct) nbio.FailRecord {
	return nbio.FailRecord{
		File:    getFixed(ctrl.failFile[:]),
		Line:    int(ctrl.failLine),
		Errno:   syscall.Errno(ctrl.failErrno),
		Message: getFixed(ctrl.failMsg[:]),
	}
}

func putFixed(dst []byte, s string) {
	n := copy(dst, s)
	if n < len(dst) {
		dst[n] = 0
	} else {
		dst[len(dst)-1] = 0
	}
}

func getFixed(src []byte) string {
	n := 0
	for n < len(src) && src[n] != 0 {
		n++
	}
	return string(src[:n])
}
