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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/detailyang/go-fallocate"
	"golang.org/x/sys/unix"
)

// runWorker is the entire body of a single AFS worker process: map the
// inherited shared page, then loop reading one command at a time from the
// inherited control socket until told to exit or the parent hangs up.
//
// This process owns exactly one open file descriptor (the one opened by
// cmdOpen) for its whole lifetime, matching §3.3's invariant that the
// parent never opens the file itself.
func runWorker() {
	sockFile := os.NewFile(3, "nbio-afs-sock")
	shmFile := os.NewFile(4, "nbio-afs-shm")

	fi, err := shmFile.Stat()
	if err != nil {
		return
	}

	page, err := unix.Mmap(int(shmFile.Fd()), 0, int(fi.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return
	}
	ctrl := castCtrl(page)
	rwbuf := page[ctrlSize:]

	sockFD := int(sockFile.Fd())

	var f *os.File
	var everWroteTo bool

	// Handshake: the parent is waiting for this single byte to move the
	// slot from init-pending to available (§4.2.3).
	if _, err := writeByte(sockFD); err != nil {
		return
	}

	ack := make([]byte, 1)
	for {
		n, err := unix.Read(sockFD, ack)
		if n == 0 || err != nil {
			return
		}

		switch cmdKind(ctrl.cmd) {
		case cmdExit:
			if f != nil {
				f.Close()
			}
			return

		case cmdOpen:
			path := getFixed(rwbuf[:ctrl.pathLen])
			ff, openErr := os.OpenFile(path, int(ctrl.openFlags), 0644)
			if openErr != nil {
				fail(ctrl, openErr, "open %q", path)
				break
			}
			f = ff
			everWroteTo = false
			ok(ctrl)

		case cmdClose:
			if f != nil {
				if closeErr := f.Close(); closeErr != nil {
					fail(ctrl, closeErr, "close")
					f = nil
					break
				}
			}
			f = nil
			ok(ctrl)

		case cmdFsync:
			if f == nil {
				fail(ctrl, syscall.EBADF, "fsync: no open file")
				break
			}
			if syncErr := f.Sync(); syncErr != nil {
				fail(ctrl, syncErr, "fsync")
				break
			}
			ok(ctrl)

		case cmdWrite:
			if f == nil {
				fail(ctrl, syscall.EBADF, "write: no open file")
				break
			}
			n := int(ctrl.writeLen)
			if n > len(rwbuf) {
				n = len(rwbuf)
			}

			if !everWroteTo {
				if fi, statErr := f.Stat(); statErr == nil {
					_ = fallocate.Fallocate(f, fi.Size(), int64(n))
				}
				everWroteTo = true
			}

			written, writeErr := writeLoop(f, rwbuf[:n])
			ctrl.bytesWritten = uint64(written)
			if writeErr != nil {
				fail(ctrl, writeErr, "write")
				break
			}
			ok(ctrl)

		case cmdReadAll:
			if f == nil {
				fail(ctrl, syscall.EBADF, "readall: no open file")
				break
			}
			rn, readErr := f.Read(rwbuf)
			// A genuine EOF is success with length zero (§4.2.7); any other
			// error is terminal.
			if readErr != nil && readErr != io.EOF {
				fail(ctrl, readErr, "readall")
				break
			}
			ctrl.bytesRead = uint64(rn)
			ok(ctrl)

		case cmdMkdir:
			path := getFixed(rwbuf[:ctrl.pathLen])
			if mkdirErr := mkdirDurable(path); mkdirErr != nil {
				fail(ctrl, mkdirErr, "mkdir %q", path)
				break
			}
			ok(ctrl)

		case cmdReaddir:
			path := getFixed(rwbuf[:ctrl.pathLen])
			names, rdErr := readdirNames(path)
			if rdErr != nil {
				fail(ctrl, rdErr, "readdir %q", path)
				break
			}
			joined := strings.Join(names, "\n")
			rn := copy(rwbuf, joined)
			ctrl.bytesRead = uint64(rn)
			ok(ctrl)
		}

		if _, err := writeByte(sockFD); err != nil {
			return
		}
	}
}

func ok(ctrl *ctrlStruct) {
	ctrl.result = int32(resultOK)
}

// fail records a terminal failure into the control struct's fixed-width
// fail fields. The child has no FailRecord.File/Line worth reporting (it
// isn't meaningfully "the caller's source location" the way a panic site
// is) so those stay zero; the parent fills them in from its own call site
// only when the child never got a chance to run at all (e.g. spawn
// failure). Here we still surface the errno and a formatted message.
func fail(ctrl *ctrlStruct, err error, format string, args ...interface{}) {
	ctrl.result = int32(resultFail)

	var errno syscall.Errno
	switch e := err.(type) {
	case syscall.Errno:
		errno = e
	case *os.PathError:
		if inner, ok2 := e.Err.(syscall.Errno); ok2 {
			errno = inner
		}
	}

	ctrl.failErrno = int32(errno)
	ctrl.failLine = 0
	putFixed(ctrl.failFile[:], "")
	putFixed(ctrl.failMsg[:], fmt.Sprintf(format+": %v", append(append([]interface{}{}, args...), err)...))
}

func writeByte(fd int) (int, error) {
	for {
		n, err := unix.Write(fd, []byte{0})
		if err == syscall.EINTR {
			continue
		}
		return n, err
	}
}

func writeLoop(f *os.File, data []byte) (int, error) {
	total := 0
	for total < len(data) {
		n, err := f.Write(data[total:])
		total += n
		if err != nil {
			if err == syscall.EINTR {
				continue
			}
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}

// mkdirDurable creates dir (mode 0700, tolerating "already exists as a
// directory") and then fsyncs both the new directory and its parent so the
// directory entry is durable (§4.2.8).
func mkdirDurable(dir string) error {
	if err := os.Mkdir(dir, 0700); err != nil {
		if !os.IsExist(err) {
			return err
		}
		fi, statErr := os.Stat(dir)
		if statErr != nil {
			return statErr
		}
		if !fi.IsDir() {
			return syscall.ENOTDIR
		}
	}

	real, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return err
	}

	if err := fsyncPath(real); err != nil {
		return err
	}
	return fsyncPath(filepath.Dir(real))
}

func fsyncPath(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

func readdirNames(dir string) ([]string, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.Readdirnames(-1)
}
