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
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// workerFlagArg marks a re-exec of the host binary as an AFS worker rather
// than a normal run of main(). Go has no safe fork-without-exec for a
// runtime this size, so unlike the C original (which forks a idle child
// that inherits its parent's anonymous mappings for free) this
// implementation re-execs the binary and hands the child its fd 3 (control
// socket) and fd 4 (memfd-backed shared page) across the exec boundary,
// exactly the way mount_darwin.go hands the mount fd to the helper process
// via cmd.ExtraFiles.
const workerFlagArg = "-nbio-afs-worker"

func init() {
	for _, a := range os.Args[1:] {
		if a == workerFlagArg {
			runWorker()
			os.Exit(0)
		}
	}
}

// spawnedWorker is the parent-side handle on a freshly started child: its
// process, control-socket fd, and mapped shared page.
type spawnedWorker struct {
	proc   *os.Process
	sockFD int
	shmFile *os.File
	page   []byte
}

// spawnWorker creates a socketpair and a memfd-backed shared page, re-execs
// the current binary with workerFlagArg, and hands the child its ends of
// both across cmd.ExtraFiles.
func spawnWorker(minRWBuf int) (*spawnedWorker, error) {
	pageSize := unix.Getpagesize()
	total, _ := pageLayout(pageSize, minRWBuf)

	// Close-on-exec keeps later workers from inheriting this pair, which
	// would hide the parent's hangup from this worker. ExtraFiles still
	// passes the child its end.
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("socketpair: %w", err)
	}
	parentSockFD, childSockFD := fds[0], fds[1]

	if err := unix.SetNonblock(parentSockFD, true); err != nil {
		unix.Close(parentSockFD)
		unix.Close(childSockFD)
		return nil, fmt.Errorf("set nonblock: %w", err)
	}

	shmFD, err := unix.MemfdCreate("nbio-afs-shm", 0)
	if err != nil {
		unix.Close(parentSockFD)
		unix.Close(childSockFD)
		return nil, fmt.Errorf("memfd_create: %w", err)
	}
	shmFile := os.NewFile(uintptr(shmFD), "nbio-afs-shm")

	if err := unix.Ftruncate(shmFD, int64(total)); err != nil {
		shmFile.Close()
		unix.Close(parentSockFD)
		unix.Close(childSockFD)
		return nil, fmt.Errorf("ftruncate: %w", err)
	}

	page, err := unix.Mmap(shmFD, 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		shmFile.Close()
		unix.Close(parentSockFD)
		unix.Close(childSockFD)
		return nil, fmt.Errorf("mmap: %w", err)
	}

	childSockFile := os.NewFile(uintptr(childSockFD), "nbio-afs-sock")
	defer childSockFile.Close()

	self, err := os.Executable()
	if err != nil {
		self = os.Args[0]
	}

	cmd := exec.Command(self, workerFlagArg)
	cmd.ExtraFiles = []*os.File{childSockFile, shmFile}
	cmd.Env = os.Environ()
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		unix.Munmap(page)
		shmFile.Close()
		unix.Close(parentSockFD)
		unix.Close(childSockFD)
		return nil, fmt.Errorf("start worker: %w", err)
	}

	return &spawnedWorker{
		proc:    cmd.Process,
		sockFD:  parentSockFD,
		shmFile: shmFile,
		page:    page,
	}, nil
}

// destroy forcibly tears down the worker: SIGKILL plus reap, matching
// §5's "forced teardown... signals the child with the OS kill and reaps
// it".
func (w *spawnedWorker) destroy() {
	if w.proc != nil {
		_ = w.proc.Kill()
		_, _ = w.proc.Wait()
	}
	unix.Close(w.sockFD)
	if w.page != nil {
		unix.Munmap(w.page)
	}
	if w.shmFile != nil {
		w.shmFile.Close()
	}
}
