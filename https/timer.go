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

package https

import (
	"time"

	"golang.org/x/sys/unix"
)

// armTimer arms m's interval timer to fire once after m.timeout, or
// immediately (1ns, since an all-zero itimerspec means "disarmed" rather
// than "fire now") if SetTimeout(0) was used (§4.3.2, §6.4).
func (m *Module) armTimer() {
	if !m.timeoutSet {
		return
	}

	d := m.timeout
	if d <= 0 {
		d = time.Nanosecond
	}

	it := unix.ItimerSpec{
		Value: unix.NsecToTimespec(d.Nanoseconds()),
	}
	_ = unix.TimerfdSettime(m.timerFD, 0, &it, nil)
}

// disarmTimer cancels any pending expiry.
func (m *Module) disarmTimer() {
	if m.timerFD < 0 {
		return
	}
	var it unix.ItimerSpec
	_ = unix.TimerfdSettime(m.timerFD, 0, &it, nil)
}

// drainTimer reads (and discards) the 8-byte expiry counter so the
// descriptor stops reporting readable.
func drainTimer(fd int) {
	var buf [8]byte
	unix.Read(fd, buf[:])
}
