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
	"errors"
	"io"
	"net/http"
)

// maxRedirects caps automatic redirect following, a behaviour the original C
// client got for free from a libcurl option and the distilled spec dropped;
// supplemented here so a misbehaving server can't drive a request pending
// forever (§4.3.6).
const maxRedirects = 5

func newClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errors.New("https: stopped after too many redirects")
			}
			return nil
		},
	}
}

// runRequest is the whole body of the request-driving goroutine (§4.3.2): it
// blocks on the real transport and reports progress back to the module
// purely through the shared, mutex-guarded fields plus a wake byte, the
// in-process analogue of AFS's control struct and control socket.
func (m *Module) runRequest(req *http.Request) {
	if m.verbose {
		m.logger.Printf("https: -> %s %s", req.Method, req.URL)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		m.finish(0, err)
		return
	}

	m.mu.Lock()
	m.status = resp.StatusCode
	m.mu.Unlock()
	if m.verbose {
		m.logger.Printf("https: <- %d %s", resp.StatusCode, req.URL)
	}
	m.wake()

	buf := make([]byte, 4096)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			m.appendBody(buf[:n])
			m.wake()
		}
		if rerr != nil {
			if rerr != io.EOF {
				err = rerr
			}
			break
		}
	}
	resp.Body.Close()

	m.finish(resp.StatusCode, err)
}

// appendBody copies as much of b as still fits in m.respBuf (reserving one
// byte for the trailing null), silently dropping the rest (§4.3.4).
func (m *Module) appendBody(b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room := len(m.respBuf) - 1 - m.respLen
	if room <= 0 {
		return
	}
	n := len(b)
	if n > room {
		n = room
	}
	copy(m.respBuf[m.respLen:], b[:n])
	m.respLen += n
	m.respBuf[m.respLen] = 0
}

func (m *Module) finish(status int, err error) {
	m.mu.Lock()
	m.done = true
	m.transportErr = err
	if status != 0 {
		m.status = status
	}
	m.mu.Unlock()
	m.wake()
}

// wake signals the module's pipe. The write end is non-blocking: a full
// pipe just means an earlier wake byte is still unread, which already
// guarantees the next Update will observe readiness.
func (m *Module) wake() {
	m.pipeW.Write(wakeByte[:])
}

var wakeByte = [1]byte{0}
