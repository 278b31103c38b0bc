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

// Package nbio provides non-blocking primitives for hosts that drive their
// own event loop with a single poll-style readiness call and have no native
// asynchronous runtime of their own.
//
// The primary elements of interest are:
//
//   - The Module interface, which every primitive in this package implements:
//     PollFDs / Update / Events / StopPrep / Stop.
//
//   - afs, an asynchronous filesystem facade that hides a blocking file
//     descriptor behind a worker process connected by a control socket and a
//     shared memory page.
//
//   - https, an asynchronous HTTPS client built by driving net/http through
//     readiness-file-descriptor callbacks and a monotonic interval timer.
//
//   - rjson/wjson and rdb/wdb, push parsers and push writers for JSON and a
//     line-oriented record format, sharing the same single-byte-push
//     philosophy as the two primitives above.
package nbio
