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

// Package freelist implements a singly-linked free list of untyped nodes,
// used by afs to recycle worker-slot storage across Update calls without
// allocating on the steady-state path.
package freelist

import "unsafe"

// node is overlaid on top of whatever struct the caller is recycling. The
// caller must guarantee that the first word of every recycled value is free
// for this package to use as the next-pointer while the value sits on the
// list (i.e. it is not live Go-visible state while parked).
type node struct {
	next *node
}

// Freelist is a free list of fixed-size, caller-defined values. The zero
// value is an empty list ready to use.
type Freelist struct {
	head *node
}

// Get removes and returns the most recently Put value, or nil if the list is
// empty.
func (fl *Freelist) Get() unsafe.Pointer {
	n := fl.head
	if n == nil {
		return nil
	}

	fl.head = n.next
	return unsafe.Pointer(n)
}

// Put returns a value to the list for later reuse. p must not be used again
// by the caller until a subsequent Get returns it.
func (fl *Freelist) Put(p unsafe.Pointer) {
	n := (*node)(p)
	n.next = fl.head
	fl.head = n
}
