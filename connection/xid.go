/*
Licensed to the Apache Software Foundation (ASF) under one
or more contributor license agreements.  See the NOTICE file
distributed with this work for additional information
regarding copyright ownership.  The ASF licenses this file
to you under the Apache License, Version 2.0 (the
"License"); you may not use this file except in compliance
with the License.  You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing,
software distributed under the License is distributed on an
"AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
KIND, either express or implied.  See the License for the
specific language governing permissions and limitations
under the License.
*/

package connection

import (
	"sync"
)

const (
	minXid uint32 = 1
	maxXid uint32 = 0xffffffff
)

// xidAllocator hands out transaction ids in [minXid, maxXid], wrapping
// around. Zero is never allocated so that it can mean "unset".
type xidAllocator struct {
	// mutex ensures only 1 xid is being allocated at a time
	mu   sync.Mutex
	next uint32
}

func newXidAllocator() *xidAllocator {
	return &xidAllocator{next: minXid}
}

func (x *xidAllocator) Next() uint32 {
	x.mu.Lock()
	defer x.mu.Unlock()

	xid := x.next
	if x.next == maxXid {
		x.next = minXid
	} else {
		x.next++
	}
	return xid
}
