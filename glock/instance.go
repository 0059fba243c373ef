// Copyright 2021 the Go-GLock Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glock

import (
	"sync"
	"sync/atomic"
)

// lockInstance records one granted acquisition on a kernel node. It
// is shared: a guard holds a reference, and every child instance
// granted under it holds another, so a parent grant cannot release
// its count while a child still depends on it. The last release
// returns the count to the kernel and then lets go of the parent
// chain, child before parent.
type lockInstance struct {
	kernel *lockKernel
	parent *lockInstance

	// refs is manipulated with atomics; the instance is logically
	// dead once it reaches zero.
	refs int32

	// mu guards held, the current mode. It is held across kernel
	// upgrades so that the visible mode never disagrees with the
	// count the instance contributes to the kernel.
	mu   sync.Mutex
	held LockType
}

// newLockInstance adopts one kernel reference and (if parent is
// non-nil) one parent-instance reference from the caller.
func newLockInstance(kernel *lockKernel, parent *lockInstance, t LockType) *lockInstance {
	return &lockInstance{
		kernel: kernel,
		parent: parent,
		refs:   1,
		held:   t,
	}
}

func (li *lockInstance) retain() {
	atomic.AddInt32(&li.refs, 1)
}

// release drops one reference. The last reference returns the held
// mode to the kernel, wakes waiters, unpins the kernel node and
// releases the parent instance.
func (li *lockInstance) release() {
	n := atomic.AddInt32(&li.refs, -1)
	if n > 0 {
		return
	}
	if n < 0 {
		panic("glock: release of released lock instance")
	}

	li.mu.Lock()
	t := li.held
	li.mu.Unlock()

	li.kernel.release(t)
	li.kernel.decRef()
	if li.parent != nil {
		li.parent.release()
	}
}

func (li *lockInstance) heldType() LockType {
	li.mu.Lock()
	defer li.mu.Unlock()
	return li.held
}

// upgrade moves the instance to mode to, widening the parent grant
// first if needed. The instance mutex is held across the kernel call
// and the field update.
func (li *lockInstance) upgrade(to LockType, autoUpgrade, tryOnly bool) error {
	li.mu.Lock()
	defer li.mu.Unlock()
	if err := li.kernel.upgrade(li.held, to, li.parent, autoUpgrade, tryOnly); err != nil {
		return err
	}
	li.held = to
	return nil
}
