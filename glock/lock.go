// Copyright 2021 the Go-GLock Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glock

import "sync/atomic"

// Lock pairs a payload with one node of a lock tree. The payload is
// reached through guards: any guard reads it, an exclusive guard may
// also replace it. A node carries at most one Lock at a time; Close
// detaches the Lock and frees the node for reuse.
type Lock struct {
	kernel *lockKernel
	data   interface{}
	closed int32
}

// NewRoot builds a Lock at the root of a fresh lock tree.
func NewRoot(data interface{}) (*Lock, error) {
	return NewRootBuilder().Build(data)
}

// NewRootBuilder returns a builder for the root of a fresh lock
// tree. Builders exist so that a payload can contain child Locks as
// fields: create child Locks from the builder first, then Build the
// parent around the assembled payload.
func NewRootBuilder() *LockBuilder {
	return &LockBuilder{kernel: newRootKernel()}
}

// NewChildBuilder returns a builder for the child node registered
// under id. Sibling identifiers are unique: while a child node under
// id is alive, every call with that id addresses the same node.
func (l *Lock) NewChildBuilder(id string) *LockBuilder {
	l.mustLive()
	return &LockBuilder{kernel: l.kernel.childKernel(id)}
}

// NewChild builds a child Lock under id carrying data. It fails with
// AlreadyUsedError if the child node already carries a Lock.
func (l *Lock) NewChild(id string, data interface{}) (*Lock, error) {
	return l.NewChildBuilder(id).Build(data)
}

// Path returns the identifier chain from the root to this Lock's
// node; the root's path renders as "[]".
func (l *Lock) Path() Path {
	return l.kernel.path()
}

// Close detaches the Lock from its node. The node lives on while
// lock instances or child nodes still reference it, but it may be
// claimed by a new Lock. Close is idempotent. Guards obtained from
// this Lock must be unlocked before closing.
func (l *Lock) Close() error {
	if !atomic.CompareAndSwapInt32(&l.closed, 0, 1) {
		return nil
	}
	l.kernel.unown()
	l.kernel.decRef()
	return nil
}

// Lock acquires a lock of type t, blocking until it is compatible
// with every mode currently granted on the node. Intention locks on
// ancestors are acquired implicitly and released together with the
// returned guard.
func (l *Lock) Lock(t LockType) (*LockGuard, error) {
	return l.lock(t, nil, false)
}

// TryLock is Lock, but fails with BusyError instead of blocking.
func (l *Lock) TryLock(t LockType) (*LockGuard, error) {
	return l.lock(t, nil, true)
}

// LockUsingParent acquires a lock of type t under an explicitly held
// parent guard instead of implicitly locking the ancestors. If the
// parent guard's mode does not cover t's implicit parent type, it is
// upgraded in place (and stays upgraded after release of this
// guard). The parent guard must belong to this node's parent.
func (l *Lock) LockUsingParent(t LockType, parent *LockGuard) (*LockGuard, error) {
	return l.lock(t, parent, false)
}

// TryLockUsingParent is LockUsingParent, but fails with BusyError
// instead of blocking.
func (l *Lock) TryLockUsingParent(t LockType, parent *LockGuard) (*LockGuard, error) {
	return l.lock(t, parent, true)
}

// LockExclusive acquires an Exclusive lock and returns a guard with
// write access to the payload.
func (l *Lock) LockExclusive() (*LockGuardMut, error) {
	return l.lockExclusive(nil, false)
}

// TryLockExclusive is LockExclusive, but fails with BusyError
// instead of blocking.
func (l *Lock) TryLockExclusive() (*LockGuardMut, error) {
	return l.lockExclusive(nil, true)
}

// LockExclusiveUsingParent is LockExclusive under an explicitly held
// parent guard; see LockUsingParent.
func (l *Lock) LockExclusiveUsingParent(parent *LockGuard) (*LockGuardMut, error) {
	return l.lockExclusive(parent, false)
}

// TryLockExclusiveUsingParent is LockExclusiveUsingParent, but fails
// with BusyError instead of blocking.
func (l *Lock) TryLockExclusiveUsingParent(parent *LockGuard) (*LockGuardMut, error) {
	return l.lockExclusive(parent, true)
}

func (l *Lock) lock(t LockType, parent *LockGuard, tryOnly bool) (*LockGuard, error) {
	l.mustLive()
	var pinst *lockInstance
	if parent != nil {
		pinst = parent.mustInst()
	}
	inst, err := l.kernel.acquire(t, pinst, true, tryOnly)
	if err != nil {
		return nil, err
	}
	return &LockGuard{lock: l, inst: inst}, nil
}

func (l *Lock) lockExclusive(parent *LockGuard, tryOnly bool) (*LockGuardMut, error) {
	g, err := l.lock(Exclusive, parent, tryOnly)
	if err != nil {
		return nil, err
	}
	return &LockGuardMut{LockGuard: *g}, nil
}

func (l *Lock) mustLive() {
	if atomic.LoadInt32(&l.closed) != 0 {
		panic("glock: use of closed Lock")
	}
}

// LockBuilder allocates a lock-tree node before the Lock that will
// own it exists. This lets a parent payload hold child Locks as
// fields: obtain child builders (or child Locks) first, assemble the
// payload, then Build.
//
// A builder must be finished exactly once, either with Build or with
// Discard; an unfinished builder keeps its node registered under the
// parent.
type LockBuilder struct {
	kernel *lockKernel
}

// NewChildBuilder returns a builder for the child node registered
// under id, without finishing b.
func (b *LockBuilder) NewChildBuilder(id string) *LockBuilder {
	return &LockBuilder{kernel: b.mustKernel().childKernel(id)}
}

// NewChild builds a child Lock under id carrying data, without
// finishing b.
func (b *LockBuilder) NewChild(id string, data interface{}) (*Lock, error) {
	return b.NewChildBuilder(id).Build(data)
}

// Build claims the node and attaches data to it, finishing the
// builder. It fails with AlreadyUsedError if the node already
// carries a Lock; the builder is spent either way.
func (b *LockBuilder) Build(data interface{}) (*Lock, error) {
	k := b.mustKernel()
	b.kernel = nil
	if err := k.own(); err != nil {
		k.decRef()
		return nil, err
	}
	return &Lock{kernel: k, data: data}, nil
}

// Discard finishes the builder without building a Lock, releasing
// the node it reserved.
func (b *LockBuilder) Discard() {
	k := b.mustKernel()
	b.kernel = nil
	k.decRef()
}

func (b *LockBuilder) mustKernel() *lockKernel {
	if b.kernel == nil {
		panic("glock: use of finished LockBuilder")
	}
	return b.kernel
}

// LockGuard is a granted acquisition on a Lock. It gives read access
// to the payload and can be upgraded in place. Unlock releases the
// grant; a guard must not be used afterwards.
//
// A guard is not safe for concurrent use by multiple goroutines.
type LockGuard struct {
	lock *Lock
	inst *lockInstance
}

// LockType returns the mode the guard currently holds. It changes
// under Upgrade, and under automatic parent upgrades when the guard
// was shared with a child acquisition.
func (g *LockGuard) LockType() LockType {
	return g.mustInst().heldType()
}

// Value returns the payload. The returned value is shared with every
// other guard holder; mutate it only through an exclusive guard.
func (g *LockGuard) Value() interface{} {
	g.mustInst()
	return g.lock.data
}

// Upgrade moves the guard to mode to, blocking while incompatible
// locks are held by others. The ancestors' intention locks are
// widened first when to requires more than they carry. Failing with
// UpgradeError means to is not reachable from the current mode.
func (g *LockGuard) Upgrade(to LockType) error {
	return g.mustInst().upgrade(to, true, false)
}

// TryUpgrade is Upgrade, but fails with BusyError instead of
// blocking. The guard keeps its current mode on failure.
func (g *LockGuard) TryUpgrade(to LockType) error {
	return g.mustInst().upgrade(to, true, true)
}

// UpgradeToExclusive upgrades to Exclusive and converts the guard
// into a write guard. On success the original guard is spent; on
// failure it remains valid and held.
func (g *LockGuard) UpgradeToExclusive() (*LockGuardMut, error) {
	return g.upgradeToExclusive(false)
}

// TryUpgradeToExclusive is UpgradeToExclusive, but fails with
// BusyError instead of blocking; the original guard then stays
// usable.
func (g *LockGuard) TryUpgradeToExclusive() (*LockGuardMut, error) {
	return g.upgradeToExclusive(true)
}

func (g *LockGuard) upgradeToExclusive(tryOnly bool) (*LockGuardMut, error) {
	inst := g.mustInst()
	if err := inst.upgrade(Exclusive, true, tryOnly); err != nil {
		return nil, err
	}
	g.inst = nil
	return &LockGuardMut{LockGuard: LockGuard{lock: g.lock, inst: inst}}, nil
}

// Unlock releases the grant. Implicitly acquired ancestor locks are
// released with it, child before parent; a shared parent guard stays
// held until its own Unlock.
func (g *LockGuard) Unlock() {
	inst := g.mustInst()
	g.inst = nil
	inst.release()
}

func (g *LockGuard) mustInst() *lockInstance {
	if g.inst == nil {
		panic("glock: use of released LockGuard")
	}
	return g.inst
}

// LockGuardMut is a LockGuard holding Exclusive, with write access
// to the payload.
type LockGuardMut struct {
	LockGuard
}

// SetValue replaces the payload. The Exclusive mode makes this guard
// the only holder, so no further synchronization is needed.
func (g *LockGuardMut) SetValue(data interface{}) {
	g.mustInst()
	g.lock.data = data
}
