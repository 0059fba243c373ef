// Copyright 2021 the Go-GLock Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glock

import "sync"

// lockKernel is the coordination node for one position in a lock
// tree. A Lock wraps exactly one kernel, but kernels also exist
// without a Lock: they are created on demand when a child identifier
// is first used, and stay alive while anything references them.
//
// Lifetime is tracked with an explicit reference count, since Go has
// no destructors to hook the last handle drop. Holders of a
// reference: builders, Locks, lock instances, and child kernels (a
// child pins its parent so that the chain stays walkable while any
// descendant is in use). When the count reaches zero the node unlinks
// itself from its parent's child registry, which is why refs is
// guarded by the parent's mutex: the count and the registry entry
// must change in one critical section, or a concurrent childKernel
// call could resurrect a node that is about to unlink.
type lockKernel struct {
	// id is empty at the root, parent nil. Both are immutable, so
	// path() can walk the chain without locks.
	id     string
	parent *lockKernel

	mu   sync.Mutex
	cond *sync.Cond

	// The fields below are guarded by mu. mu also guards the refs
	// field of every kernel in children. When a parent and a child
	// mutex are both needed, the parent's is taken first.
	owned    bool
	counts   [lockTypeCount]int
	children map[string]*lockKernel

	// refs is guarded by parent.mu (by mu itself at the root).
	refs int
}

func newLockKernel(id string, parent *lockKernel) *lockKernel {
	k := &lockKernel{
		id:       id,
		parent:   parent,
		children: make(map[string]*lockKernel),
		refs:     1,
	}
	k.cond = sync.NewCond(&k.mu)
	return k
}

// newRootKernel returns a fresh root node holding one reference for
// the caller.
func newRootKernel() *lockKernel {
	return newLockKernel("", nil)
}

// path returns the identifier chain from the root down to k. The
// root's path is empty.
func (k *lockKernel) path() Path {
	if k.parent == nil {
		return Path{}
	}
	return append(k.parent.path(), k.id)
}

func (k *lockKernel) refsMu() *sync.Mutex {
	if k.parent != nil {
		return &k.parent.mu
	}
	return &k.mu
}

// retain adds a reference to k. The caller must already hold one,
// otherwise k may be unlinking concurrently.
func (k *lockKernel) retain() {
	mu := k.refsMu()
	mu.Lock()
	k.refs++
	mu.Unlock()
}

// decRef drops a reference. The node that loses its last reference
// removes its registry entry and lets go of its parent, so unused
// interior nodes age out of the tree one level at a time.
func (k *lockKernel) decRef() {
	p := k.parent
	if p == nil {
		k.mu.Lock()
		k.refs--
		if k.refs < 0 {
			k.mu.Unlock()
			panic("glock: negative kernel reference count")
		}
		k.mu.Unlock()
		return
	}

	p.mu.Lock()
	k.refs--
	last := k.refs == 0
	if k.refs < 0 {
		p.mu.Unlock()
		panic("glock: negative kernel reference count")
	}
	if last {
		delete(p.children, k.id)
	}
	p.mu.Unlock()

	if last {
		if debugEnabled() {
			logger.Debugf("kernel %s unlinked", k.path())
		}
		p.decRef()
	}
}

// childKernel returns the child node registered under id, creating it
// if needed. Two concurrent callers with the same id get the same
// node. The caller receives a reference and must balance it with
// decRef (usually via the instance, Lock or builder that adopts it).
func (k *lockKernel) childKernel(id string) *lockKernel {
	k.mu.Lock()
	if c, ok := k.children[id]; ok {
		c.refs++
		k.mu.Unlock()
		return c
	}
	c := newLockKernel(id, k)
	k.children[id] = c
	k.mu.Unlock()

	// The new child pins its parent. k is still referenced by the
	// caller, so retaining outside the critical section is safe.
	k.retain()
	return c
}

// own claims the node for a Lock wrapper. At most one Lock may exist
// per node at a time.
func (k *lockKernel) own() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.owned {
		return &AlreadyUsedError{Path: k.path()}
	}
	k.owned = true
	return nil
}

// unown releases the wrapper claim. The node itself stays alive as
// long as it is referenced.
func (k *lockKernel) unown() {
	k.mu.Lock()
	k.owned = false
	k.mu.Unlock()
}

// acquire grants a lock of type t on this node, blocking until t is
// compatible with every mode currently granted (or failing with
// BusyError if tryOnly). Before touching this node it ensures the
// required intention lock on the parent chain: either by validating
// (and, with autoUpgrade, widening) the supplied parent instance, or
// by implicitly acquiring the implicit parent type on each ancestor.
//
// On success the returned instance holds one reference for the
// caller; releasing it releases the whole implicitly acquired parent
// chain, child before parent.
func (k *lockKernel) acquire(t LockType, usingParent *lockInstance, autoUpgrade, tryOnly bool) (*lockInstance, error) {
	parentInst, created, err := k.ensureParentLock(t, usingParent, autoUpgrade, tryOnly)
	if err != nil {
		return nil, err
	}

	k.mu.Lock()
	for {
		if k.readyFor(t, noHeldType) {
			break
		}
		if tryOnly {
			k.mu.Unlock()
			// Failure must leave no trace: drop the parent
			// intention we acquired ourselves. A supplied parent
			// grant stays untouched.
			if created {
				parentInst.release()
			}
			return nil, &BusyError{Path: k.path()}
		}
		if debugEnabled() {
			logger.Debugf("acquire %s at %s: waiting", t, k.path())
		}
		k.cond.Wait()
	}
	k.counts[t.index()]++
	k.mu.Unlock()

	if debugEnabled() {
		logger.Debugf("acquire %s at %s: granted", t, k.path())
	}

	if parentInst != nil && !created {
		// Sharing the caller's parent grant; it must survive until
		// this instance is released.
		parentInst.retain()
	}
	k.retain()
	return newLockInstance(k, parentInst, t), nil
}

// release drops one granted lock of type t and wakes every waiter. A
// single release can unblock an arbitrary set of compatible waiters,
// so this broadcasts instead of signalling one.
func (k *lockKernel) release(t LockType) {
	k.mu.Lock()
	if k.counts[t.index()] == 0 {
		k.mu.Unlock()
		panic("glock: release of " + t.String() + " with no holders")
	}
	k.counts[t.index()]--
	k.mu.Unlock()
	k.cond.Broadcast()

	if debugEnabled() {
		logger.Debugf("release %s at %s", t, k.path())
	}
}

// upgrade replaces one granted lock of type from with one of type to.
// The holder's own grant does not block the upgrade: readiness
// tolerates a single count of from, and zero of anything else
// incompatible with to.
func (k *lockKernel) upgrade(from, to LockType, usingParent *lockInstance, autoUpgrade, tryOnly bool) error {
	if from == to {
		return nil
	}
	if !from.UpgradableTo(to) {
		return &UpgradeError{From: from, To: to}
	}

	parentInst, created, err := k.ensureParentLock(to, usingParent, autoUpgrade, tryOnly)
	if err != nil {
		return err
	}
	if created {
		// The parent intention was only needed to validate the
		// chain; the holder keeps its own parent grant (if any)
		// alive through its instance.
		parentInst.release()
	}

	k.mu.Lock()
	for {
		if k.readyFor(to, from) {
			break
		}
		if tryOnly {
			k.mu.Unlock()
			return &BusyError{Path: k.path()}
		}
		if debugEnabled() {
			logger.Debugf("upgrade %s->%s at %s: waiting", from, to, k.path())
		}
		k.cond.Wait()
	}
	k.counts[from.index()]--
	k.counts[to.index()]++
	k.mu.Unlock()
	k.cond.Broadcast()

	if debugEnabled() {
		logger.Debugf("upgrade %s->%s at %s: done", from, to, k.path())
	}
	return nil
}

// noHeldType makes readyFor tolerate no grant at all.
const noHeldType = LockType(-1)

// readyFor reports whether a grant of type t can be admitted now.
// held is the mode of the caller's own grant on this node (one count
// of it is tolerated, it does not block itself), or noHeldType.
// Callers must hold k.mu.
func (k *lockKernel) readyFor(t, held LockType) bool {
	for _, lt := range lockTypes {
		max := 0
		if lt == held {
			max = 1
		}
		if k.counts[lt.index()] > max && !t.CompatibleWith(lt) {
			return false
		}
	}
	return true
}

// ensureParentLock makes sure the parent chain carries at least the
// implicit parent type of t before a grant or upgrade of t proceeds
// on this node.
//
// With a supplied parent instance, it verifies the instance belongs
// to this node's parent and that its mode covers the requirement,
// widening it via MinUpgradable when autoUpgrade is set. The supplied
// instance is returned with created == false.
//
// With no supplied instance, it implicitly acquires the implicit
// parent type on the parent (which recurses further up) and returns
// the new instance with created == true; the caller owns its single
// reference.
//
// A nil instance with a nil error means this node is a root.
func (k *lockKernel) ensureParentLock(t LockType, usingParent *lockInstance, autoUpgrade, tryOnly bool) (inst *lockInstance, created bool, err error) {
	parent := k.parent
	if parent == nil {
		return nil, false, nil
	}

	if usingParent == nil {
		pi, err := parent.acquire(t.ImplicitParentType(), nil, autoUpgrade, tryOnly)
		if err != nil {
			return nil, false, err
		}
		return pi, true, nil
	}

	if usingParent.kernel != parent {
		return nil, false, &ParentLockError{
			ExpectedPath: parent.path(),
			ActualPath:   usingParent.kernel.path(),
		}
	}

	required := t.ImplicitParentType()
	actual := usingParent.heldType()

	switch {
	case required.index() > actual.index():
		// Parent grant too weak, e.g. IS held but IX required.
		if !autoUpgrade {
			return nil, false, &ParentLockTypeError{
				Path:     usingParent.kernel.path(),
				Required: required,
				Actual:   actual,
			}
		}
		if err := usingParent.upgrade(actual.MinUpgradable(required), autoUpgrade, tryOnly); err != nil {
			return nil, false, err
		}

	case required.index() < actual.index() && !required.UpgradableTo(actual):
		// Parent grant stronger by index but off the requirement's
		// upgrade chain, e.g. S held but IX required.
		if !autoUpgrade {
			return nil, false, &ParentLockTypeError{
				Path:     usingParent.kernel.path(),
				Required: required,
				Actual:   actual,
			}
		}
		if err := usingParent.upgrade(required.MinUpgradable(actual), autoUpgrade, tryOnly); err != nil {
			return nil, false, err
		}
	}

	return usingParent, false, nil
}
