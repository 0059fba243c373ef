// Copyright 2021 the Go-GLock Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package glock provides hierarchical (multi-granularity) locking
// for tree-structured data.
//
// A Lock protects a payload sitting at one position of a tree: a
// root, or a child of another Lock addressed by a string identifier.
// Locking a node coordinates not just with other locks on that node
// but with the whole tree above it, so that locking a subtree root
// is enough to protect everything below it, while independent
// subtrees stay concurrent.
//
// The five lock types are the classical multi-granularity modes. A
// Shared or Exclusive lock on a node implicitly covers the node's
// entire subtree; the intention types exist so that ancestors can
// advertise activity below them without locking themselves:
//
//	Request \ Held  | IS   IX   S    SIX  X
//	----------------+---------------------
//	IntentionShared | yes  yes  yes  yes  no
//	IntentionExcl.  | yes  yes  no   no   no
//	Shared          | yes  no   yes  no   no
//	SharedIntExcl.  | yes  no   no   no   no
//	Exclusive       | no   no   no   no   no
//
// Before a node is locked, each ancestor must hold the implicit
// parent type of the requested mode: at least IntentionShared for
// the shared family, at least IntentionExclusive for the exclusive
// family. Callers need not do this by hand. Locking a node acquires
// the ancestor intentions implicitly and ties them to the returned
// guard:
//
//	root, _ := glock.NewRoot(rootData)
//	child, _ := root.NewChild("table", tableData)
//
//	g, _ := child.Lock(glock.Shared) // takes IS on root, S on child
//	_ = g.Value()
//	g.Unlock()                       // releases child, then root
//
// Alternatively, a guard held on the parent can be lent to child
// acquisitions, so that many children share one parent intention:
//
//	pg, _ := root.Lock(glock.IntentionShared)
//	g1, _ := child.LockUsingParent(glock.Shared, pg)
//
// A lent guard is upgraded in place when a child needs more than it
// holds (say, IntentionShared to IntentionExclusive for an Exclusive
// child acquisition); the upgrade survives the child's release.
//
// Guards upgrade along the lattice IS < {IX, S} < SIX < X, blocking
// until compatible, and convert to write guards with
// UpgradeToExclusive. Try variants of all acquiring and upgrading
// calls fail with BusyError instead of blocking.
//
// Payload types that contain child Locks as fields are assembled
// with builders, which allocate tree nodes before the enclosing Lock
// exists:
//
//	b := glock.NewRootBuilder()
//	dir := directory{
//		a: mustLock(b.NewChild("a", 0)),
//		b: mustLock(b.NewChild("b", 0)),
//	}
//	root, _ := b.Build(&dir)
//
// The package provides no deadlock detection and no fairness beyond
// eventual admission: waiters are re-examined on every release and
// upgrade, in no particular order. Lock ordering across siblings and
// unrelated trees is the caller's responsibility.
package glock
