// Copyright 2021 the Go-GLock Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glock

import "fmt"

// LockType is the mode of a lock acquisition on a Lock. The five
// modes are the classical multi-granularity locking modes. Holding a
// mode on a node implies holding that mode's implicit parent mode
// (see ImplicitParentType) on every ancestor.
type LockType int

const (
	// IntentionShared signals the intent to acquire Shared locks
	// further down the tree. Compatible with everything except
	// Exclusive.
	IntentionShared LockType = iota

	// IntentionExclusive signals the intent to acquire Exclusive or
	// SharedIntentionExclusive locks further down the tree.
	// Compatible with IntentionShared and IntentionExclusive only.
	IntentionExclusive

	// Shared grants read access to the node and, implicitly, its
	// whole subtree. Compatible with IntentionShared and Shared.
	Shared

	// SharedIntentionExclusive combines Shared on the node with the
	// intent to acquire Exclusive locks below it. Compatible with
	// IntentionShared only.
	SharedIntentionExclusive

	// Exclusive grants write access to the node and, implicitly, its
	// whole subtree. Compatible with nothing.
	Exclusive
)

const lockTypeCount = 5

var lockTypes = [lockTypeCount]LockType{
	IntentionShared,
	IntentionExclusive,
	Shared,
	SharedIntentionExclusive,
	Exclusive,
}

// implicitParentType[t] is the weakest mode that must be held on
// every ancestor before t can be held on a node.
var implicitParentType = [lockTypeCount]LockType{
	IntentionShared,
	IntentionExclusive,
	IntentionShared,
	IntentionExclusive,
	IntentionExclusive,
}

// compatibleWith[a][b] is true if a lock of mode a and a lock of mode
// b may be granted on the same node at the same time. The relation is
// symmetric.
var compatibleWith = [lockTypeCount][lockTypeCount]bool{
	{true, true, true, true, false},
	{true, true, false, false, false},
	{true, false, true, false, false},
	{true, false, false, false, false},
	{false, false, false, false, false},
}

// upgradableTo[a][b] is the reflexive reachability relation of the
// upgrade lattice IS < {IX, S} < SIX < X.
var upgradableTo = [lockTypeCount][lockTypeCount]bool{
	{true, true, true, true, true},
	{false, true, false, true, true},
	{false, false, true, true, true},
	{false, false, false, true, true},
	{false, false, false, false, true},
}

// supportsChildren[a][b] is true if holding a on a parent is enough
// to hold b on a child without widening the parent lock first, i.e.
// if b's implicit parent mode is covered by a.
var supportsChildren = [lockTypeCount][lockTypeCount]bool{
	{true, false, true, false, false},
	{true, true, true, true, true},
	{true, false, true, false, false},
	{true, true, true, true, true},
	{true, true, true, true, true},
}

// LockTypes returns all lock types in canonical order (the order of
// their indices): IntentionShared, IntentionExclusive, Shared,
// SharedIntentionExclusive, Exclusive.
func LockTypes() []LockType {
	return lockTypes[:]
}

func (t LockType) index() int { return int(t) }

// ImplicitParentType returns the lock type that must be held on every
// ancestor before a lock of type t can be acquired on a node: the
// shared family requires at least IntentionShared, the exclusive
// family at least IntentionExclusive.
func (t LockType) ImplicitParentType() LockType {
	return implicitParentType[t.index()]
}

// CompatibleWith returns true if a lock of type t and a lock of type
// other may be held on the same node simultaneously.
func (t LockType) CompatibleWith(other LockType) bool {
	return compatibleWith[t.index()][other.index()]
}

// UpgradableTo returns true if a lock of type t can be upgraded in
// place to type other. The relation is reflexive.
func (t LockType) UpgradableTo(other LockType) bool {
	return upgradableTo[t.index()][other.index()]
}

// SupportsChildren returns true if holding t on a parent node is
// already sufficient for holding other on a child node. It is
// informational; the acquire path consults ImplicitParentType
// instead.
func (t LockType) SupportsChildren(other LockType) bool {
	return supportsChildren[t.index()][other.index()]
}

// MinUpgradable returns the least restrictive lock type that both t
// and other can be upgraded to. It scans the canonical order, so the
// result is the weakest common upper bound; Exclusive is the
// fallback.
func (t LockType) MinUpgradable(other LockType) LockType {
	for _, lt := range lockTypes {
		if t.UpgradableTo(lt) && other.UpgradableTo(lt) {
			return lt
		}
	}
	return Exclusive
}

func (t LockType) String() string {
	switch t {
	case IntentionShared:
		return "IntentionShared"
	case IntentionExclusive:
		return "IntentionExclusive"
	case Shared:
		return "Shared"
	case SharedIntentionExclusive:
		return "SharedIntentionExclusive"
	case Exclusive:
		return "Exclusive"
	}
	return fmt.Sprintf("LockType(%d)", int(t))
}
