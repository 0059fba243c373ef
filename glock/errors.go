// Copyright 2021 the Go-GLock Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glock

import (
	"errors"
	"fmt"
)

// UnknownError reports an internal failure that has no more precise
// classification. The current implementation never produces it;
// internal invariant violations panic instead. It remains part of the
// error surface so that callers matching on it stay valid.
type UnknownError struct {
	Message string
}

func (e *UnknownError) Error() string {
	return fmt.Sprintf("unknown error: %s", e.Message)
}

// BusyError is returned by the Try variants of lock and upgrade
// operations when the request could not be granted without blocking.
type BusyError struct {
	Path Path
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("failed to lock/upgrade path %s; lock is busy", e.Path)
}

// AlreadyUsedError is returned when building a Lock on a node that
// already has a live Lock attached to it. A node can carry at most
// one Lock at a time.
type AlreadyUsedError struct {
	Path Path
}

func (e *AlreadyUsedError) Error() string {
	return fmt.Sprintf("cannot create lock for path %s; lock is already used", e.Path)
}

// ParentLockError is returned when the parent guard supplied to a
// *UsingParent call does not belong to the acquiring node's parent.
type ParentLockError struct {
	ExpectedPath Path
	ActualPath   Path
}

func (e *ParentLockError) Error() string {
	return fmt.Sprintf("invalid parent lock; expected: %s, actual: %s", e.ExpectedPath, e.ActualPath)
}

// ParentLockTypeError is returned when the supplied parent guard's
// mode does not cover the child acquisition and automatic upgrading
// is disabled.
type ParentLockTypeError struct {
	Path     Path
	Required LockType
	Actual   LockType
}

func (e *ParentLockTypeError) Error() string {
	return fmt.Sprintf("invalid parent lock type for path %s; required: %s, actual: %s", e.Path, e.Required, e.Actual)
}

// UpgradeError is returned when the requested upgrade is not in the
// upgrade lattice, e.g. Shared to IntentionExclusive.
type UpgradeError struct {
	From LockType
	To   LockType
}

func (e *UpgradeError) Error() string {
	return fmt.Sprintf("lock of type %s is not upgradable to type %s", e.From, e.To)
}

// IsBusy returns true if err is a BusyError, i.e. a Try variant gave
// up instead of blocking.
func IsBusy(err error) bool {
	var busy *BusyError
	return errors.As(err, &busy)
}
