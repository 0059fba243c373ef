// Copyright 2021 the Go-GLock Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glock

import "strings"

// Path is the chain of identifiers leading from the root of a lock
// tree to a node. The root itself has the empty path. Paths appear in
// errors and debug logs; they are snapshots, not live references.
type Path []string

// String renders the path as "[a:b:c]"; the root renders as "[]".
func (p Path) String() string {
	return "[" + strings.Join(p, ":") + "]"
}
