// Copyright 2021 the Go-GLock Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// This is a repository containing a hierarchical (multi-granularity)
// lock manager for tree-structured data.
//
// Go to https://godoc.org/github.com/go-glock/go-glock/glock for the
// in-depth documentation for this library.
package lib
