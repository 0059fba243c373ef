// Copyright 2021 the Go-GLock Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glock

import (
	"io/ioutil"

	"github.com/sirupsen/logrus"
)

// logger receives debug traces from the lock kernel: acquisitions,
// waits, grants, upgrades and releases, each tagged with the node
// path. It is silent by default.
var logger = newNopLogger()

func newNopLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(ioutil.Discard)
	return l
}

// SetLogger routes the library's debug traces to l. Pass nil to
// silence them again. Traces are emitted at debug level, so l must
// have logrus.DebugLevel enabled to see them.
func SetLogger(l *logrus.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	logger = l
}

// debugEnabled gates the trace call sites so that path rendering and
// argument formatting are not paid for when tracing is off.
func debugEnabled() bool {
	return logger.IsLevelEnabled(logrus.DebugLevel)
}
