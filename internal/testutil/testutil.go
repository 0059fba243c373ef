// Copyright 2021 the Go-GLock Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package testutil holds switches shared by the test files of this
// repository.
package testutil

import (
	"io/ioutil"
	"log"
	"os"

	"github.com/sirupsen/logrus"
)

func init() {
	// For test, the date is irrelevant, but microseconds are.
	log.SetFlags(log.Lmicroseconds)
}

// VerboseTest returns true if the testing framework is run DEBUG=1.
func VerboseTest() bool {
	val := os.Getenv("DEBUG")
	return val == "1"
}

// NewLogger returns a logrus logger for handing to glock.SetLogger
// in tests: debug traces to stderr under DEBUG=1, silent otherwise.
func NewLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.DebugLevel)
	if !VerboseTest() {
		l.SetOutput(ioutil.Discard)
	}
	return l
}
