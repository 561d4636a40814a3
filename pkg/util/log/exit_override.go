// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import "os"

// SetExitFunc allows setting a function that will be called to exit
// the process when a Fatal message is generated.
//
// Call with a nil function to undo.
func SetExitFunc(f func(int)) {
	logging.mu.Lock()
	defer logging.mu.Unlock()
	logging.mu.exitOverride.f = f
}

// ResetExitFunc undoes any prior call to SetExitFunc.
func ResetExitFunc() {
	SetExitFunc(nil)
}

func exit(code int) {
	logging.mu.RLock()
	f := logging.mu.exitOverride.f
	logging.mu.RUnlock()
	if f != nil {
		f(code)
		return
	}
	os.Exit(code)
}
