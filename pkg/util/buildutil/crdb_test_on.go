// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

//go:build crdb_test

package buildutil

// CrdbTestBuild is a flag that is set to true if the binary was compiled
// with the 'crdb_test' build tag. Expensive assertions, such as the check
// that scheduler queues are only drained by their owning goroutine, are
// gated on it.
const CrdbTestBuild = true
