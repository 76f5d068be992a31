// Copyright 2026 The MPIO Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mpio

import "testing"

func TestInit(t *testing.T) {
	state, err := Init()
	if err != nil {
		t.Fatal(err)
	}
	if state == nil {
		t.Fatal("Init() returned no state")
	}
	// Drivers are free to be skipped on the test machine, but a driver
	// failing to load outright is a bug in its Init.
	for _, f := range state.Failed {
		t.Logf("%s: %v", f.D, f.Err)
	}
}
