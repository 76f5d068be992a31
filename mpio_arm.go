// Copyright 2026 The MPIO Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

//go:build arm || arm64

package mpio

import (
	// Make sure the board driver is registered.
	_ "github.com/linux4sam/mpio/xplained"
)
