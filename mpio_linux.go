// Copyright 2026 The MPIO Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mpio

import (
	// Make sure the Linux peripheral drivers are registered.
	_ "github.com/linux4sam/mpio/gpioioctl"
	_ "github.com/linux4sam/mpio/sysfs"
	_ "github.com/linux4sam/mpio/uart"
)
