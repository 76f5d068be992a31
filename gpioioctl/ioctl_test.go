// Copyright 2026 The MPIO Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package gpioioctl

import (
	"testing"
	"unsafe"
)

// The kernel rejects requests whose size does not match the uapi structs,
// so the Go struct layouts must match <linux/gpio.h> exactly.
func TestStructSizes(t *testing.T) {
	data := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"gpiochip_info", unsafe.Sizeof(chipInfo{}), 68},
		{"gpio_v2_line_attribute", unsafe.Sizeof(lineAttribute{}), 16},
		{"gpio_v2_line_config", unsafe.Sizeof(lineConfig{}), 272},
		{"gpio_v2_line_request", unsafe.Sizeof(lineRequest{}), 592},
		{"gpio_v2_line_values", unsafe.Sizeof(lineValues{}), 16},
		{"gpio_v2_line_info", unsafe.Sizeof(lineInfo{}), 256},
		{"gpio_v2_line_event", unsafe.Sizeof(lineEvent{}), 48},
	}
	for _, line := range data {
		if line.got != line.want {
			t.Errorf("sizeof(%s) = %d, want %d", line.name, line.got, line.want)
		}
	}
}
