// Copyright 2026 The MPIO Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sysfs implements the peripherals the kernel exposes as virtual
// file trees and device nodes: GPIO (legacy interface), LEDs, PWM
// generators, IIO ADCs, I2C/SMBus buses and SPI ports.
package sysfs

import (
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/linux4sam/mpio/fs"
)

// readStr reads a sysfs attribute and strips the trailing newline.
func readStr(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// writeStr writes a sysfs attribute.
func writeStr(path, value string) error {
	f, err := fs.Open(path, os.O_WRONLY)
	if err != nil {
		return err
	}
	_, err = f.WriteString(value)
	if err1 := f.Close(); err == nil {
		err = err1
	}
	return err
}

// readInt reads a sysfs attribute that contains a decimal number.
func readInt(path string) (int, error) {
	s, err := readStr(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(s)
}

func writeInt(path string, value int) error {
	return writeStr(path, strconv.Itoa(value))
}

// seekRead rewinds the file and reads the attribute value. Used on cached
// attribute handles, which sysfs requires to be read from offset 0.
func seekRead(f *fs.File, b []byte) (int, error) {
	if _, err := f.Seek(0, os.SEEK_SET); err != nil {
		return 0, err
	}
	return f.Read(b)
}

// seekWrite rewinds the file and writes the attribute value.
func seekWrite(f *fs.File, b []byte) error {
	if _, err := f.Seek(0, os.SEEK_SET); err != nil {
		return err
	}
	_, err := f.Write(b)
	return err
}

// trailingNumber returns the number a name ends with, like the 4 in
// "pwmchip4".
func trailingNumber(s string) (int, bool) {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	if i == len(s) {
		return 0, false
	}
	n, err := strconv.Atoi(s[i:])
	if err != nil {
		return 0, false
	}
	return n, true
}

func isErrBusy(err error) bool {
	if e, ok := err.(*os.PathError); ok {
		return e.Err == unix.EBUSY
	}
	return err == unix.EBUSY
}
