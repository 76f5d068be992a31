// Copyright 2026 The MPIO Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sysfs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewI2CInvalid(t *testing.T) {
	if _, err := NewI2C(-1); err == nil {
		t.Fatal("accepted a negative bus number")
	}
}

func TestEnumerateI2C(t *testing.T) {
	old := i2cDevRoot
	i2cDevRoot = t.TempDir()
	defer func() { i2cDevRoot = old }()
	for _, name := range []string{"i2c-0", "i2c-2", "i2c-10", "spidev0.0"} {
		if err := os.WriteFile(filepath.Join(i2cDevRoot, name), nil, 0o600); err != nil {
			t.Fatal(err)
		}
	}
	buses, err := EnumerateI2C()
	if err != nil {
		t.Fatal(err)
	}
	if len(buses) != 3 || buses[0] != 0 || buses[1] != 2 || buses[2] != 10 {
		t.Fatalf("EnumerateI2C() = %v", buses)
	}
}

func TestFunctionalityString(t *testing.T) {
	f := funcI2C | funcSMBusReadByte | funcSMBusWriteByte
	if s := f.String(); s != "I2C|SMBUS_READ_BYTE|SMBUS_WRITE_BYTE" {
		t.Fatalf("String() = %q", s)
	}
	if s := functionality(0).String(); s != "" {
		t.Fatalf("String() = %q", s)
	}
}

func TestI2CTxInvalidAddr(t *testing.T) {
	// 10 bit addressing is not advertised, so a 10 bit address must be
	// refused before any ioctl happens.
	bus := &I2C{busNumber: 4, fn: funcI2C}
	if err := bus.Tx(0x90, []byte{1}, nil); err == nil {
		t.Fatal("accepted a 10 bit address without func10BitAddr")
	}
	if err := bus.Tx(0x400, []byte{1}, nil); err == nil {
		t.Fatal("accepted an out of range address")
	}
	// Nothing to transfer is not an error.
	if err := bus.Tx(0x20, nil, nil); err != nil {
		t.Fatal(err)
	}
}
