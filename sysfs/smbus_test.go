// Copyright 2026 The MPIO Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sysfs

import (
	"bytes"
	"testing"
)

func TestNewSMBusInvalid(t *testing.T) {
	if _, err := NewSMBus(-1); err == nil {
		t.Fatal("accepted a negative bus number")
	}
}

func TestSMBusInvalidAddr(t *testing.T) {
	s := &SMBus{busNumber: 1, addr: 0xFFFF}
	if _, err := s.ReadByte(0x80); err == nil {
		t.Fatal("accepted an out of range address")
	}
	if err := s.WriteByteData(0x123, 0, 1); err == nil {
		t.Fatal("accepted an out of range address")
	}
}

func TestSMBusBlockTooLarge(t *testing.T) {
	s := &SMBus{busNumber: 1, addr: 0xFFFF}
	if err := s.WriteBlockData(0x50, 0x10, bytes.Repeat([]byte{0xAA}, 33)); err == nil {
		t.Fatal("accepted a block larger than the SMBus maximum")
	}
}

func TestSMBusString(t *testing.T) {
	s := &SMBus{busNumber: 3, addr: 0xFFFF}
	if got := s.String(); got != "SMBus3" {
		t.Fatalf("String() = %q", got)
	}
	if s.Bus() != 3 {
		t.Fatalf("Bus() = %d", s.Bus())
	}
}
