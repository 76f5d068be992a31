// Copyright 2026 The MPIO Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sysfs

import (
	"os"
	"path/filepath"
	"testing"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/spi"
)

func TestNewSPIInvalid(t *testing.T) {
	if _, err := NewSPI(-1, 0); err == nil {
		t.Fatal("accepted a negative bus number")
	}
	if _, err := NewSPI(0, 256); err == nil {
		t.Fatal("accepted an out of range chip select")
	}
}

func TestSPIIoctlNumbers(t *testing.T) {
	// Values straight from <linux/spi/spidev.h>.
	if spiIOCMode != 0x40016b01 {
		t.Errorf("SPI_IOC_WR_MODE = %#x", spiIOCMode)
	}
	if spiIOCBitsPerWord != 0x40016b03 {
		t.Errorf("SPI_IOC_WR_BITS_PER_WORD = %#x", spiIOCBitsPerWord)
	}
	if spiIOCMaxSpeedHz != 0x40046b04 {
		t.Errorf("SPI_IOC_WR_MAX_SPEED_HZ = %#x", spiIOCMaxSpeedHz)
	}
	if got := spiIOCTx(1); got != 0x40206b00 {
		t.Errorf("SPI_IOC_MESSAGE(1) = %#x", got)
	}
	if got := spiIOCTx(3); got != 0x40606b00 {
		t.Errorf("SPI_IOC_MESSAGE(3) = %#x", got)
	}
}

func TestSPITxPacketsValidation(t *testing.T) {
	c := &spiConn{name: "SPI0.0", halfDuplex: true, connected: true}
	err := c.TxPackets([]spi.Packet{{W: []byte{1}, R: []byte{0}}})
	if err == nil {
		t.Fatal("half-duplex port accepted a full duplex packet")
	}
	if c.Duplex() != conn.Half {
		t.Fatalf("Duplex() = %v", c.Duplex())
	}

	c = &spiConn{name: "SPI0.0", connected: true}
	err = c.TxPackets([]spi.Packet{{W: []byte{1, 2}, R: []byte{0}}})
	if err == nil {
		t.Fatal("accepted mismatched buffer lengths")
	}
	if err := c.TxPackets(nil); err == nil {
		t.Fatal("accepted an empty transaction")
	}
	if c.Duplex() != conn.Full {
		t.Fatalf("Duplex() = %v", c.Duplex())
	}

	c = &spiConn{name: "SPI0.0"}
	if err := c.Tx([]byte{1}, nil); err == nil {
		t.Fatal("accepted I/O before Connect")
	}
}

func TestEnumerateSPI(t *testing.T) {
	old := spiDevRoot
	spiDevRoot = t.TempDir()
	defer func() { spiDevRoot = old }()
	for _, name := range []string{"spidev0.0", "spidev1.2", "i2c-0"} {
		if err := os.WriteFile(filepath.Join(spiDevRoot, name), nil, 0o600); err != nil {
			t.Fatal(err)
		}
	}
	ports, err := EnumerateSPI()
	if err != nil {
		t.Fatal(err)
	}
	if len(ports) != 2 {
		t.Fatalf("EnumerateSPI() = %v", ports)
	}
	if ports[0] != [2]int{0, 0} || ports[1] != [2]int{1, 2} {
		t.Fatalf("EnumerateSPI() = %v", ports)
	}
}
