// Copyright 2026 The MPIO Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sysfs_test

import (
	"fmt"
	"log"
	"time"

	"github.com/linux4sam/mpio/sysfs"
)

// Read the voltage on ADC channel 0.
func ExampleADC() {
	a, err := sysfs.NewADC(0)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()
	v, err := a.Voltage(0)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(v)
}

// Generate a 1kHz waveform at 25% duty cycle.
func ExamplePWM() {
	p, err := sysfs.NewPWM(0, 2, false)
	if err != nil {
		log.Fatal(err)
	}
	defer p.Close()
	if err := p.SetPeriod(time.Millisecond); err != nil {
		log.Fatal(err)
	}
	if err := p.SetDuty(0.25); err != nil {
		log.Fatal(err)
	}
	if err := p.SetEnabled(true); err != nil {
		log.Fatal(err)
	}
}

// Read a register of an SMBus power monitor at address 0x40.
func ExampleSMBus() {
	s, err := sysfs.NewSMBus(1)
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()
	v, err := s.ReadWordData(0x40, 0x02)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%#04x\n", v)
}
