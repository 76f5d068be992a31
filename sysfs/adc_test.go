// Copyright 2026 The MPIO Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sysfs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"periph.io/x/conn/v3/physic"
)

// makeADC fabricates an IIO tree with one scaled ADC, one bare one and an
// external trigger.
func makeADC(t *testing.T) {
	t.Helper()
	old := adcRoot
	adcRoot = t.TempDir()
	t.Cleanup(func() { adcRoot = old })
	dev := filepath.Join(adcRoot, "iio:device0")
	if err := os.MkdirAll(filepath.Join(dev, "trigger"), 0o700); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"name":                    "sama5d2_adc\n",
		"in_voltage0_raw":         "1024\n",
		"in_voltage5_raw":         "2048\n",
		"in_voltage_scale":        "0.5\n",
		"sampling_frequency":      "1000\n",
		"trigger/current_trigger": "tcb0\n",
	}
	for f, content := range files {
		if err := os.WriteFile(filepath.Join(dev, f), []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	bare := filepath.Join(adcRoot, "iio:device1")
	if err := os.MkdirAll(bare, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(bare, "in_voltage0_raw"), []byte("7\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	trig := filepath.Join(adcRoot, "trigger0")
	if err := os.MkdirAll(trig, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(trig, "name"), []byte("adc-dev0-external_rising\n"), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestADC(t *testing.T) {
	makeADC(t)
	devices, err := EnumerateADC()
	if err != nil {
		t.Fatal(err)
	}
	if len(devices) != 2 || devices[0] != 0 || devices[1] != 1 {
		t.Fatalf("EnumerateADC() = %v", devices)
	}
	if _, err := NewADC(3); err == nil {
		t.Fatal("accepted a missing device")
	}
	a, err := NewADC(0)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	if s := a.String(); s != "adc0" {
		t.Fatalf("String() = %q", s)
	}
	if name, err := a.Name(); err != nil || name != "sama5d2_adc" {
		t.Fatalf("Name() = %q, %v", name, err)
	}
	channels, err := a.AvailableChannels()
	if err != nil {
		t.Fatal(err)
	}
	if len(channels) != 2 || channels[0] != 0 || channels[1] != 5 {
		t.Fatalf("AvailableChannels() = %v", channels)
	}
	if v, err := a.Value(0); err != nil || v != 1024 {
		t.Fatalf("Value(0) = %d, %v", v, err)
	}
	if v, err := a.Value(5); err != nil || v != 2048 {
		t.Fatalf("Value(5) = %d, %v", v, err)
	}
	if _, err := a.Value(3); err == nil {
		t.Fatal("Value(3) accepted a missing channel")
	}
}

func TestADCScale(t *testing.T) {
	makeADC(t)
	a, err := NewADC(0)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	scale, err := a.Scale()
	if err != nil {
		t.Fatal(err)
	}
	// 0.5mV per LSB.
	if scale != 500*physic.MicroVolt {
		t.Fatalf("Scale() = %s", scale)
	}
	v, err := a.Voltage(0)
	if err != nil {
		t.Fatal(err)
	}
	if v != 512*physic.MilliVolt {
		t.Fatalf("Voltage(0) = %s", v)
	}
}

func TestADCNoScale(t *testing.T) {
	makeADC(t)
	a, err := NewADC(1)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	if _, err := a.Scale(); !errors.Is(err, ErrNoScale) {
		t.Fatalf("want ErrNoScale, got %v", err)
	}
	if _, err := a.Voltage(0); !errors.Is(err, ErrNoScale) {
		t.Fatalf("want ErrNoScale, got %v", err)
	}
	if v, err := a.Value(0); err != nil || v != 7 {
		t.Fatalf("Value(0) = %d, %v", v, err)
	}
}

func TestADCTriggers(t *testing.T) {
	makeADC(t)
	a, err := NewADC(0)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	names, err := a.AvailableTriggers()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "adc-dev0-external_rising" {
		t.Fatalf("AvailableTriggers() = %v", names)
	}
	if tr, err := a.Trigger(); err != nil || tr != "tcb0" {
		t.Fatalf("Trigger() = %q, %v", tr, err)
	}
	if err := a.SetTrigger("adc-dev0-external_rising"); err != nil {
		t.Fatal(err)
	}
	if tr, _ := a.Trigger(); tr != "adc-dev0-external_rising" {
		t.Fatalf("Trigger() = %q after SetTrigger", tr)
	}
}

func TestADCSamplingFrequency(t *testing.T) {
	makeADC(t)
	a, err := NewADC(0)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	if f, err := a.SamplingFrequency(); err != nil || f != physic.KiloHertz {
		t.Fatalf("SamplingFrequency() = %s, %v", f, err)
	}
	if err := a.SetSamplingFrequency(8 * physic.KiloHertz); err != nil {
		t.Fatal(err)
	}
	if f, _ := a.SamplingFrequency(); f != 8*physic.KiloHertz {
		t.Fatalf("SamplingFrequency() = %s after set", f)
	}
}

func TestADCCaptureErrors(t *testing.T) {
	makeADC(t)
	a, err := NewADC(1)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	// No scan_elements on this device.
	if err := a.StartCapture(0, 64); err == nil {
		t.Fatal("StartCapture succeeded without a capture buffer")
	}
	if _, err := a.ReadCapture(make([]int, 4), 0); err == nil {
		t.Fatal("ReadCapture succeeded without a running capture")
	}
	if err := a.StopCapture(); err != nil {
		t.Fatalf("StopCapture on an idle device: %v", err)
	}
}
