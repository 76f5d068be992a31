// Copyright 2026 The MPIO Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package evdev

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// makeDevice fabricates an event device file holding the given events.
func makeDevice(t *testing.T, events ...Event) {
	t.Helper()
	old := evdevRoot
	evdevRoot = t.TempDir()
	t.Cleanup(func() { evdevRoot = old })
	var buf bytes.Buffer
	for _, e := range events {
		raw := struct {
			Time  unix.Timeval
			Type  uint16
			Code  uint16
			Value int32
		}{
			Time:  unix.NsecToTimeval(e.Time.UnixNano()),
			Type:  e.Type,
			Code:  e.Code,
			Value: e.Value,
		}
		if err := binary.Write(&buf, binary.LittleEndian, &raw); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(evdevRoot, "event0"), buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestEnumerate(t *testing.T) {
	makeDevice(t)
	if err := os.WriteFile(filepath.Join(evdevRoot, "event3"), nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(evdevRoot, "mice"), nil, 0o600); err != nil {
		t.Fatal(err)
	}
	names, err := Enumerate()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "event0" || names[1] != "event3" {
		t.Fatalf("Enumerate() = %v", names)
	}
}

func TestRead(t *testing.T) {
	when := time.Unix(1700000000, 0)
	makeDevice(t,
		Event{Time: when, Type: EvKey, Code: 148, Value: 1},
		Event{Time: when, Type: EvSyn},
	)
	d, err := New("/dev/input/event0")
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if d.String() != "event0" {
		t.Fatalf("String() = %q", d.String())
	}

	e, err := d.Read(time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if e.Type != EvKey || e.Code != 148 || e.Value != 1 {
		t.Fatalf("Read() = %+v", e)
	}
	if !e.Time.Equal(when) {
		t.Fatalf("Read() time = %s, want %s", e.Time, when)
	}
	e, err = d.Read(time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if e.Type != EvSyn {
		t.Fatalf("Read() = %+v", e)
	}
	// The fake device is exhausted.
	if _, err := d.Read(0); err == nil {
		t.Fatal("Read() succeeded past the last event")
	}
}

func TestReadFunc(t *testing.T) {
	makeDevice(t,
		Event{Type: EvKey, Code: 1, Value: 1},
		Event{Type: EvKey, Code: 1, Value: 0},
	)
	d, err := New("event0")
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	var got []Event
	_ = d.ReadFunc(func(e Event) bool {
		got = append(got, e)
		return len(got) < 2
	})
	if len(got) != 2 || got[0].Value != 1 || got[1].Value != 0 {
		t.Fatalf("ReadFunc() collected %+v", got)
	}
}

func TestIoctlOnRegularFile(t *testing.T) {
	makeDevice(t)
	d, err := New("event0")
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if _, _, _, err := d.DriverVersion(); err == nil {
		t.Fatal("EVIOCGVERSION succeeded on a regular file")
	}
	if _, err := d.ID(); err == nil {
		t.Fatal("EVIOCGID succeeded on a regular file")
	}
}

func TestNewMissing(t *testing.T) {
	makeDevice(t)
	if _, err := New("event9"); err == nil {
		t.Fatal("accepted a missing device")
	}
}
