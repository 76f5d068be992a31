// Copyright 2026 The MPIO Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package fs

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestEvent(t *testing.T) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		t.Fatal(err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	var e Event
	if err := e.MakeEvent(uintptr(fds[0]), EpollIn); err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	// Nothing to read yet.
	n, err := e.Wait(0)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("Wait() = %d events on an idle pipe", n)
	}

	if _, err := unix.Write(fds[1], []byte{1}); err != nil {
		t.Fatal(err)
	}
	n, err = e.Wait(1000)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("Wait() = %d events, want 1", n)
	}

	// Edge triggered: the same unread byte must not fire again.
	n, err = e.Wait(0)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("Wait() = %d events without a new edge", n)
	}
}

func TestEventCloseIdempotent(t *testing.T) {
	var e Event
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
}
