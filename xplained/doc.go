// Copyright 2026 The MPIO Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package xplained contains the board level wiring of the Microchip
// evaluation kits: Xplained, EK and Curiosity boards.
//
// It registers the user LEDs and push buttons under stable aliases like
// "LED_RED" and "USER_BUTTON", and the expansion socket of the board as a
// header, so applications can address a socket position like "MIKROBUS1_7"
// without caring which PIO line it is routed to on a given board.
package xplained
