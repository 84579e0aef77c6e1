/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

import "time"

// Report is a SUIT storage report slot. An existing row means the slot
// is set, regardless of the payload length.
type Report struct {
	Slot      int
	Payload   []byte
	CreatedAt time.Time
}
