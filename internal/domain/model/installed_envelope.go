/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

import "time"

// InstalledEnvelope is the envelope currently installed for one manifest
// class.
type InstalledEnvelope struct {
	ID             int64
	ClassID        []byte
	Envelope       []byte
	SequenceNumber uint64
	CreatedAt      time.Time
}
