/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

import "time"

// ExecutionModeRecord is the persisted orchestrator execution mode.
type ExecutionModeRecord struct {
	Mode      int
	UpdatedAt time.Time
}
