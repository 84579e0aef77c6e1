/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package arbiter

import (
	"testing"

	"github.com/kentakayama/suit-orchestrator/internal/domain/model"
	"github.com/stretchr/testify/assert"
)

func TestTable_MemAccessCheck(t *testing.T) {
	tbl := NewTable()
	tbl.Grant(OwnerApplication, PermRead|PermWrite, model.MemoryRegion{Address: 0x0E0A0000, Size: 0x20000})
	tbl.Grant(OwnerRadio, PermRead, model.MemoryRegion{Address: 0x0E0A0000, Size: 0x10000})

	assert.Nil(t, tbl.MemAccessCheck(OwnerApplication, PermWrite, 0x0E0A1000, 0x1000))
	assert.Nil(t, tbl.MemAccessCheck(OwnerRadio, PermRead, 0x0E0A0000, 0x10000))
	assert.ErrorIs(t, tbl.MemAccessCheck(OwnerRadio, PermWrite, 0x0E0A0000, 0x1000), ErrAccessDenied)
	assert.ErrorIs(t, tbl.MemAccessCheck(OwnerRadio, PermRead, 0x0E0A0000, 0x10001), ErrAccessDenied)
	assert.ErrorIs(t, tbl.MemAccessCheck(OwnerSecure, PermRead, 0x0E0A0000, 0x10), ErrAccessDenied)
}
