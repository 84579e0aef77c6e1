/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package mci

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRole_InPlaceUpdateable(t *testing.T) {
	for role := range roleNames {
		want := role == RoleAppLocal1 || role == RoleAppLocal2 || role == RoleAppLocal3 ||
			role == RoleRadLocal1 || role == RoleRadLocal2
		assert.Equal(t, want, role.InPlaceUpdateable(), role.String())
	}
	assert.False(t, RoleUnknown.InPlaceUpdateable())
}
