/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package sqlite

import (
	"context"
	"testing"
)

func TestExecutionMode_SetGet(t *testing.T) {
	ctx := context.Background()
	db, err := InitDB(ctx, ":memory:")
	if err != nil {
		t.Fatalf("InitDB error: %v", err)
	}
	defer CloseDB(db)

	repo := NewExecutionModeRepository(db)

	got, err := repo.Get(ctx)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no mode, got %v", got)
	}

	for _, mode := range []int{1, 5} {
		if err := repo.Set(ctx, mode); err != nil {
			t.Fatalf("Set(%d) error: %v", mode, err)
		}
		got, err = repo.Get(ctx)
		if err != nil {
			t.Fatalf("Get error: %v", err)
		}
		if got == nil || got.Mode != mode {
			t.Fatalf("mode mismatch: want %d got %v", mode, got)
		}
	}
}
