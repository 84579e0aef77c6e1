/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package sqlite

import (
	"context"
	"testing"

	"github.com/kentakayama/suit-orchestrator/internal/domain/model"
)

func TestUpdateCandidate_SetGetClear(t *testing.T) {
	ctx := context.Background()
	db, err := InitDB(ctx, ":memory:")
	if err != nil {
		t.Fatalf("InitDB error: %v", err)
	}
	defer CloseDB(db)

	repo := NewUpdateCandidateRepository(db)

	got, err := repo.Get(ctx)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no candidate, got %v", got)
	}

	regions := []model.MemoryRegion{
		{Address: 0x0E0A0000, Size: 0x400},
		{Address: 0x0E100000, Size: 0x10000},
		// all-ones values survive the signed column
		{Address: ^uint64(0), Size: ^uint64(0)},
	}
	if err := repo.Set(ctx, regions); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	got, err = repo.Get(ctx)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if len(got) != len(regions) {
		t.Fatalf("region count mismatch: want %d got %d", len(regions), len(got))
	}
	for i := range regions {
		if got[i] != regions[i] {
			t.Fatalf("region %d mismatch: want %v got %v", i, regions[i], got[i])
		}
	}

	// Set replaces the whole descriptor
	if err := repo.Set(ctx, regions[:1]); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	got, err = repo.Get(ctx)
	if err != nil || len(got) != 1 {
		t.Fatalf("expected a single region, got %v err %v", got, err)
	}

	if err := repo.Clear(ctx); err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	got, err = repo.Get(ctx)
	if err != nil || got != nil {
		t.Fatalf("expected cleared candidate, got %v err %v", got, err)
	}
}
