/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/kentakayama/suit-orchestrator/internal/domain/model"
)

func TestReport_SaveFindClear(t *testing.T) {
	ctx := context.Background()
	db, err := InitDB(ctx, ":memory:")
	if err != nil {
		t.Fatalf("InitDB error: %v", err)
	}
	defer CloseDB(db)

	repo := NewReportRepository(db)

	got, err := repo.FindBySlot(ctx, 0)
	if err != nil {
		t.Fatalf("FindBySlot error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected empty slot, got %v", got)
	}

	// a zero-length report still marks the slot as set
	if err := repo.Save(ctx, &model.Report{Slot: 0, CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	got, err = repo.FindBySlot(ctx, 0)
	if err != nil {
		t.Fatalf("FindBySlot error: %v", err)
	}
	if got == nil {
		t.Fatalf("expected report in slot 0")
	}
	if len(got.Payload) != 0 {
		t.Fatalf("expected empty payload, got %x", got.Payload)
	}

	if err := repo.Save(ctx, &model.Report{Slot: 0, Payload: []byte{0x01}}); err != nil {
		t.Fatalf("Save overwrite error: %v", err)
	}
	got, err = repo.FindBySlot(ctx, 0)
	if err != nil || got == nil || len(got.Payload) != 1 {
		t.Fatalf("expected overwritten report, got %v err %v", got, err)
	}

	if err := repo.Clear(ctx, 0); err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	if err := repo.Clear(ctx, 0); err != nil {
		t.Fatalf("Clear on empty slot error: %v", err)
	}
	got, err = repo.FindBySlot(ctx, 0)
	if err != nil {
		t.Fatalf("FindBySlot error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected cleared slot, got %v", got)
	}
}
