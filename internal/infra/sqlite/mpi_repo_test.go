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

func TestMPI_CreateList(t *testing.T) {
	ctx := context.Background()
	db, err := InitDB(ctx, ":memory:")
	if err != nil {
		t.Fatalf("InitDB error: %v", err)
	}
	defer CloseDB(db)

	repo := NewMPIRepository(db)
	now := time.Now().UTC().Truncate(time.Second)

	records, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}

	for i, role := range []int{0x10, 0x20} {
		_, err := repo.Create(ctx, &model.MPIRecord{
			ClassID:   []byte{byte(i)},
			Role:      role,
			Area:      []byte{0x86},
			Digest:    []byte{0x00},
			CreatedAt: now,
		})
		if err != nil {
			t.Fatalf("Create error: %v", err)
		}
	}

	records, err = repo.List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Role != 0x10 || records[1].Role != 0x20 {
		t.Fatalf("unexpected order: %d, %d", records[0].Role, records[1].Role)
	}
}
