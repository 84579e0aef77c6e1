/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kentakayama/suit-orchestrator/internal/domain/model"
)

// UpdateCandidateRepository handles the update-candidate descriptor.
type UpdateCandidateRepository struct {
	db *sql.DB
}

func NewUpdateCandidateRepository(db *sql.DB) *UpdateCandidateRepository {
	return &UpdateCandidateRepository{db: db}
}

// Set replaces the stored descriptor with regions.
// This operation is performed in a transaction to ensure atomicity.
func (r *UpdateCandidateRepository) Set(ctx context.Context, regions []model.MemoryRegion) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM update_candidate_regions`); err != nil {
		return fmt.Errorf("clear regions: %w", err)
	}

	const ins = `
		INSERT INTO update_candidate_regions (idx, address, size)
		VALUES (?, ?, ?)
	`
	for i, region := range regions {
		// stored as the two's complement bit pattern
		if _, err := tx.ExecContext(ctx, ins, i, int64(region.Address), int64(region.Size)); err != nil {
			return fmt.Errorf("insert region %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Get returns the stored regions in order, nil when no candidate is set.
func (r *UpdateCandidateRepository) Get(ctx context.Context) ([]model.MemoryRegion, error) {
	const q = `
		SELECT address, size
		FROM update_candidate_regions
		ORDER BY idx
	`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query regions: %w", err)
	}
	defer rows.Close()

	var regions []model.MemoryRegion
	for rows.Next() {
		var address, size int64
		if err := rows.Scan(&address, &size); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		regions = append(regions, model.MemoryRegion{Address: uint64(address), Size: uint64(size)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return regions, nil
}

func (r *UpdateCandidateRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM update_candidate_regions`); err != nil {
		return fmt.Errorf("clear regions: %w", err)
	}
	return nil
}
