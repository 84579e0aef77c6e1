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
	"time"

	"github.com/kentakayama/suit-orchestrator/internal/domain/model"
)

// ExecutionModeRepository handles the persisted execution mode.
type ExecutionModeRepository struct {
	db *sql.DB
}

func NewExecutionModeRepository(db *sql.DB) *ExecutionModeRepository {
	return &ExecutionModeRepository{db: db}
}

func (r *ExecutionModeRepository) Set(ctx context.Context, mode int) error {
	const q = `
		INSERT INTO execution_mode (id, mode, updated_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			mode = excluded.mode,
			updated_at = excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, q, mode, time.Now().UTC()); err != nil {
		return fmt.Errorf("set execution_mode: %w", err)
	}
	return nil
}

// Get returns the persisted mode, nil if it was never set.
func (r *ExecutionModeRepository) Get(ctx context.Context) (*model.ExecutionModeRecord, error) {
	const q = `
		SELECT mode, updated_at
		FROM execution_mode
		WHERE id = 1
	`
	var rec model.ExecutionModeRecord
	if err := r.db.QueryRowContext(ctx, q).Scan(&rec.Mode, &rec.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan execution_mode: %w", err)
	}
	return &rec, nil
}
