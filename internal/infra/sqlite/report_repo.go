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

// ReportRepository handles SUIT storage report slots.
type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Save stores the report, replacing whatever the slot held.
func (r *ReportRepository) Save(ctx context.Context, report *model.Report) error {
	const q = `
		INSERT OR REPLACE INTO reports (slot, payload, created_at)
		VALUES (?, ?, ?)
	`
	payload := report.Payload
	if payload == nil {
		payload = []byte{}
	}
	if _, err := r.db.ExecContext(ctx, q, report.Slot, payload, report.CreatedAt); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// FindBySlot returns the report stored in slot, nil if the slot is empty.
func (r *ReportRepository) FindBySlot(ctx context.Context, slot int) (*model.Report, error) {
	const q = `
		SELECT slot, payload, created_at
		FROM reports
		WHERE slot = ?
	`
	row := r.db.QueryRowContext(ctx, q, slot)
	var report model.Report
	if err := row.Scan(&report.Slot, &report.Payload, &report.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan report: %w", err)
	}
	return &report, nil
}

// Clear empties slot. Clearing an empty slot is not an error.
func (r *ReportRepository) Clear(ctx context.Context, slot int) error {
	const q = `DELETE FROM reports WHERE slot = ?`
	if _, err := r.db.ExecContext(ctx, q, slot); err != nil {
		return fmt.Errorf("clear report: %w", err)
	}
	return nil
}
