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

// MPIRepository handles Manifest Provisioning Information persistence.
type MPIRepository struct {
	db *sql.DB
}

func NewMPIRepository(db *sql.DB) *MPIRepository {
	return &MPIRepository{db: db}
}

// Create inserts a new MPI record and returns the inserted id.
func (r *MPIRepository) Create(ctx context.Context, rec *model.MPIRecord) (int64, error) {
	const q = `
		INSERT INTO mpi_records (class_id, role, area, digest, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	res, err := r.db.ExecContext(ctx, q, rec.ClassID, rec.Role, rec.Area, rec.Digest, rec.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert mpi_record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, nil
}

// List returns every MPI record in provisioning order.
func (r *MPIRepository) List(ctx context.Context) ([]*model.MPIRecord, error) {
	const q = `
		SELECT id, class_id, role, area, digest, created_at
		FROM mpi_records
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query mpi_records: %w", err)
	}
	defer rows.Close()

	var records []*model.MPIRecord
	for rows.Next() {
		var rec model.MPIRecord
		if err := rows.Scan(&rec.ID, &rec.ClassID, &rec.Role, &rec.Area, &rec.Digest, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return records, nil
}
