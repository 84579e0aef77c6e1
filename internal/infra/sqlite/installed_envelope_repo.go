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

// InstalledEnvelopeRepository handles installed SUIT envelope persistence.
type InstalledEnvelopeRepository struct {
	db *sql.DB
}

func NewInstalledEnvelopeRepository(db *sql.DB) *InstalledEnvelopeRepository {
	return &InstalledEnvelopeRepository{db: db}
}

// Save stores the envelope of a class ID, replacing the previous one, and
// returns the row id.
func (r *InstalledEnvelopeRepository) Save(ctx context.Context, e *model.InstalledEnvelope) (int64, error) {
	const q = `
		INSERT INTO installed_envelopes (class_id, envelope, sequence_number, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(class_id) DO UPDATE SET
			envelope = excluded.envelope,
			sequence_number = excluded.sequence_number,
			created_at = excluded.created_at
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, q, e.ClassID, e.Envelope, int64(e.SequenceNumber), e.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save installed_envelope: %w", err)
	}
	return id, nil
}

// FindByClassID returns the envelope installed for classID, nil if none.
func (r *InstalledEnvelopeRepository) FindByClassID(ctx context.Context, classID []byte) (*model.InstalledEnvelope, error) {
	const q = `
		SELECT id, class_id, envelope, sequence_number, created_at
		FROM installed_envelopes
		WHERE class_id = ?
		LIMIT 1
	`
	row := r.db.QueryRowContext(ctx, q, classID)
	var e model.InstalledEnvelope
	var seq int64
	if err := row.Scan(&e.ID, &e.ClassID, &e.Envelope, &seq, &e.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan installed_envelope: %w", err)
	}
	e.SequenceNumber = uint64(seq)
	return &e, nil
}
