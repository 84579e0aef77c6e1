/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kentakayama/suit-orchestrator/internal/domain/model"
)

// ManifestSigningKeyRepository keeps the trust anchors used to
// authenticate SUIT envelopes, keyed by their COSE_Key thumbprint.
type ManifestSigningKeyRepository struct {
	db *sql.DB
}

func NewManifestSigningKeyRepository(db *sql.DB) *ManifestSigningKeyRepository {
	return &ManifestSigningKeyRepository{db: db}
}

// Create stores a trust anchor and returns its row id.
func (r *ManifestSigningKeyRepository) Create(ctx context.Context, key *model.ManifestSigningKey) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO manifest_signing_keys (kid, public_key, created_at, expired_at) VALUES (?, ?, ?, ?)`,
		key.KID, key.PublicKey, key.CreatedAt, key.ExpiredAt)
	if err != nil {
		return 0, fmt.Errorf("insert trust anchor h'%x': %w", key.KID, err)
	}
	return res.LastInsertId()
}

// FindByKID returns the trust anchor with the given thumbprint, nil if
// unknown. Expired anchors are returned too; validity is judged by the
// caller.
func (r *ManifestSigningKeyRepository) FindByKID(ctx context.Context, kid []byte) (*model.ManifestSigningKey, error) {
	var key model.ManifestSigningKey
	err := r.db.QueryRowContext(ctx,
		`SELECT id, kid, public_key, created_at, expired_at FROM manifest_signing_keys WHERE kid = ?`,
		kid).Scan(&key.ID, &key.KID, &key.PublicKey, &key.CreatedAt, &key.ExpiredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select trust anchor h'%x': %w", kid, err)
	}
	return &key, nil
}

// Renew moves the expiry of an existing trust anchor. It reports false
// when no anchor has the given thumbprint.
func (r *ManifestSigningKeyRepository) Renew(ctx context.Context, kid []byte, expiredAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE manifest_signing_keys SET expired_at = ? WHERE kid = ?`,
		expiredAt, kid)
	if err != nil {
		return false, fmt.Errorf("renew trust anchor h'%x': %w", kid, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteExpired drops every trust anchor that expired at or before now
// and returns how many were removed.
func (r *ManifestSigningKeyRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM manifest_signing_keys WHERE expired_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired trust anchors: %w", err)
	}
	return res.RowsAffected()
}
