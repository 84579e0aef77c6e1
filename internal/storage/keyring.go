/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package storage

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/kentakayama/suit-orchestrator/internal/domain"
	"github.com/kentakayama/suit-orchestrator/internal/domain/model"
	"github.com/veraison/go-cose"
)

// AddTrustAnchor stores the public part of key as a manifest signing key
// valid for validity, and returns its KID, the SHA-256 COSE_Key
// thumbprint. Adding an expired anchor again renews it.
func (s *Storage) AddTrustAnchor(ctx context.Context, key *cose.Key, validity time.Duration) ([]byte, error) {
	if key == nil {
		return nil, errors.New("public key is nil")
	}
	kid, err := key.Thumbprint(crypto.SHA256)
	if err != nil {
		return nil, err
	}
	pubKeyBytes, err := cbor.Marshal(key)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Second)
	existing, err := s.keys.FindByKID(ctx, kid)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.ExpiredAt.After(now) {
			return kid, nil
		}
		if _, err := s.keys.Renew(ctx, kid, now.Add(validity)); err != nil {
			return nil, err
		}
		return kid, nil
	}

	if _, err := s.keys.Create(ctx, &model.ManifestSigningKey{
		KID:       kid,
		PublicKey: pubKeyBytes,
		CreatedAt: now,
		ExpiredAt: now.Add(validity),
	}); err != nil {
		return nil, err
	}
	return kid, nil
}

// FindKey returns the trust anchor identified by kid. Unknown and expired
// keys are reported as errors wrapping domain.ErrNotFound and
// domain.ErrExpired.
func (s *Storage) FindKey(ctx context.Context, kid []byte) (*cose.Key, error) {
	key, err := s.keys.FindByKID(ctx, kid)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, fmt.Errorf("%w: kid h'%x'", domain.ErrNotFound, kid)
	}
	if !key.ExpiredAt.After(time.Now()) {
		return nil, fmt.Errorf("%w: kid h'%x'", domain.ErrExpired, kid)
	}

	var coseKey cose.Key
	if err := cbor.Unmarshal(key.PublicKey, &coseKey); err != nil {
		return nil, err
	}
	return &coseKey, nil
}

// PruneTrustAnchors removes expired trust anchors.
func (s *Storage) PruneTrustAnchors(ctx context.Context) (int64, error) {
	return s.keys.DeleteExpired(ctx, time.Now().UTC().Truncate(time.Second))
}
