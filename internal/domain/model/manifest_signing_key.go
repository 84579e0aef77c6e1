/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

import "time"

// ManifestSigningKey is a trust anchor for SUIT envelope authentication.
type ManifestSigningKey struct {
	ID        int64
	KID       []byte
	PublicKey []byte
	CreatedAt time.Time
	ExpiredAt time.Time
}
