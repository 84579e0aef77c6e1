/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

import "time"

// MPIRecord is one provisioned Manifest Provisioning Information area.
// Area is the CBOR encoded MPI and Digest its SHA-256 as provisioned.
type MPIRecord struct {
	ID        int64
	ClassID   []byte
	Role      int
	Area      []byte
	Digest    []byte
	CreatedAt time.Time
}
