/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package sink

import (
	"crypto/subtle"
	"hash"

	"github.com/kentakayama/suit-orchestrator/internal/suit"
	"github.com/veraison/go-cose"
)

// Digest hashes everything written to it.
type Digest struct {
	h        hash.Hash
	released bool
}

// NewDigest returns a digest sink for alg, SHA-256 or SHA-512.
func NewDigest(alg cose.Algorithm) (*Digest, error) {
	h, ok := suit.DigestHash(alg)
	if !ok {
		return nil, ErrUnsupportedAlg
	}
	return &Digest{h: h.New()}, nil
}

func (d *Digest) Write(p []byte) (int, error) {
	if d.released {
		return 0, ErrReleased
	}
	return d.h.Write(p)
}

// Seek only accepts a rewind to the start, which resets the hash.
func (d *Digest) Seek(offset uint64) error {
	if offset != 0 {
		return ErrSeekOutOfRange
	}
	d.h.Reset()
	return nil
}

func (d *Digest) Release() error {
	d.released = true
	return nil
}

func (d *Digest) Sum() []byte {
	return d.h.Sum(nil)
}

// Match compares the running digest with expected.
func (d *Digest) Match(expected []byte) error {
	if subtle.ConstantTimeCompare(d.h.Sum(nil), expected) != 1 {
		return ErrDigestMismatch
	}
	return nil
}
