/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package suit

import (
	"crypto"
	_ "crypto/sha256"
	_ "crypto/sha512"

	"github.com/veraison/go-cose"
)

// AlgorithmSHA512 is the COSE algorithm ID of SHA-512 (RFC 9054).
const AlgorithmSHA512 = cose.Algorithm(-44)

// DigestHash maps a SUIT digest algorithm ID to its hash function. Only
// SHA-256 and SHA-512 are accepted.
func DigestHash(alg cose.Algorithm) (crypto.Hash, bool) {
	var h crypto.Hash
	switch alg {
	case cose.AlgorithmSHA256:
		h = crypto.SHA256
	case AlgorithmSHA512:
		h = crypto.SHA512
	default:
		return 0, false
	}
	if !h.Available() {
		return 0, false
	}
	return h, true
}
