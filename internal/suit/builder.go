/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package suit

import (
	"crypto/rand"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"
)

// WrapSequence encodes commands as a bstr-wrapped SUIT_Command_Sequence,
// ready to be placed in a Manifest sequence member.
func WrapSequence(commands []any) (cbor.RawMessage, error) {
	inner, err := cbor.Marshal(commands)
	if err != nil {
		return nil, err
	}
	return cbor.Marshal(inner)
}

// BuildEnvelope encodes m into a SUIT_Envelope whose authentication
// wrapper carries the digest of the manifest computed with alg. When
// signer is not nil, a detached COSE_Sign1 over the digest is appended
// with the given kid.
func BuildEnvelope(m *Manifest, alg cose.Algorithm, signer cose.Signer, kid []byte) ([]byte, error) {
	manifestBytes, err := cbor.Marshal(m)
	if err != nil {
		return nil, err
	}
	manifestBstr, err := cbor.Marshal(manifestBytes)
	if err != nil {
		return nil, err
	}

	h, ok := DigestHash(alg)
	if !ok {
		return nil, ErrNotSupported
	}
	hasher := h.New()
	hasher.Write(manifestBstr)
	digestBstr, err := cbor.Marshal(Digest{DigestAlg: alg, DigestBytes: hasher.Sum(nil)})
	if err != nil {
		return nil, err
	}

	wrapper := []cbor.RawMessage{}
	d, err := cbor.Marshal(digestBstr)
	if err != nil {
		return nil, err
	}
	wrapper = append(wrapper, d)

	if signer != nil {
		msg := cose.NewSign1Message()
		msg.Headers.Protected.SetAlgorithm(signer.Algorithm())
		msg.Headers.Unprotected[cose.HeaderLabelKeyID] = kid
		msg.Payload = digestBstr
		if err := msg.Sign(rand.Reader, nil, signer); err != nil {
			return nil, err
		}
		// detached payload
		msg.Payload = nil
		sign1, err := msg.MarshalCBOR()
		if err != nil {
			return nil, err
		}
		block, err := cbor.Marshal(sign1)
		if err != nil {
			return nil, err
		}
		wrapper = append(wrapper, block)
	}

	wrapperBytes, err := cbor.Marshal(wrapper)
	if err != nil {
		return nil, err
	}
	wrapperBstr, err := cbor.Marshal(wrapperBytes)
	if err != nil {
		return nil, err
	}

	return cbor.Marshal(map[uint64]cbor.RawMessage{
		2: wrapperBstr,
		3: manifestBstr,
	})
}
