/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package suit

import (
	"bytes"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"
)

const (
	EnvelopeTag         = 107
	envelopeTagBytesLen = 2
)

var envelopeTagBytes = []byte{0xD8, 0x6B}

type Nested[T any] struct {
	Value T
}

func (n *Nested[T]) UnmarshalCBOR(data []byte) error {
	// data is bstr wrapped something
	var raw []byte
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return err
	}
	// raw is the content
	return cbor.Unmarshal(raw, &n.Value)
}

func (n Nested[T]) MarshalCBOR() ([]byte, error) {
	raw, err := cbor.Marshal(n.Value)
	if err != nil {
		return nil, err
	}
	return cbor.Marshal(raw)
}

// draft-ietf-suit-manifest

type Envelope struct {
	Tagged                bool
	AuthenticationWrapper Nested[AuthenticationWrapper]
	ManifestBstr          cbor.RawMessage
}

func (e *Envelope) UnmarshalCBOR(data []byte) error {
	e.Tagged, data = e.SkipTag(data)
	var t map[any]cbor.RawMessage
	err := cbor.Unmarshal(data, &t)
	if err != nil {
		return ErrSUITManifestInvalidFormat
	}

	authenticationWrapperRaw := t[uint64(2)]
	if authenticationWrapperRaw == nil {
		return ErrSUITManifestInvalidFormat
	}
	err = cbor.Unmarshal(authenticationWrapperRaw, &e.AuthenticationWrapper)
	if err != nil {
		return err
	}

	e.ManifestBstr = t[uint64(3)]
	if e.ManifestBstr == nil {
		return ErrSUITManifestInvalidFormat
	}

	return nil
}

func (e *Envelope) SkipTag(data []byte) (bool, []byte) {
	// rough tag check
	if len(data) >= envelopeTagBytesLen && bytes.Equal(data[:envelopeTagBytesLen], envelopeTagBytes) {
		// tag exists, skip the data
		return true, data[envelopeTagBytesLen:]
	}
	return false, data
}

// VerifyDigest compares the SUIT_Digest of the authentication wrapper
// with the hash of the bstr-wrapped SUIT_Manifest.
// draft-ietf-suit-manifest-34#section-8.3
func (e *Envelope) VerifyDigest() error {
	var digest Digest
	if err := cbor.Unmarshal(e.AuthenticationWrapper.Value.DigestBstr, &digest); err != nil {
		return ErrSUITManifestNotAuthenticated
	}
	h, ok := DigestHash(digest.DigestAlg)
	if !ok {
		return ErrNotSupported
	}
	hasher := h.New()
	hasher.Write(e.ManifestBstr)
	if !bytes.Equal(digest.DigestBytes, hasher.Sum(nil)) {
		return ErrSUITManifestDigestMismatch
	}
	return nil
}

// Verify checks the manifest digest and then the authentication blocks
// against the given key. Any one valid block authenticates the envelope.
// draft-ietf-suit-manifest-34#section-6.2
func (e *Envelope) Verify(key *cose.Key) error {
	if err := e.VerifyDigest(); err != nil {
		return err
	}

	publicKey, err := key.PublicKey()
	if err != nil {
		return ErrFatal
	}
	alg, err := key.AlgorithmOrDefault()
	if err != nil {
		return ErrFatal
	}
	verifier, err := cose.NewVerifier(alg, publicKey)
	if err != nil {
		return ErrFatal
	}

	for i := 0; i < len(e.AuthenticationWrapper.Value.AuthenticationBlocks); i++ {
		var sign1 Nested[cose.Sign1Message]
		err = cbor.Unmarshal(e.AuthenticationWrapper.Value.AuthenticationBlocks[i].authenticationBlockBstr, &sign1)
		if err != nil {
			// TODO: only COSE_Sign1 is supported
			return ErrSUITManifestNotAuthenticated
		}
		if sign1.Value.Payload != nil {
			return ErrSUITManifestInvalidFormat
		}
		sign1.Value.Payload = e.AuthenticationWrapper.Value.DigestBstr
		if err = sign1.Value.Verify(nil, verifier); err == nil {
			// authenticated
			return nil
		}
	}
	return ErrSUITManifestNotAuthenticated
}

// KID returns the key ID of the first authentication block, nil when the
// envelope carries only the digest.
func (e *Envelope) KID() []byte {
	blocks := e.AuthenticationWrapper.Value.AuthenticationBlocks
	if len(blocks) == 0 {
		return nil
	}
	return blocks[0].KID
}

type AuthenticationWrapper struct {
	// the bstr-wrapped SUIT_Digest
	DigestBstr           []byte
	AuthenticationBlocks []AuthenticationBlock
}

type AuthenticationBlock struct {
	KID                     []byte
	authenticationBlockBstr cbor.RawMessage
}

func (a *AuthenticationWrapper) UnmarshalCBOR(data []byte) error {
	var suitAuthenticationElements []cbor.RawMessage
	if err := cbor.Unmarshal(data, &suitAuthenticationElements); err != nil {
		return ErrSUITManifestInvalidFormat
	}
	// requires bstr .cbor SUIT_Digest followed by zero or more bstr .cbor SUIT_Authentication_Block
	if len(suitAuthenticationElements) < 1 {
		return ErrSUITManifestInvalidFormat
	}
	if err := cbor.Unmarshal(suitAuthenticationElements[0], &a.DigestBstr); err != nil {
		return ErrSUITManifestInvalidFormat
	}
	a.AuthenticationBlocks = nil
	for _, raw := range suitAuthenticationElements[1:] {
		// extract kid from the headers
		var sign1 Nested[cose.Sign1Message]
		if err := cbor.Unmarshal(raw, &sign1); err != nil {
			return ErrSUITManifestInvalidFormat
		}
		kid := extractKID(sign1.Value)
		if kid == nil {
			return ErrSUITManifestMissingKID
		}
		a.AuthenticationBlocks = append(a.AuthenticationBlocks, AuthenticationBlock{
			KID:                     kid,
			authenticationBlockBstr: raw,
		})
	}

	return nil
}

func extractKID(sign1 cose.Sign1Message) []byte {
	if p4, ok := sign1.Headers.Protected[int64(4)]; ok {
		if kid, ok := p4.([]byte); ok {
			return kid
		}
		return nil
	}
	if u4, ok := sign1.Headers.Unprotected[int64(4)]; ok {
		if kid, ok := u4.([]byte); ok {
			return kid
		}
		return nil
	}
	return nil
}

type Manifest struct {
	ManifestVersion        uint64         `cbor:"1,keyasint"`
	ManifestSequenceNumber uint64         `cbor:"2,keyasint"`
	Common                 Nested[Common] `cbor:"3,keyasint"`
	// draft-ietf-suit-trust-domains
	ManifestComponentID ComponentID `cbor:"5,keyasint,omitempty"`
	// draft-ietf-suit-update-management
	CurrentVersion []int64 `cbor:"6,keyasint,omitempty"`

	Validate              cbor.RawMessage `cbor:"7,keyasint,omitempty"`
	Load                  cbor.RawMessage `cbor:"8,keyasint,omitempty"`
	Invoke                cbor.RawMessage `cbor:"9,keyasint,omitempty"`
	DependencyResolution  cbor.RawMessage `cbor:"15,keyasint,omitempty"`
	PayloadFetch          cbor.RawMessage `cbor:"16,keyasint,omitempty"`
	Install               cbor.RawMessage `cbor:"17,keyasint,omitempty"`
	CandidateVerification cbor.RawMessage `cbor:"18,keyasint,omitempty"`
}

type Common struct {
	Components     []ComponentID `cbor:"2,keyasint,omitempty"`
	SharedSequence []byte        `cbor:"4,keyasint,omitempty"` // no need to extract SUIT_Shared_Sequence
	// TODO: $$SUIT_Common-extensions
}

type ComponentID [][]byte

type Digest struct {
	_           struct{}       `cbor:",toarray"`
	DigestAlg   cose.Algorithm `cbor:"0,keyasint"` // SHA-256 (-16), etc.
	DigestBytes []byte         `cbor:"1,keyasint"`
}
