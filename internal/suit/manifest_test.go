/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package suit

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veraison/go-cose"
)

var testClassID = uuid.MustParse("97c1b0c0-36c6-5a3c-b4e0-1ef1ea3b3e2a")

func newTestManifest(t *testing.T) *Manifest {
	validate, err := WrapSequence([]any{uint64(3), uint64(15)})
	require.Nil(t, err)
	invoke, err := WrapSequence([]any{uint64(23), uint64(15)})
	require.Nil(t, err)
	return &Manifest{
		ManifestVersion:        1,
		ManifestSequenceNumber: 3,
		Common: Nested[Common]{Value: Common{
			Components: []ComponentID{{[]byte("M"), {0x02}, {0x1a, 0x0e, 0x0a, 0x00, 0x00}, {0x19, 0x10, 0x00}}},
		}},
		ManifestComponentID: ComponentID{[]byte("I"), testClassID[:]},
		CurrentVersion:      []int64{1, 2, 3},
		Validate:            validate,
		Invoke:              invoke,
	}
}

func newTestKey(t *testing.T) (cose.Signer, *cose.Key, []byte) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.Nil(t, err)
	signer, err := cose.NewSigner(cose.AlgorithmES256, priv)
	require.Nil(t, err)

	x := make([]byte, 32)
	y := make([]byte, 32)
	priv.PublicKey.X.FillBytes(x)
	priv.PublicKey.Y.FillBytes(y)
	key, err := cose.NewKeyEC2(cose.AlgorithmES256, x, y, nil)
	require.Nil(t, err)
	return signer, key, []byte("test-kid")
}

func TestEnvelope_VerifyDigest_OK(t *testing.T) {
	for _, alg := range []cose.Algorithm{cose.AlgorithmSHA256, AlgorithmSHA512} {
		encoded, err := BuildEnvelope(newTestManifest(t), alg, nil, nil)
		require.Nil(t, err)

		var e Envelope
		require.Nil(t, cbor.Unmarshal(encoded, &e))
		assert.False(t, e.Tagged)
		assert.Nil(t, e.KID())
		assert.Nil(t, e.VerifyDigest())
	}
}

func TestEnvelope_VerifyDigest_Tampered_NG(t *testing.T) {
	encoded, err := BuildEnvelope(newTestManifest(t), cose.AlgorithmSHA256, nil, nil)
	require.Nil(t, err)

	var e Envelope
	require.Nil(t, cbor.Unmarshal(encoded, &e))
	e.ManifestBstr[len(e.ManifestBstr)-1] ^= 0x01
	assert.ErrorIs(t, e.VerifyDigest(), ErrSUITManifestDigestMismatch)
}

func TestEnvelope_Tagged_OK(t *testing.T) {
	encoded, err := BuildEnvelope(newTestManifest(t), cose.AlgorithmSHA256, nil, nil)
	require.Nil(t, err)
	tagged := append([]byte{0xD8, 0x6B}, encoded...)

	var e Envelope
	require.Nil(t, cbor.Unmarshal(tagged, &e))
	assert.True(t, e.Tagged)
	assert.Nil(t, e.VerifyDigest())
}

func TestEnvelope_Verify_Signed_OK(t *testing.T) {
	signer, key, kid := newTestKey(t)
	encoded, err := BuildEnvelope(newTestManifest(t), cose.AlgorithmSHA256, signer, kid)
	require.Nil(t, err)

	var e Envelope
	require.Nil(t, cbor.Unmarshal(encoded, &e))
	assert.Equal(t, kid, e.KID())
	assert.Nil(t, e.Verify(key))

	_, otherKey, _ := newTestKey(t)
	assert.ErrorIs(t, e.Verify(otherKey), ErrSUITManifestNotAuthenticated)
}

func TestManifest_CommandSequence(t *testing.T) {
	m := newTestManifest(t)

	commands, err := m.CommandSequence(SequenceValidate)
	require.Nil(t, err)
	assert.Len(t, commands, 2)

	_, err = m.CommandSequence(SequenceLoad)
	assert.ErrorIs(t, err, ErrSUITSequenceNotFound)

	severed, err := cbor.Marshal(Digest{DigestAlg: cose.AlgorithmSHA256, DigestBytes: make([]byte, 32)})
	require.Nil(t, err)
	m.Install = severed
	_, err = m.CommandSequence(SequenceInstall)
	assert.ErrorIs(t, err, ErrSUITSequenceSevered)
}
