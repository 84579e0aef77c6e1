/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package platform

import (
	"context"
	"crypto/sha256"
	"io"
	"log"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/kentakayama/suit-orchestrator/internal/config"
	"github.com/kentakayama/suit-orchestrator/internal/digestcache"
	"github.com/kentakayama/suit-orchestrator/internal/flash"
	"github.com/kentakayama/suit-orchestrator/internal/ipuc"
	"github.com/kentakayama/suit-orchestrator/internal/mci"
	"github.com/kentakayama/suit-orchestrator/internal/plat"
	"github.com/kentakayama/suit-orchestrator/internal/suit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veraison/go-cose"
)

var (
	testClassID  = uuid.MustParse("97c1b0c0-36c6-5a3c-b4e0-1ef1ea3b3e2a")
	testVendorID = uuid.MustParse("7617daa5-71fd-5a85-8f94-e28d735ce9f4")
)

const (
	testImageAddr = 0x0E0A0000
	testImageSize = 0x1000
)

type savedEnvelope struct {
	classID  uuid.UUID
	envelope []byte
	seq      uint64
}

type memEnvelopeStore struct {
	saved []savedEnvelope
}

func (s *memEnvelopeStore) SaveInstalledEnvelope(_ context.Context, classID uuid.UUID, envelope []byte, seq uint64) error {
	s.saved = append(s.saved, savedEnvelope{classID: classID, envelope: envelope, seq: seq})
	return nil
}

func wrapDigest(t *testing.T, image []byte) []byte {
	t.Helper()
	sum := sha256.Sum256(image)
	d, err := cbor.Marshal(suit.Digest{DigestAlg: cose.AlgorithmSHA256, DigestBytes: sum[:]})
	require.Nil(t, err)
	return d
}

func newImageManifest(t *testing.T, image []byte, digestOf []byte) *suit.Manifest {
	t.Helper()
	install, err := suit.WrapSequence([]any{
		uint64(directiveSetComponentIndex), uint64(0),
		uint64(directiveOverrideParameters), map[uint64]any{
			parameterVendorIdentifier: testVendorID[:],
			parameterClassIdentifier:  testClassID[:],
			parameterContent:          image,
		},
		uint64(conditionVendorIdentifier), uint64(15),
		uint64(conditionClassIdentifier), uint64(15),
		uint64(directiveWrite), uint64(15),
	})
	require.Nil(t, err)
	validate, err := suit.WrapSequence([]any{
		uint64(directiveOverrideParameters), map[uint64]any{
			parameterImageDigest: wrapDigest(t, digestOf),
			parameterImageSize:   uint64(len(digestOf)),
		},
		uint64(conditionImageMatch), uint64(15),
	})
	require.Nil(t, err)
	invoke, err := suit.WrapSequence([]any{uint64(directiveInvoke), uint64(15)})
	require.Nil(t, err)

	componentID, err := suit.EncodeMemComponentID(0x02, testImageAddr, testImageSize)
	require.Nil(t, err)
	var component suit.ComponentID
	require.Nil(t, cbor.Unmarshal(componentID, &component))

	return &suit.Manifest{
		ManifestVersion:        1,
		ManifestSequenceNumber: 7,
		Common:                 suit.Nested[suit.Common]{Value: suit.Common{Components: []suit.ComponentID{component}}},
		ManifestComponentID:    suit.ComponentID{[]byte("I"), testClassID[:]},
		Install:                install,
		Validate:               validate,
		Invoke:                 invoke,
	}
}

func newTestRunner(dev flash.Device, store EnvelopeStore) (*Runner, *digestcache.Cache) {
	cache := digestcache.New()
	return NewRunner(dev, cache, store, testVendorID, log.New(io.Discard, "", 0)), cache
}

func TestRunner_InstallValidateInvoke(t *testing.T) {
	ctx := context.Background()
	dev := flash.NewMemory(0x0E000000, 0x100000)
	store := &memEnvelopeStore{}
	runner, cache := newTestRunner(dev, store)
	p := suit.NewEnvelopeProcessor(nil, runner, log.New(io.Discard, "", 0))

	image := []byte("application firmware image")
	envelope, err := suit.BuildEnvelope(newImageManifest(t, image, image), cose.AlgorithmSHA256, nil, nil)
	require.Nil(t, err)

	require.Nil(t, p.ProcessSequence(ctx, envelope, suit.SequenceInstall))
	got := make([]byte, len(image))
	require.Nil(t, dev.ReadAt(got, testImageAddr))
	assert.Equal(t, image, got)
	require.Len(t, store.saved, 1)
	assert.Equal(t, testClassID, store.saved[0].classID)
	assert.Equal(t, uint64(7), store.saved[0].seq)
	assert.Equal(t, envelope, store.saved[0].envelope)

	require.Nil(t, p.ProcessSequence(ctx, envelope, suit.SequenceValidate))
	assert.Equal(t, 1, cache.Len())

	require.Nil(t, p.ProcessSequence(ctx, envelope, suit.SequenceInvoke))
	assert.Len(t, runner.Invoked(), 1)
}

func TestRunner_ImageMismatch_NG(t *testing.T) {
	ctx := context.Background()
	dev := flash.NewMemory(0x0E000000, 0x100000)
	runner, cache := newTestRunner(dev, nil)
	p := suit.NewEnvelopeProcessor(nil, runner, log.New(io.Discard, "", 0))

	envelope, err := suit.BuildEnvelope(newImageManifest(t, []byte("new"), []byte("old")), cose.AlgorithmSHA256, nil, nil)
	require.Nil(t, err)

	require.Nil(t, p.ProcessSequence(ctx, envelope, suit.SequenceInstall))
	assert.ErrorIs(t, p.ProcessSequence(ctx, envelope, suit.SequenceValidate), ErrConditionFailed)
	assert.Equal(t, 0, cache.Len())
}

func TestRunner_VendorMismatch_NG(t *testing.T) {
	ctx := context.Background()
	dev := flash.NewMemory(0x0E000000, 0x100000)
	runner := NewRunner(dev, nil, nil, uuid.MustParse("00000000-0000-0000-0000-000000000001"), log.New(io.Discard, "", 0))
	p := suit.NewEnvelopeProcessor(nil, runner, log.New(io.Discard, "", 0))

	envelope, err := suit.BuildEnvelope(newImageManifest(t, []byte("x"), []byte("x")), cose.AlgorithmSHA256, nil, nil)
	require.Nil(t, err)
	assert.ErrorIs(t, p.ProcessSequence(ctx, envelope, suit.SequenceInstall), ErrConditionFailed)
}

func TestRunner_UnknownCommand_NG(t *testing.T) {
	dev := flash.NewMemory(0x0E000000, 0x100000)
	runner, _ := newTestRunner(dev, nil)
	m := newImageManifest(t, []byte("x"), []byte("x"))
	cmd, err := cbor.Marshal(uint64(99))
	require.Nil(t, err)
	arg, err := cbor.Marshal(uint64(15))
	require.Nil(t, err)

	err = runner.Run(context.Background(), &suit.Invocation{
		Sequence: suit.SequenceLoad,
		Manifest: m,
		Commands: []cbor.RawMessage{cmd, arg},
	})
	assert.ErrorIs(t, err, suit.ErrNotSupported)
}

type staticRoles map[uuid.UUID]mci.Role

func (r staticRoles) RoleOf(_ context.Context, classID uuid.UUID) (mci.Role, error) {
	role, ok := r[classID]
	if !ok {
		return mci.RoleUnknown, mci.ErrManifestNotFound
	}
	return role, nil
}

func newTestRegistry(dev flash.Device, cache *digestcache.Cache) *ipuc.Registry {
	return ipuc.New(config.IPUCConfig{Size: 4, Logger: log.New(io.Discard, "", 0)}, dev, nil, cache)
}

func TestRunner_LocalManifestDeclaresComponents(t *testing.T) {
	ctx := context.Background()
	dev := flash.NewMemory(0x0E000000, 0x100000)
	runner, cache := newTestRunner(dev, nil)
	reg := newTestRegistry(dev, cache)
	runner.AttachRegistry(reg, staticRoles{testClassID: mci.RoleAppLocal1})
	p := suit.NewEnvelopeProcessor(nil, runner, log.New(io.Discard, "", 0))

	image := []byte("local application image")
	envelope, err := suit.BuildEnvelope(newImageManifest(t, image, image), cose.AlgorithmSHA256, nil, nil)
	require.Nil(t, err)
	componentID, err := suit.EncodeMemComponentID(0x02, testImageAddr, testImageSize)
	require.Nil(t, err)

	require.Nil(t, p.ProcessSequence(ctx, envelope, suit.SequenceInstall))
	require.Equal(t, 1, reg.Count())
	info, err := reg.Info(0)
	require.Nil(t, err)
	assert.Equal(t, componentID, info.ComponentID)
	assert.Equal(t, mci.RoleAppLocal1, info.Role)
	assert.Equal(t, ipuc.UsageUnused, info.Usage)

	// booting and reinstalling keep a single entry
	require.Nil(t, p.ProcessSequence(ctx, envelope, suit.SequenceValidate))
	require.Nil(t, p.ProcessSequence(ctx, envelope, suit.SequenceInstall))
	assert.Equal(t, 1, reg.Count())

	// an open session survives the boot sequences but blocks a reinstall
	require.Nil(t, reg.WriteSetup(5, componentID, nil, nil))
	require.Nil(t, p.ProcessSequence(ctx, envelope, suit.SequenceInvoke))
	assert.ErrorIs(t, p.ProcessSequence(ctx, envelope, suit.SequenceInstall), plat.ErrIncorrectState)
	usage, err := reg.UsageOf(componentID)
	require.Nil(t, err)
	assert.Equal(t, ipuc.UsageIPCInPlaceUpdate, usage)
}

func TestRunner_WriteDuringIPCSession_NG(t *testing.T) {
	ctx := context.Background()
	dev := flash.NewMemory(0x0E000000, 0x100000)
	runner, cache := newTestRunner(dev, nil)
	reg := newTestRegistry(dev, cache)
	runner.AttachRegistry(reg, staticRoles{testClassID: mci.RoleAppRoot})
	p := suit.NewEnvelopeProcessor(nil, runner, log.New(io.Discard, "", 0))

	componentID, err := suit.EncodeMemComponentID(0x02, testImageAddr, testImageSize)
	require.Nil(t, err)
	require.Nil(t, reg.Declare(componentID, mci.RoleAppLocal1))
	require.Nil(t, reg.WriteSetup(5, componentID, nil, nil))
	require.Nil(t, reg.Write(5, componentID, 0, []byte{0x5A}, false))

	image := []byte("root image")
	envelope, err := suit.BuildEnvelope(newImageManifest(t, image, image), cose.AlgorithmSHA256, nil, nil)
	require.Nil(t, err)

	assert.ErrorIs(t, p.ProcessSequence(ctx, envelope, suit.SequenceInstall), plat.ErrIncorrectState)
	got := make([]byte, 1)
	require.Nil(t, dev.ReadAt(got, testImageAddr))
	assert.Equal(t, []byte{0x5A}, got)

	// once released, the root manifest writes without declaring anything
	require.Nil(t, reg.Revoke(componentID))
	require.Nil(t, p.ProcessSequence(ctx, envelope, suit.SequenceInstall))
	assert.Equal(t, 0, reg.Count())
}
