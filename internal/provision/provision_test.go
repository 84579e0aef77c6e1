/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package provision

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/google/uuid"
	"github.com/kentakayama/suit-orchestrator/internal/config"
	"github.com/kentakayama/suit-orchestrator/internal/flash"
	"github.com/kentakayama/suit-orchestrator/internal/mci"
	"github.com/kentakayama/suit-orchestrator/internal/storage"
	"github.com/kentakayama/suit-orchestrator/internal/suit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvisioner_Install(t *testing.T) {
	ctx := context.Background()
	s, err := storage.Open(ctx, config.StorageConfig{DBPath: ":memory:"})
	require.Nil(t, err)
	defer s.Close()

	signer, kid, err := NewSigner(ctx, s, DefaultKeyValidity)
	require.Nil(t, err)
	dev := flash.NewMemory(0x0E000000, 0x100000)
	p := &Provisioner{
		Storage:  s,
		Device:   dev,
		VendorID: uuid.MustParse("7617daa5-71fd-5a85-8f94-e28d735ce9f4"),
		CPUID:    0x02,
		Signer:   signer,
		KID:      kid,
	}

	top := Image{
		ClassID:  uuid.MustParse("f03d385e-a731-5605-b15d-037f6da6097f"),
		Role:     mci.RoleNordicTop,
		Address:  0x0E000000,
		Size:     0x1000,
		Payload:  []byte("secure domain firmware"),
		Sequence: 1,
	}
	app := Image{
		ClassID:     uuid.MustParse("97c1b0c0-36c6-5a3c-b4e0-1ef1ea3b3e2a"),
		Role:        mci.RoleAppRoot,
		Address:     0x0E010000,
		Size:        0x1000,
		Payload:     []byte("application firmware"),
		Sequence:    4,
		Version:     []int64{1, 2, 0},
		Independent: true,
	}
	require.Nil(t, p.Install(ctx, top, app))

	got := make([]byte, len(app.Payload))
	require.Nil(t, dev.ReadAt(got, app.Address))
	assert.Equal(t, app.Payload, got)

	envelope, err := s.InstalledEnvelope(ctx, app.ClassID)
	require.Nil(t, err)
	processor := suit.NewEnvelopeProcessor(s, nil, log.New(io.Discard, "", 0))
	assert.Nil(t, processor.ProcessSequence(ctx, envelope, suit.SequenceParse))
	meta, err := processor.ManifestMetadata(envelope)
	require.Nil(t, err)
	assert.Equal(t, app.ClassID, meta.ClassID)
	assert.Equal(t, uint64(4), meta.SequenceNumber)
	assert.Equal(t, "1.2.0", meta.Version.String())

	svc := mci.NewService(s.MPI(), log.New(io.Discard, "", 0))
	require.Nil(t, svc.Init(ctx))
	allowed, err := svc.IndependentUpdatePolicy(ctx, app.ClassID)
	require.Nil(t, err)
	assert.True(t, allowed)
	allowed, err = svc.IndependentUpdatePolicy(ctx, top.ClassID)
	require.Nil(t, err)
	assert.False(t, allowed)
}

func TestProvisioner_PayloadTooLarge(t *testing.T) {
	p := &Provisioner{VendorID: uuid.New()}
	_, err := p.Manifest(Image{ClassID: uuid.New(), Address: 0x1000, Size: 2, Payload: []byte("abc")})
	assert.NotNil(t, err)
}
