/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package candidate

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/kentakayama/suit-orchestrator/internal/domain/model"
	"github.com/kentakayama/suit-orchestrator/internal/suit"
	"github.com/stretchr/testify/assert"
)

var (
	nordicTop = uuid.MustParse("f03d385e-a731-5605-b15d-037f6da6097f")
	appRoot   = uuid.MustParse("97c1b0c0-36c6-5a3c-b4e0-1ef1ea3b3e2a")
	appLocal  = uuid.MustParse("08c1b599-55e8-5fbc-9e76-7bc29ce1b04d")
)

type policyTable map[uuid.UUID]bool

func (p policyTable) IndependentUpdatePolicy(_ context.Context, classID uuid.UUID) (bool, error) {
	allowed, ok := p[classID]
	if !ok {
		return false, errors.New("unknown class")
	}
	return allowed, nil
}

func newTestValidator() *Validator {
	regions := []model.MemoryRegion{{Address: 0x0E100000, Size: 0x80000}}
	return NewValidator(regions, policyTable{appRoot: true, appLocal: false}, nordicTop)
}

func TestCheckLocation(t *testing.T) {
	v := newTestValidator()

	assert.Nil(t, v.CheckLocation(model.MemoryRegion{Address: 0x0E100000, Size: 0x400}))
	assert.Nil(t, v.CheckLocation(model.MemoryRegion{Address: 0x0E17FC00, Size: 0x400}))

	for _, r := range []model.MemoryRegion{
		{Address: 0, Size: 0x400},
		{Address: 0x0E100000, Size: 0},
		{Address: 0xFFFFFFFF, Size: 0x400},
		{Address: 0x0E100000, Size: ^uint64(0)},
	} {
		assert.ErrorIs(t, v.CheckLocation(r), ErrInvalidSize, "%v", r)
	}

	assert.ErrorIs(t, v.CheckLocation(model.MemoryRegion{Address: 0x0E17FC00, Size: 0x401}), ErrLocationRejected)
	assert.ErrorIs(t, v.CheckLocation(model.MemoryRegion{Address: 0x0E000000, Size: 0x400}), ErrLocationRejected)
}

func TestCheckManifest(t *testing.T) {
	v := newTestValidator()
	ctx := context.Background()

	assert.Nil(t, v.CheckManifest(ctx, &suit.ManifestMetadata{ClassID: appRoot}, false))
	assert.ErrorIs(t, v.CheckManifest(ctx, &suit.ManifestMetadata{ClassID: appLocal}, false), ErrNotIndependentlyUpdateable)
	assert.ErrorIs(t, v.CheckManifest(ctx, &suit.ManifestMetadata{ClassID: uuid.New()}, false), ErrPolicyLookup)

	assert.Nil(t, v.CheckManifest(ctx, &suit.ManifestMetadata{ClassID: nordicTop}, true))
	assert.ErrorIs(t, v.CheckManifest(ctx, &suit.ManifestMetadata{ClassID: appRoot}, true), ErrNotIndependentlyUpdateable)
}
