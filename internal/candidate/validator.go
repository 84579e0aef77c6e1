/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package candidate validates the update candidate announced in SUIT
// storage before anything of it is processed.
package candidate

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/kentakayama/suit-orchestrator/internal/domain/model"
	"github.com/kentakayama/suit-orchestrator/internal/suit"
)

var (
	ErrInvalidSize                = errors.New("invalid candidate address or size")
	ErrLocationRejected           = errors.New("candidate outside of the approved regions")
	ErrPolicyLookup               = errors.New("candidate class policy lookup failed")
	ErrNotIndependentlyUpdateable = errors.New("candidate class is not independently updateable")
)

// PolicySource tells whether a manifest class may be updated on its own.
type PolicySource interface {
	IndependentUpdatePolicy(ctx context.Context, classID uuid.UUID) (bool, error)
}

// Validator checks candidates against the approved regions and the
// update policy.
type Validator struct {
	regions   []model.MemoryRegion
	policy    PolicySource
	nordicTop uuid.UUID
}

func NewValidator(regions []model.MemoryRegion, policy PolicySource, nordicTop uuid.UUID) *Validator {
	return &Validator{
		regions:   regions,
		policy:    policy,
		nordicTop: nordicTop,
	}
}

func unset(v uint64) bool {
	return v == 0 || v == math.MaxUint32 || v == math.MaxUint64
}

// CheckLocation accepts r only when it has a valid address and size and
// fits inside one approved region.
func (v *Validator) CheckLocation(r model.MemoryRegion) error {
	if unset(r.Address) || unset(r.Size) {
		return fmt.Errorf("%w: 0x%x+0x%x", ErrInvalidSize, r.Address, r.Size)
	}
	for _, approved := range v.regions {
		if approved.Contains(r) {
			return nil
		}
	}
	return fmt.Errorf("%w: 0x%x+0x%x", ErrLocationRejected, r.Address, r.Size)
}

// CheckManifest applies the independent updateability policy to the
// candidate manifest. With nordicTopOnly, the candidate must be the
// Nordic top manifest, whatever the policy says.
func (v *Validator) CheckManifest(ctx context.Context, meta *suit.ManifestMetadata, nordicTopOnly bool) error {
	if nordicTopOnly {
		if v.nordicTop == uuid.Nil || meta.ClassID != v.nordicTop {
			return fmt.Errorf("%w: %s is not the Nordic top manifest", ErrNotIndependentlyUpdateable, meta.ClassID)
		}
		return nil
	}
	if v.policy == nil {
		return ErrPolicyLookup
	}
	allowed, err := v.policy.IndependentUpdatePolicy(ctx, meta.ClassID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPolicyLookup, err)
	}
	if !allowed {
		return fmt.Errorf("%w: %s", ErrNotIndependentlyUpdateable, meta.ClassID)
	}
	return nil
}
