/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package platform executes SUIT command sequences against the device:
// the conditions and directives a secure domain needs to check, write
// and invoke memory components.
package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/kentakayama/suit-orchestrator/internal/digestcache"
	"github.com/kentakayama/suit-orchestrator/internal/flash"
	"github.com/kentakayama/suit-orchestrator/internal/ipuc"
	"github.com/kentakayama/suit-orchestrator/internal/mci"
	"github.com/kentakayama/suit-orchestrator/internal/plat"
	"github.com/kentakayama/suit-orchestrator/internal/sink"
	"github.com/kentakayama/suit-orchestrator/internal/suit"
)

var (
	ErrConditionFailed  = errors.New("condition failed")
	ErrParameterMissing = errors.New("parameter missing")
	ErrComponentIndex   = errors.New("component index out of range")
)

// draft-ietf-suit-manifest commands
const (
	conditionVendorIdentifier   = 1
	conditionClassIdentifier    = 2
	conditionImageMatch         = 3
	directiveSetComponentIndex  = 12
	directiveWrite              = 18
	directiveOverrideParameters = 20
	directiveInvoke             = 23
)

// draft-ietf-suit-manifest parameters
const (
	parameterVendorIdentifier = 1
	parameterClassIdentifier  = 2
	parameterImageDigest      = 3
	parameterImageSize        = 14
	parameterContent          = 18
)

// EnvelopeStore keeps the installed envelope of each manifest class.
type EnvelopeStore interface {
	SaveInstalledEnvelope(ctx context.Context, classID uuid.UUID, envelope []byte, sequenceNumber uint64) error
}

// ComponentRegistry keeps the components other cores may update in place.
type ComponentRegistry interface {
	Declare(componentID []byte, role mci.Role) error
	Revoke(componentID []byte) error
	UsageOf(componentID []byte) (ipuc.Usage, error)
}

// RoleSource resolves the provisioned role of a manifest class.
type RoleSource interface {
	RoleOf(ctx context.Context, classID uuid.UUID) (mci.Role, error)
}

// Runner is a suit.CommandRunner working on MEM components of one device.
type Runner struct {
	dev      flash.Device
	cache    *digestcache.Cache
	store    EnvelopeStore
	vendorID uuid.UUID
	logger   *log.Logger

	registry ComponentRegistry
	roles    RoleSource

	mu      sync.Mutex
	invoked [][]byte
}

// NewRunner returns a runner. With a nil vendorID any vendor identifier
// condition passes.
func NewRunner(dev flash.Device, cache *digestcache.Cache, store EnvelopeStore, vendorID uuid.UUID, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	if cache == nil {
		cache = digestcache.New()
	}
	return &Runner{
		dev:      dev,
		cache:    cache,
		store:    store,
		vendorID: vendorID,
		logger:   logger,
	}
}

// AttachRegistry makes manifests with an in-place updateable role declare
// their MEM components in reg, and keeps writes away from components
// held by an IPC write session.
func (r *Runner) AttachRegistry(reg ComponentRegistry, roles RoleSource) {
	r.registry = reg
	r.roles = roles
}

type parameters struct {
	vendorID  []byte
	classID   []byte
	digest    *suit.Digest
	imageSize *uint64
	content   []byte
}

type execution struct {
	inv        *suit.Invocation
	components [][]byte
	current    []int
	params     []parameters
}

func (r *Runner) Run(ctx context.Context, inv *suit.Invocation) error {
	components, err := inv.Manifest.EncodedComponents()
	if err != nil {
		return err
	}
	x := &execution{
		inv:        inv,
		components: components,
		current:    []int{0},
		params:     make([]parameters, len(components)),
	}

	role, declaring := mci.RoleUnknown, false
	if declares(inv.Sequence) {
		role, declaring = r.declaringRole(ctx, inv.Manifest)
	}
	if declaring && inv.Sequence == suit.SequenceInstall {
		if err := r.reclaim(components); err != nil {
			return fmt.Errorf("%s: %w", inv.Sequence, err)
		}
	}

	for i := 0; i+1 < len(inv.Commands); i += 2 {
		if err := ctx.Err(); err != nil {
			return err
		}
		var command uint64
		if err := cbor.Unmarshal(inv.Commands[i], &command); err != nil {
			return suit.ErrSUITManifestInvalidFormat
		}
		if err := r.execute(x, command, inv.Commands[i+1]); err != nil {
			return fmt.Errorf("%s command %d: %w", inv.Sequence, command, err)
		}
	}

	if declaring {
		if err := r.declare(components, role); err != nil {
			return fmt.Errorf("%s: %w", inv.Sequence, err)
		}
	}

	if inv.Sequence == suit.SequenceInstall && r.store != nil {
		classID, err := inv.Manifest.ClassID()
		if err != nil {
			return err
		}
		if err := r.store.SaveInstalledEnvelope(ctx, classID, inv.Envelope, inv.Manifest.ManifestSequenceNumber); err != nil {
			return fmt.Errorf("store installed envelope: %w", err)
		}
		r.logger.Printf("installed manifest %s seq %d", classID, inv.Manifest.ManifestSequenceNumber)
	}
	return nil
}

// declaringRole returns the role of the manifest and whether its
// components go to the registry.
func (r *Runner) declaringRole(ctx context.Context, m *suit.Manifest) (mci.Role, bool) {
	if r.registry == nil || r.roles == nil {
		return mci.RoleUnknown, false
	}
	classID, err := m.ClassID()
	if err != nil {
		return mci.RoleUnknown, false
	}
	role, err := r.roles.RoleOf(ctx, classID)
	if err != nil {
		r.logger.Printf("no role for manifest %s: %v", classID, err)
		return mci.RoleUnknown, false
	}
	return role, role.InPlaceUpdateable()
}

// declares reports whether running seq makes the components of the
// manifest available for in-place update: once installed, and on every
// boot.
func declares(seq suit.Sequence) bool {
	switch seq {
	case suit.SequenceInstall, suit.SequenceValidate, suit.SequenceLoad, suit.SequenceInvoke:
		return true
	default:
		return false
	}
}

func isMem(componentID []byte) bool {
	t, err := suit.DecodeComponentType(componentID)
	return err == nil && t == suit.ComponentTypeMem
}

// reclaim takes the MEM components of an installing manifest back from
// the registry. Nothing is revoked while one of them is in an IPC write
// session.
func (r *Runner) reclaim(components [][]byte) error {
	var held [][]byte
	for _, id := range components {
		if !isMem(id) {
			continue
		}
		usage, err := r.registry.UsageOf(id)
		if err != nil {
			continue
		}
		if usage == ipuc.UsageIPCInPlaceUpdate {
			return fmt.Errorf("%w: component in an IPC write session", plat.ErrIncorrectState)
		}
		held = append(held, id)
	}
	for _, id := range held {
		if err := r.registry.Revoke(id); err != nil {
			return fmt.Errorf("revoke component: %w", err)
		}
	}
	return nil
}

// declare registers the MEM components not yet known to the registry.
// Components already declared keep their usage.
func (r *Runner) declare(components [][]byte, role mci.Role) error {
	for _, id := range components {
		if !isMem(id) {
			continue
		}
		if _, err := r.registry.UsageOf(id); err == nil {
			continue
		}
		if err := r.registry.Declare(id, role); err != nil {
			return fmt.Errorf("declare component: %w", err)
		}
	}
	return nil
}

func (r *Runner) execute(x *execution, command uint64, arg cbor.RawMessage) error {
	switch command {
	case directiveSetComponentIndex:
		return x.setComponentIndex(arg)
	case directiveOverrideParameters:
		return x.overrideParameters(arg)
	}

	if len(x.components) == 0 {
		return ErrComponentIndex
	}
	for _, idx := range x.current {
		var err error
		switch command {
		case conditionVendorIdentifier:
			err = r.checkVendor(x.params[idx])
		case conditionClassIdentifier:
			err = r.checkClass(x, x.params[idx])
		case conditionImageMatch:
			err = r.imageMatch(x.components[idx], x.params[idx])
		case directiveWrite:
			err = r.write(x.components[idx], x.params[idx])
		case directiveInvoke:
			err = r.invoke(x.components[idx])
		default:
			err = suit.ErrNotSupported
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (x *execution) setComponentIndex(arg cbor.RawMessage) error {
	var all bool
	if cbor.Unmarshal(arg, &all) == nil {
		if !all {
			return suit.ErrInvalidValue
		}
		x.current = x.current[:0]
		for i := range x.components {
			x.current = append(x.current, i)
		}
		return nil
	}

	var idx uint64
	if err := cbor.Unmarshal(arg, &idx); err == nil {
		if idx >= uint64(len(x.components)) {
			return ErrComponentIndex
		}
		x.current = []int{int(idx)}
		return nil
	}

	var list []uint64
	if err := cbor.Unmarshal(arg, &list); err != nil {
		return suit.ErrInvalidType
	}
	current := make([]int, 0, len(list))
	for _, idx := range list {
		if idx >= uint64(len(x.components)) {
			return ErrComponentIndex
		}
		current = append(current, int(idx))
	}
	x.current = current
	return nil
}

func (x *execution) overrideParameters(arg cbor.RawMessage) error {
	var params map[uint64]cbor.RawMessage
	if err := cbor.Unmarshal(arg, &params); err != nil {
		return suit.ErrInvalidType
	}
	for _, idx := range x.current {
		if idx >= len(x.params) {
			return ErrComponentIndex
		}
		p := &x.params[idx]
		for key, raw := range params {
			if err := p.set(key, raw); err != nil {
				return fmt.Errorf("parameter %d: %w", key, err)
			}
		}
	}
	return nil
}

func (p *parameters) set(key uint64, raw cbor.RawMessage) error {
	switch key {
	case parameterVendorIdentifier:
		return cbor.Unmarshal(raw, &p.vendorID)
	case parameterClassIdentifier:
		return cbor.Unmarshal(raw, &p.classID)
	case parameterImageDigest:
		var d suit.Digest
		var wrapped []byte
		if err := cbor.Unmarshal(raw, &wrapped); err != nil {
			return err
		}
		if err := cbor.Unmarshal(wrapped, &d); err != nil {
			return err
		}
		p.digest = &d
		return nil
	case parameterImageSize:
		var size uint64
		if err := cbor.Unmarshal(raw, &size); err != nil {
			return err
		}
		p.imageSize = &size
		return nil
	case parameterContent:
		return cbor.Unmarshal(raw, &p.content)
	default:
		// parameters without a handler here are not needed by the device
		return nil
	}
}

func (r *Runner) checkVendor(p parameters) error {
	if p.vendorID == nil {
		return ErrParameterMissing
	}
	id, err := uuid.FromBytes(p.vendorID)
	if err != nil {
		return suit.ErrInvalidValue
	}
	if r.vendorID != uuid.Nil && id != r.vendorID {
		return ErrConditionFailed
	}
	return nil
}

func (r *Runner) checkClass(x *execution, p parameters) error {
	if p.classID == nil {
		return ErrParameterMissing
	}
	id, err := uuid.FromBytes(p.classID)
	if err != nil {
		return suit.ErrInvalidValue
	}
	if classID, err := x.inv.Manifest.ClassID(); err == nil && classID != id {
		return ErrConditionFailed
	}
	return nil
}

// memComponent resolves a MEM component, limited to size bytes when set.
func memComponent(componentID []byte, size *uint64) (uint64, uint64, error) {
	t, err := suit.DecodeComponentType(componentID)
	if err != nil {
		return 0, 0, err
	}
	if t != suit.ComponentTypeMem {
		return 0, 0, fmt.Errorf("%w: %s component", suit.ErrNotSupported, t)
	}
	address, regionSize, err := suit.DecodeAddressSize(componentID)
	if err != nil {
		return 0, 0, err
	}
	if size != nil {
		if *size > regionSize {
			return 0, 0, suit.ErrInvalidValue
		}
		regionSize = *size
	}
	return address, regionSize, nil
}

func (r *Runner) imageMatch(componentID []byte, p parameters) error {
	if p.digest == nil {
		return ErrParameterMissing
	}
	address, size, err := memComponent(componentID, p.imageSize)
	if err != nil {
		return err
	}
	if r.cache.Match(componentID, size, p.digest.DigestAlg, p.digest.DigestBytes) {
		return nil
	}
	ds, err := sink.NewDigest(p.digest.DigestAlg)
	if err != nil {
		return suit.ErrNotSupported
	}
	defer ds.Release()
	if err := sink.StreamMemory(r.dev, address, size, 0, ds); err != nil {
		return err
	}
	if err := ds.Match(p.digest.DigestBytes); err != nil {
		return ErrConditionFailed
	}
	r.cache.Add(componentID, size, p.digest.DigestAlg, p.digest.DigestBytes)
	return nil
}

func (r *Runner) write(componentID []byte, p parameters) error {
	if p.content == nil {
		return ErrParameterMissing
	}
	address, size, err := memComponent(componentID, nil)
	if err != nil {
		return err
	}
	if uint64(len(p.content)) > size {
		return sink.ErrNoSpace
	}
	if r.registry != nil {
		if usage, err := r.registry.UsageOf(componentID); err == nil && usage == ipuc.UsageIPCInPlaceUpdate {
			return fmt.Errorf("%w: 0x%x is being written over IPC", plat.ErrIncorrectState, address)
		}
	}
	fs, err := sink.NewFlash(r.dev, address, size)
	if err != nil {
		return err
	}
	defer fs.Release()
	if err := fs.Erase(); err != nil {
		return err
	}
	r.cache.Invalidate(componentID)
	_, err = fs.Write(p.content)
	return err
}

func (r *Runner) invoke(componentID []byte) error {
	address, _, err := memComponent(componentID, nil)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.invoked = append(r.invoked, bytes.Clone(componentID))
	r.mu.Unlock()
	r.logger.Printf("invoking image at 0x%x", address)
	return nil
}

// Invoked returns the components invoked so far, in order.
func (r *Runner) Invoked() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.invoked))
	copy(out, r.invoked)
	return out
}
