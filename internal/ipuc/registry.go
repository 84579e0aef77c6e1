/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package ipuc keeps track of the in-place updateable components: memory
// regions declared by the manifests that may later be erased and written
// by another core, or lent to the secure domain as an SDFW mirror.
package ipuc

import (
	"bytes"
	"fmt"
	"log"
	"sync"

	"github.com/kentakayama/suit-orchestrator/internal/arbiter"
	"github.com/kentakayama/suit-orchestrator/internal/config"
	"github.com/kentakayama/suit-orchestrator/internal/digestcache"
	"github.com/kentakayama/suit-orchestrator/internal/domain/model"
	"github.com/kentakayama/suit-orchestrator/internal/flash"
	"github.com/kentakayama/suit-orchestrator/internal/mci"
	"github.com/kentakayama/suit-orchestrator/internal/plat"
	"github.com/kentakayama/suit-orchestrator/internal/suit"
)

// Usage is the state of a declared component.
type Usage int

const (
	UsageUnused Usage = iota
	UsageSDFWMirror
	UsageIPCInPlaceUpdate
)

func (u Usage) String() string {
	switch u {
	case UsageUnused:
		return "unused"
	case UsageSDFWMirror:
		return "sdfw_mirror"
	case UsageIPCInPlaceUpdate:
		return "ipc_in_place_update"
	default:
		return fmt.Sprintf("usage(%d)", int(u))
	}
}

// Arbiter checks memory ownership.
type Arbiter interface {
	MemAccessCheck(owner arbiter.Owner, perm arbiter.Permission, address, size uint64) error
}

type entry struct {
	componentID     []byte
	role            mci.Role
	usage           Usage
	clientID        int
	writePeekOffset uint64
	lastChunkStored bool
}

// EntryInfo is a copy of a declared entry.
type EntryInfo struct {
	ComponentID     []byte
	Role            mci.Role
	Usage           Usage
	ClientID        int
	WritePeekOffset uint64
	LastChunkStored bool
}

// Registry is a fixed-size pool of in-place updateable components. Every
// public method holds the registry mutex for its whole duration,
// including flash read-back, erase and write.
type Registry struct {
	mu       sync.Mutex
	entries  []entry
	dev      flash.Device
	arb      Arbiter
	cache    *digestcache.Cache
	sdfwArea model.MemoryRegion
	chunk    int
	logger   *log.Logger
}

func New(cfg config.IPUCConfig, dev flash.Device, arb Arbiter, cache *digestcache.Cache) *Registry {
	size := cfg.Size
	if size <= 0 {
		size = config.DefaultIPUCSize
	}
	chunk := cfg.ReadBackChunk
	if chunk <= 0 {
		chunk = config.DefaultReadBackChunk
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	if cache == nil {
		cache = digestcache.New()
	}
	return &Registry{
		entries:  make([]entry, size),
		dev:      dev,
		arb:      arb,
		cache:    cache,
		sdfwArea: cfg.SDFWUpdateArea,
		chunk:    chunk,
		logger:   logger,
	}
}

// find returns the slot holding componentID, -1 if none.
func (r *Registry) find(componentID []byte) int {
	if len(componentID) == 0 {
		return -1
	}
	for i := range r.entries {
		if bytes.Equal(r.entries[i].componentID, componentID) {
			return i
		}
	}
	return -1
}

// memRegion decodes a MEM component ID into its address range.
func memRegion(componentID []byte) (model.MemoryRegion, error) {
	t, err := suit.DecodeComponentType(componentID)
	if err != nil || t != suit.ComponentTypeMem {
		return model.MemoryRegion{}, plat.ErrUnsupported
	}
	address, size, err := suit.DecodeAddressSize(componentID)
	if err != nil {
		return model.MemoryRegion{}, plat.ErrUnsupported
	}
	return model.MemoryRegion{Address: address, Size: size}, nil
}

// Declare registers componentID on behalf of role. Declaring a known
// component reuses its slot; either way the entry starts unused.
func (r *Registry) Declare(componentID []byte, role mci.Role) error {
	region, err := memRegion(componentID)
	if err != nil {
		return err
	}
	if region.Address == 0 || region.Size == 0 {
		return plat.ErrUnsupported
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.find(componentID)
	if idx < 0 {
		for i := range r.entries {
			if r.entries[i].componentID == nil {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		return plat.ErrNoMem
	}

	r.entries[idx] = entry{
		componentID: bytes.Clone(componentID),
		role:        role,
	}
	r.logger.Printf("IPUC: declared 0x%x+0x%x by %s in slot %d", region.Address, region.Size, role, idx)
	return nil
}

// Revoke forgets componentID, even in the middle of a write session.
func (r *Registry) Revoke(componentID []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.find(componentID)
	if idx < 0 {
		return plat.ErrNotFound
	}
	if region, err := memRegion(componentID); err == nil {
		r.logger.Printf("IPUC: revoked 0x%x+0x%x", region.Address, region.Size)
	}
	r.entries[idx] = entry{}
	return nil
}

// UsageOf returns the usage of the declared componentID.
func (r *Registry) UsageOf(componentID []byte) (Usage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.find(componentID)
	if idx < 0 {
		return UsageUnused, plat.ErrNotFound
	}
	return r.entries[idx].usage, nil
}

// Count returns the number of declared components.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for i := range r.entries {
		if r.entries[i].componentID != nil {
			n++
		}
	}
	return n
}

// Info returns the idx-th declared component in slot order.
func (r *Registry) Info(idx int) (EntryInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if idx < 0 {
		return EntryInfo{}, plat.ErrNotFound
	}
	for i := range r.entries {
		e := &r.entries[i]
		if e.componentID == nil {
			continue
		}
		if idx == 0 {
			return EntryInfo{
				ComponentID:     bytes.Clone(e.componentID),
				Role:            e.role,
				Usage:           e.usage,
				ClientID:        e.clientID,
				WritePeekOffset: e.writePeekOffset,
				LastChunkStored: e.lastChunkStored,
			}, nil
		}
		idx--
	}
	return EntryInfo{}, plat.ErrNotFound
}

// MirrorAddr returns the address of a free component able to hold
// requiredSize bytes inside the SDFW update area, or 0 if there is none.
// The chosen component is marked as an SDFW mirror.
func (r *Registry) MirrorAddr(requiredSize uint64) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.entries {
		e := &r.entries[i]
		if e.componentID == nil {
			continue
		}
		if e.usage != UsageUnused && e.usage != UsageSDFWMirror {
			continue
		}
		region, err := memRegion(e.componentID)
		if err != nil || !region.Intersects(r.sdfwArea) {
			continue
		}

		start := max(region.Address, r.sdfwArea.Address)
		end := min(region.End(), r.sdfwArea.End())
		if end-start < requiredSize {
			continue
		}
		if !r.accessible(start, end-start) {
			r.logger.Printf("IPUC: mirror candidate 0x%x+0x%x not owned by a local domain", start, end-start)
			continue
		}

		e.usage = UsageSDFWMirror
		r.logger.Printf("IPUC: SDFW mirror at 0x%x (0x%x bytes required)", start, requiredSize)
		return start
	}
	return 0
}

// accessible checks that the application or the radio core owns the range.
func (r *Registry) accessible(address, size uint64) bool {
	if r.arb == nil {
		return false
	}
	perm := arbiter.PermRead | arbiter.PermWrite
	for _, owner := range []arbiter.Owner{arbiter.OwnerApplication, arbiter.OwnerRadio} {
		if err := r.arb.MemAccessCheck(owner, perm, address, size); err == nil {
			return true
		}
	}
	return false
}
