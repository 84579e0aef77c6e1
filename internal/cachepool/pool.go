/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package cachepool manages the DFU cache pools that travel with an
// update candidate: extra memory regions holding payloads the manifest
// refers to through CACHE_POOL components.
package cachepool

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/kentakayama/suit-orchestrator/internal/domain/model"
	"github.com/kentakayama/suit-orchestrator/internal/flash"
)

var (
	ErrInvalidPool    = errors.New("invalid DFU cache pool")
	ErrPoolNotFound   = errors.New("DFU cache pool not found")
	ErrNotInitialized = errors.New("DFU cache not initialized")
)

// Pool is one initialized DFU cache pool. IDs start at 1, ID 0 being the
// envelope region of the candidate.
type Pool struct {
	ID     int
	Region model.MemoryRegion
}

// Manager owns the DFU cache pools of the current install attempt.
type Manager struct {
	dev    flash.Device
	logger *log.Logger

	mu    sync.Mutex
	pools []Pool
	ready bool
}

func NewManager(dev flash.Device, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{dev: dev, logger: logger}
}

// Initialize replaces the pools with regions. Every region must be backed
// by the device, and no two regions may overlap.
func (m *Manager) Initialize(regions []model.MemoryRegion) error {
	pools := make([]Pool, 0, len(regions))
	for i, r := range regions {
		if r.Size == 0 || !m.dev.Contains(r.Address, r.Size) {
			return fmt.Errorf("%w: pool %d 0x%x+0x%x", ErrInvalidPool, i+1, r.Address, r.Size)
		}
		for _, p := range pools {
			if p.Region.Intersects(r) {
				return fmt.Errorf("%w: pool %d overlaps pool %d", ErrInvalidPool, i+1, p.ID)
			}
		}
		pools = append(pools, Pool{ID: i + 1, Region: r})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pools = pools
	m.ready = true
	m.logger.Printf("DFU cache: %d pool(s) initialized", len(pools))
	return nil
}

// Deinitialize forgets every pool.
func (m *Manager) Deinitialize() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pools = nil
	m.ready = false
}

// Lookup returns the pool with the given ID.
func (m *Manager) Lookup(id int) (Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return Pool{}, ErrNotInitialized
	}
	for _, p := range m.pools {
		if p.ID == id {
			return p, nil
		}
	}
	return Pool{}, fmt.Errorf("%w: %d", ErrPoolNotFound, id)
}

// Pools returns a copy of the initialized pools.
func (m *Manager) Pools() []Pool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Pool(nil), m.pools...)
}
