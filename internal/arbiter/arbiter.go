/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package arbiter answers memory ownership questions for the secure
// domain: which core owns an address range and with what permissions.
package arbiter

import (
	"errors"
	"fmt"
	"sync"

	"github.com/kentakayama/suit-orchestrator/internal/domain/model"
)

var ErrAccessDenied = errors.New("memory access denied")

// Owner identifies a processor domain.
type Owner int

const (
	OwnerSecure Owner = iota
	OwnerApplication
	OwnerRadio
)

func (o Owner) String() string {
	switch o {
	case OwnerSecure:
		return "secure"
	case OwnerApplication:
		return "application"
	case OwnerRadio:
		return "radio"
	default:
		return fmt.Sprintf("owner(%d)", int(o))
	}
}

// Permission is a bit set of access rights.
type Permission uint8

const (
	PermRead Permission = 1 << iota
	PermWrite
	PermExecute
	PermSecure
)

type grant struct {
	owner  Owner
	perm   Permission
	region model.MemoryRegion
}

// Table is a static ownership table. A range is accessible when a single
// grant for the owner covers it with at least the requested permissions.
type Table struct {
	mu     sync.RWMutex
	grants []grant
}

func NewTable() *Table {
	return &Table{}
}

// Grant gives owner perm over region.
func (t *Table) Grant(owner Owner, perm Permission, region model.MemoryRegion) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.grants = append(t.grants, grant{owner: owner, perm: perm, region: region})
}

// MemAccessCheck returns nil if owner may access [address, address+size)
// with perm, ErrAccessDenied otherwise.
func (t *Table) MemAccessCheck(owner Owner, perm Permission, address, size uint64) error {
	want := model.MemoryRegion{Address: address, Size: size}
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, g := range t.grants {
		if g.owner == owner && g.perm&perm == perm && g.region.Contains(want) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s 0x%x+0x%x", ErrAccessDenied, owner, address, size)
}
