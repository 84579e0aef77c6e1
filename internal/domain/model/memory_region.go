/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

// MemoryRegion is an absolute address range in the device memory map.
type MemoryRegion struct {
	_       struct{} `cbor:",toarray"`
	Address uint64
	Size    uint64
}

// End returns the first address past the region. It saturates on overflow.
func (r MemoryRegion) End() uint64 {
	end := r.Address + r.Size
	if end < r.Address {
		return ^uint64(0)
	}
	return end
}

// Contains reports whether o lies entirely inside r.
func (r MemoryRegion) Contains(o MemoryRegion) bool {
	if o.Address+o.Size < o.Address {
		return false
	}
	return o.Address >= r.Address && o.End() <= r.End()
}

// Intersects reports whether r and o share at least one byte.
func (r MemoryRegion) Intersects(o MemoryRegion) bool {
	return r.Size > 0 && o.Size > 0 && r.Address < o.End() && o.Address < r.End()
}
