/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package flash models the non-volatile memory the SUIT components live in.
package flash

import (
	"errors"
	"fmt"
	"sync"
)

// EraseValue is the content of an erased byte.
const EraseValue = 0xFF

var ErrOutOfRange = errors.New("address range outside of the device")

// Device is an absolutely addressed non-volatile memory.
type Device interface {
	ReadAt(p []byte, address uint64) error
	WriteAt(p []byte, address uint64) error
	// Erase sets size bytes starting at address to EraseValue.
	Erase(address, size uint64) error
	// Contains reports whether the whole range is backed by the device.
	Contains(address, size uint64) bool
}

// Memory is a RAM backed Device covering [Base, Base+len).
type Memory struct {
	mu   sync.RWMutex
	base uint64
	data []byte
}

// NewMemory returns an erased memory of size bytes mapped at base.
func NewMemory(base uint64, size int) *Memory {
	data := make([]byte, size)
	for i := range data {
		data[i] = EraseValue
	}
	return &Memory{base: base, data: data}
}

func (m *Memory) Contains(address, size uint64) bool {
	end := address + size
	return address >= m.base && end >= address && end <= m.base+uint64(len(m.data))
}

func (m *Memory) span(address uint64, n int) ([]byte, error) {
	if !m.Contains(address, uint64(n)) {
		return nil, fmt.Errorf("%w: 0x%x+0x%x", ErrOutOfRange, address, n)
	}
	off := address - m.base
	return m.data[off : off+uint64(n)], nil
}

func (m *Memory) ReadAt(p []byte, address uint64) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, err := m.span(address, len(p))
	if err != nil {
		return err
	}
	copy(p, s)
	return nil
}

func (m *Memory) WriteAt(p []byte, address uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.span(address, len(p))
	if err != nil {
		return err
	}
	copy(s, p)
	return nil
}

func (m *Memory) Erase(address, size uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, err := m.span(address, int(size))
	if err != nil {
		return err
	}
	for i := range s {
		s[i] = EraseValue
	}
	return nil
}
