/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package sink

import (
	"fmt"
	"time"

	"github.com/kentakayama/suit-orchestrator/internal/flash"
)

const (
	// the erase loop yields once per block so that the watchdog task can run
	eraseYieldBlock = 64 * 1024
	eraseYieldDelay = time.Millisecond
)

var eraseYield = func() { time.Sleep(eraseYieldDelay) }

// Flash writes into one address range of a device.
type Flash struct {
	dev      flash.Device
	address  uint64
	size     uint64
	offset   uint64
	released bool
}

func NewFlash(dev flash.Device, address, size uint64) (*Flash, error) {
	if !dev.Contains(address, size) {
		return nil, fmt.Errorf("%w: 0x%x+0x%x", flash.ErrOutOfRange, address, size)
	}
	return &Flash{dev: dev, address: address, size: size}, nil
}

func (f *Flash) Write(p []byte) (int, error) {
	if f.released {
		return 0, ErrReleased
	}
	if uint64(len(p)) > f.size-f.offset {
		return 0, ErrNoSpace
	}
	if err := f.dev.WriteAt(p, f.address+f.offset); err != nil {
		return 0, err
	}
	f.offset += uint64(len(p))
	return len(p), nil
}

func (f *Flash) Seek(offset uint64) error {
	if offset > f.size {
		return ErrSeekOutOfRange
	}
	f.offset = offset
	return nil
}

// Erase erases the whole range, block by block.
func (f *Flash) Erase() error {
	if f.released {
		return ErrReleased
	}
	for off := uint64(0); off < f.size; off += eraseYieldBlock {
		n := uint64(eraseYieldBlock)
		if f.size-off < n {
			n = f.size - off
		}
		if err := f.dev.Erase(f.address+off, n); err != nil {
			return err
		}
		if off+n < f.size {
			eraseYield()
		}
	}
	return nil
}

func (f *Flash) Release() error {
	f.released = true
	return nil
}
