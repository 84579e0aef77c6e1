/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package flash

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// File is a Device backed by an image file, so that the simulator keeps
// flash content across runs.
type File struct {
	f    *os.File
	base uint64
	size uint64
}

// OpenFile opens (or creates and erases) an image of size bytes mapped at base.
func OpenFile(path string, base, size uint64) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open flash image: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat flash image: %w", err)
	}
	d := &File{f: f, base: base, size: size}
	if uint64(fi.Size()) < size {
		// extend with erased content
		pad := bytes.Repeat([]byte{EraseValue}, int(size-uint64(fi.Size())))
		if _, err := f.WriteAt(pad, fi.Size()); err != nil {
			f.Close()
			return nil, fmt.Errorf("initialize flash image: %w", err)
		}
	}
	return d, nil
}

func (d *File) Close() error {
	return d.f.Close()
}

func (d *File) Contains(address, size uint64) bool {
	end := address + size
	return address >= d.base && end >= address && end <= d.base+d.size
}

func (d *File) ReadAt(p []byte, address uint64) error {
	if !d.Contains(address, uint64(len(p))) {
		return fmt.Errorf("%w: 0x%x+0x%x", ErrOutOfRange, address, len(p))
	}
	if _, err := d.f.ReadAt(p, int64(address-d.base)); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func (d *File) WriteAt(p []byte, address uint64) error {
	if !d.Contains(address, uint64(len(p))) {
		return fmt.Errorf("%w: 0x%x+0x%x", ErrOutOfRange, address, len(p))
	}
	_, err := d.f.WriteAt(p, int64(address-d.base))
	return err
}

func (d *File) Erase(address, size uint64) error {
	return d.WriteAt(bytes.Repeat([]byte{EraseValue}, int(size)), address)
}
