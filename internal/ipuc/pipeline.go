/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package ipuc

import (
	"bytes"
	"fmt"

	"github.com/kentakayama/suit-orchestrator/internal/domain/model"
	"github.com/kentakayama/suit-orchestrator/internal/flash"
	"github.com/kentakayama/suit-orchestrator/internal/plat"
	"github.com/kentakayama/suit-orchestrator/internal/sink"
	"github.com/veraison/go-cose"
)

func ioError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", plat.ErrIO, op, err)
}

// session returns the entry of an open write session held by clientID.
func (r *Registry) session(clientID int, componentID []byte) (*entry, error) {
	idx := r.find(componentID)
	if idx < 0 {
		return nil, plat.ErrNotFound
	}
	e := &r.entries[idx]
	if e.usage != UsageIPCInPlaceUpdate || e.clientID != clientID {
		return nil, plat.ErrIncorrectState
	}
	return e, nil
}

// WriteSetup opens a write session on componentID for clientID. The
// region is erased unless it already reads back as erased. Calling it
// again from the same client restarts the session.
func (r *Registry) WriteSetup(clientID int, componentID, encryptionInfo, compressionInfo []byte) error {
	region, err := memRegion(componentID)
	if err != nil {
		return err
	}
	if len(encryptionInfo) > 0 || len(compressionInfo) > 0 {
		return plat.ErrUnsupported
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.find(componentID)
	if idx < 0 {
		return plat.ErrNotFound
	}
	e := &r.entries[idx]
	switch {
	case e.usage == UsageUnused:
	case e.usage == UsageIPCInPlaceUpdate && e.clientID == clientID:
	default:
		return plat.ErrIncorrectState
	}

	erased, err := r.isErased(region)
	if err != nil {
		return ioError("read back", err)
	}
	if !erased {
		if err := r.erase(region); err != nil {
			return ioError("erase", err)
		}
		r.logger.Printf("IPUC: erased 0x%x+0x%x for client %d", region.Address, region.Size, clientID)
	}
	// digests of the previous session no longer describe the component
	r.cache.Invalidate(componentID)

	e.writePeekOffset = 0
	e.lastChunkStored = false
	e.usage = UsageIPCInPlaceUpdate
	e.clientID = clientID
	return nil
}

// isErased streams the region through a RAM sink, one chunk at a time,
// and stops at the first byte that is not the erase value.
func (r *Registry) isErased(region model.MemoryRegion) (bool, error) {
	ram := sink.NewRAM(r.chunk)
	defer ram.Release()

	for off := uint64(0); off < region.Size; {
		n := min(uint64(r.chunk), region.Size-off)
		if err := ram.Seek(0); err != nil {
			return false, err
		}
		if err := sink.StreamMemory(r.dev, region.Address+off, n, r.chunk, ram); err != nil {
			return false, err
		}
		for _, b := range ram.Bytes() {
			if b != flash.EraseValue {
				return false, nil
			}
		}
		off += n
	}
	return true, nil
}

func (r *Registry) erase(region model.MemoryRegion) error {
	fs, err := sink.NewFlash(r.dev, region.Address, region.Size)
	if err != nil {
		return err
	}
	defer fs.Release()
	return fs.Erase()
}

// Write stores buf at offset of the component. Bytes skipped between the
// highest offset written so far and offset are filled with the erase
// value. Rewriting below that offset is accepted. After a write with
// lastChunk set, the session accepts no more data until the next
// WriteSetup.
func (r *Registry) Write(clientID int, componentID []byte, offset uint64, buf []byte, lastChunk bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, err := r.session(clientID, componentID)
	if err != nil {
		return err
	}
	if e.lastChunkStored {
		return plat.ErrIncorrectState
	}

	if len(buf) > 0 {
		region, err := memRegion(componentID)
		if err != nil {
			return err
		}
		n := uint64(len(buf))
		if offset > region.Size || n > region.Size-offset {
			return plat.ErrOutOfBounds
		}

		fs, err := sink.NewFlash(r.dev, region.Address, region.Size)
		if err != nil {
			return ioError("open", err)
		}
		defer fs.Release()

		if offset > e.writePeekOffset {
			if err := fillGap(fs, e.writePeekOffset, offset-e.writePeekOffset, r.chunk); err != nil {
				return ioError("fill", err)
			}
		}
		if err := fs.Seek(offset); err != nil {
			return ioError("seek", err)
		}
		if _, err := fs.Write(buf); err != nil {
			return ioError("write", err)
		}
		r.cache.Invalidate(componentID)
		e.writePeekOffset = max(e.writePeekOffset, offset+n)
	}

	if lastChunk {
		e.lastChunkStored = true
	}
	return nil
}

func fillGap(fs *sink.Flash, from, size uint64, chunk int) error {
	if err := fs.Seek(from); err != nil {
		return err
	}
	pattern := bytes.Repeat([]byte{flash.EraseValue}, chunk)
	for size > 0 {
		n := min(uint64(chunk), size)
		if _, err := fs.Write(pattern[:n]); err != nil {
			return err
		}
		size -= n
	}
	return nil
}

// DigestCompare checks the bytes written in the session, up to the highest
// offset written, against digest. It is only allowed once the last chunk
// has been stored.
func (r *Registry) DigestCompare(componentID []byte, alg cose.Algorithm, digest []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.find(componentID)
	if idx < 0 {
		return plat.ErrNotFound
	}
	e := &r.entries[idx]
	if e.usage != UsageIPCInPlaceUpdate || !e.lastChunkStored {
		return plat.ErrIncorrectState
	}

	ds, err := sink.NewDigest(alg)
	if err != nil {
		return plat.ErrUnsupported
	}
	defer ds.Release()

	if r.cache.Match(componentID, e.writePeekOffset, alg, digest) {
		return nil
	}

	region, err := memRegion(componentID)
	if err != nil {
		return err
	}
	if err := sink.StreamMemory(r.dev, region.Address, e.writePeekOffset, r.chunk, ds); err != nil {
		return ioError("digest", err)
	}
	if err := ds.Match(digest); err != nil {
		return plat.ErrInval
	}
	r.cache.Add(componentID, e.writePeekOffset, alg, digest)
	return nil
}
