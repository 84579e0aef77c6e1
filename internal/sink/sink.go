/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package sink provides the stream sinks used to move component data:
// a bounded RAM buffer, a flash region and a running digest.
package sink

import (
	"errors"
	"fmt"
	"io"

	"github.com/kentakayama/suit-orchestrator/internal/flash"
)

var (
	ErrNoSpace        = errors.New("sink capacity exceeded")
	ErrSeekOutOfRange = errors.New("seek beyond the end of the sink")
	ErrDigestMismatch = errors.New("digest mismatch")
	ErrUnsupportedAlg = errors.New("unsupported digest algorithm")
	ErrReleased       = errors.New("sink already released")
)

// Sink is the write end of a stream.
type Sink interface {
	io.Writer
	Seek(offset uint64) error
	Release() error
}

// StreamMemory copies size bytes starting at address from dev into s,
// chunk bytes at a time.
func StreamMemory(dev flash.Device, address, size uint64, chunk int, s Sink) error {
	if chunk <= 0 {
		chunk = 256
	}
	buf := make([]byte, chunk)
	for off := uint64(0); off < size; {
		n := uint64(chunk)
		if size-off < n {
			n = size - off
		}
		if err := dev.ReadAt(buf[:n], address+off); err != nil {
			return fmt.Errorf("read 0x%x: %w", address+off, err)
		}
		if _, err := s.Write(buf[:n]); err != nil {
			return err
		}
		off += n
	}
	return nil
}
