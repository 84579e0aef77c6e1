/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package sink

// RAM is a bounded in-memory sink.
type RAM struct {
	buf      []byte
	pos      int
	released bool
}

func NewRAM(capacity int) *RAM {
	return &RAM{buf: make([]byte, capacity)}
}

func (r *RAM) Write(p []byte) (int, error) {
	if r.released {
		return 0, ErrReleased
	}
	if len(p) > len(r.buf)-r.pos {
		return 0, ErrNoSpace
	}
	n := copy(r.buf[r.pos:], p)
	r.pos += n
	return n, nil
}

func (r *RAM) Seek(offset uint64) error {
	if offset > uint64(len(r.buf)) {
		return ErrSeekOutOfRange
	}
	r.pos = int(offset)
	return nil
}

func (r *RAM) Release() error {
	r.released = true
	return nil
}

// Bytes returns the data written up to the current position.
func (r *RAM) Bytes() []byte {
	return r.buf[:r.pos]
}
