/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package ipuc

import (
	"bytes"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"testing"

	"github.com/kentakayama/suit-orchestrator/internal/mci"
	"github.com/kentakayama/suit-orchestrator/internal/plat"
	"github.com/kentakayama/suit-orchestrator/internal/suit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veraison/go-cose"
	"golang.org/x/sync/errgroup"
)

const (
	testCompAddr = 0x0E010000
	testCompSize = 0x1000
)

func declared(t *testing.T, b *testBed) []byte {
	t.Helper()
	id := memID(t, testCompAddr, testCompSize)
	require.Nil(t, b.reg.Declare(id, mci.RoleAppLocal1))
	return id
}

func TestWriteSetup_Exclusive(t *testing.T) {
	b := newTestBed(t, 2)
	x := declared(t, b)

	assert.Nil(t, b.reg.WriteSetup(1, x, nil, nil))
	assert.ErrorIs(t, b.reg.WriteSetup(2, x, nil, nil), plat.ErrIncorrectState)
	assert.Nil(t, b.reg.WriteSetup(1, x, nil, nil))

	info, err := b.reg.Info(0)
	require.Nil(t, err)
	assert.Equal(t, UsageIPCInPlaceUpdate, info.Usage)
	assert.Equal(t, 1, info.ClientID)
}

func TestWriteSetup_Rejects(t *testing.T) {
	b := newTestBed(t, 2)
	x := declared(t, b)

	assert.ErrorIs(t, b.reg.WriteSetup(1, x, []byte{0x01}, nil), plat.ErrUnsupported)
	assert.ErrorIs(t, b.reg.WriteSetup(1, x, nil, []byte{0x01}), plat.ErrUnsupported)
	assert.ErrorIs(t, b.reg.WriteSetup(1, []byte{0x80}, nil, nil), plat.ErrUnsupported)
	assert.ErrorIs(t, b.reg.WriteSetup(1, memID(t, 0x0E020000, 0x100), nil, nil), plat.ErrNotFound)
}

func TestWriteSetup_EraseSkip(t *testing.T) {
	b := newTestBed(t, 2)
	x := declared(t, b)

	require.Nil(t, b.reg.WriteSetup(1, x, nil, nil))
	assert.Equal(t, 0, b.dev.erases)

	require.Nil(t, b.reg.Write(1, x, 0, []byte{0x12, 0x34}, true))

	// the region is dirty now
	require.Nil(t, b.reg.WriteSetup(1, x, nil, nil))
	assert.Equal(t, 1, b.dev.erases)

	buf := make([]byte, 2)
	require.Nil(t, b.dev.ReadAt(buf, testCompAddr))
	assert.Equal(t, []byte{0xFF, 0xFF}, buf)

	info, err := b.reg.Info(0)
	require.Nil(t, err)
	assert.Equal(t, uint64(0), info.WritePeekOffset)
	assert.False(t, info.LastChunkStored)
}

func TestWriteSetup_DirtyLastByte(t *testing.T) {
	b := newTestBed(t, 2)
	x := declared(t, b)
	require.Nil(t, b.dev.WriteAt([]byte{0x00}, testCompAddr+testCompSize-1))

	require.Nil(t, b.reg.WriteSetup(1, x, nil, nil))
	assert.Equal(t, 1, b.dev.erases)
}

func TestWrite_PeekOffsetAndGapFill(t *testing.T) {
	b := newTestBed(t, 2)
	x := declared(t, b)
	require.Nil(t, b.reg.WriteSetup(1, x, nil, nil))

	// garbage in the gap must be overwritten with the erase value
	require.Nil(t, b.dev.WriteAt(make([]byte, 48), testCompAddr+16))

	first := bytes.Repeat([]byte{0xA1}, 16)
	second := bytes.Repeat([]byte{0xB2}, 16)
	require.Nil(t, b.reg.Write(1, x, 0, first, false))
	require.Nil(t, b.reg.Write(1, x, 64, second, false))

	gap := make([]byte, 48)
	require.Nil(t, b.dev.ReadAt(gap, testCompAddr+16))
	assert.Equal(t, bytes.Repeat([]byte{0xFF}, 48), gap)

	info, err := b.reg.Info(0)
	require.Nil(t, err)
	assert.Equal(t, uint64(80), info.WritePeekOffset)

	// a rewrite behind the peek offset is a retry, the offset stays
	require.Nil(t, b.reg.Write(1, x, 0, first, false))
	info, err = b.reg.Info(0)
	require.Nil(t, err)
	assert.Equal(t, uint64(80), info.WritePeekOffset)
}

func TestWrite_Rejects(t *testing.T) {
	b := newTestBed(t, 2)
	x := declared(t, b)

	assert.ErrorIs(t, b.reg.Write(1, x, 0, []byte{0x01}, false), plat.ErrIncorrectState)
	require.Nil(t, b.reg.WriteSetup(1, x, nil, nil))
	assert.ErrorIs(t, b.reg.Write(2, x, 0, []byte{0x01}, false), plat.ErrIncorrectState)
	assert.ErrorIs(t, b.reg.Write(1, memID(t, 0x0E020000, 0x100), 0, []byte{0x01}, false), plat.ErrNotFound)
	assert.ErrorIs(t, b.reg.Write(1, x, testCompSize-1, []byte{0x01, 0x02}, false), plat.ErrOutOfBounds)
	assert.ErrorIs(t, b.reg.Write(1, x, ^uint64(0), []byte{0x01}, false), plat.ErrOutOfBounds)
}

func TestWrite_TerminalLatch(t *testing.T) {
	b := newTestBed(t, 2)
	x := declared(t, b)
	require.Nil(t, b.reg.WriteSetup(1, x, nil, nil))

	require.Nil(t, b.reg.Write(1, x, 0, []byte{0x01}, true))
	assert.ErrorIs(t, b.reg.Write(1, x, 1, []byte{0x02}, false), plat.ErrIncorrectState)
	assert.ErrorIs(t, b.reg.Write(1, x, 1, nil, true), plat.ErrIncorrectState)

	// a new session lifts the latch
	require.Nil(t, b.reg.WriteSetup(1, x, nil, nil))
	assert.Nil(t, b.reg.Write(1, x, 0, []byte{0x02}, false))
}

func TestWrite_ZeroLengthFinalize(t *testing.T) {
	b := newTestBed(t, 2)
	x := declared(t, b)
	require.Nil(t, b.reg.WriteSetup(1, x, nil, nil))
	require.Nil(t, b.reg.Write(1, x, 0, []byte{0x01, 0x02}, false))

	require.Nil(t, b.reg.Write(1, x, 2, nil, true))

	info, err := b.reg.Info(0)
	require.Nil(t, err)
	assert.True(t, info.LastChunkStored)
	assert.Equal(t, uint64(2), info.WritePeekOffset)
	assert.ErrorIs(t, b.reg.Write(1, x, 2, []byte{0x03}, false), plat.ErrIncorrectState)
}

func TestDigestCompare(t *testing.T) {
	b := newTestBed(t, 2)
	x := declared(t, b)
	payload := bytes.Repeat([]byte("firmware"), 100)
	sum256 := sha256.Sum256(payload)
	sum512 := sha512.Sum512(payload)

	assert.ErrorIs(t, b.reg.DigestCompare(x, cose.AlgorithmSHA256, sum256[:]), plat.ErrIncorrectState)

	require.Nil(t, b.reg.WriteSetup(1, x, nil, nil))
	require.Nil(t, b.reg.Write(1, x, 0, payload[:500], false))
	assert.ErrorIs(t, b.reg.DigestCompare(x, cose.AlgorithmSHA256, sum256[:]), plat.ErrIncorrectState)

	require.Nil(t, b.reg.Write(1, x, 500, payload[500:], true))
	assert.Nil(t, b.reg.DigestCompare(x, cose.AlgorithmSHA256, sum256[:]))
	assert.Nil(t, b.reg.DigestCompare(x, suit.AlgorithmSHA512, sum512[:]))
	assert.Equal(t, 1, b.cache.Len())

	wrong := sum256
	wrong[0] ^= 0xFF
	assert.ErrorIs(t, b.reg.DigestCompare(x, cose.AlgorithmSHA256, wrong[:]), plat.ErrInval)
	assert.ErrorIs(t, b.reg.DigestCompare(x, cose.AlgorithmES256, sum256[:]), plat.ErrUnsupported)
	assert.ErrorIs(t, b.reg.DigestCompare(memID(t, 0x0E020000, 0x100), cose.AlgorithmSHA256, sum256[:]), plat.ErrNotFound)

	// erasing for a new session forgets the verified digest
	require.Nil(t, b.reg.WriteSetup(1, x, nil, nil))
	assert.Equal(t, 0, b.cache.Len())
}

func TestDigestCompare_EmptySessionAfterErasedPayload(t *testing.T) {
	b := newTestBed(t, 2)
	x := declared(t, b)
	// erased content, so the next WriteSetup finds nothing to erase
	payload := bytes.Repeat([]byte{0xFF}, 0x100)
	sum := sha256.Sum256(payload)

	require.Nil(t, b.reg.WriteSetup(1, x, nil, nil))
	require.Nil(t, b.reg.Write(1, x, 0, payload, true))
	require.Nil(t, b.reg.DigestCompare(x, cose.AlgorithmSHA256, sum[:]))

	require.Nil(t, b.reg.WriteSetup(1, x, nil, nil))
	assert.Equal(t, 0, b.dev.erases)
	require.Nil(t, b.reg.Write(1, x, 0, nil, true))

	info, err := b.reg.Info(0)
	require.Nil(t, err)
	assert.Equal(t, uint64(0), info.WritePeekOffset)
	assert.ErrorIs(t, b.reg.DigestCompare(x, cose.AlgorithmSHA256, sum[:]), plat.ErrInval)

	empty := sha256.Sum256(nil)
	assert.Nil(t, b.reg.DigestCompare(x, cose.AlgorithmSHA256, empty[:]))
}

// failingDevice reports an I/O failure on every write.
type failingDevice struct {
	*eraseSpy
}

func (d failingDevice) WriteAt(p []byte, address uint64) error {
	return errors.New("flash controller fault")
}

func TestWrite_IOFailure(t *testing.T) {
	b := newTestBed(t, 2)
	b.reg.dev = failingDevice{b.dev}
	x := declared(t, b)
	require.Nil(t, b.reg.WriteSetup(1, x, nil, nil))

	err := b.reg.Write(1, x, 0, []byte{0x01}, false)
	assert.ErrorIs(t, err, plat.ErrIO)
	assert.False(t, plat.Recoverable(err))
}

func TestRegistry_ConcurrentSessions(t *testing.T) {
	const clients = 4
	b := newTestBed(t, clients)

	var g errgroup.Group
	for c := 0; c < clients; c++ {
		id := memID(t, testCompAddr+uint64(c)*testCompSize, testCompSize)
		require.Nil(t, b.reg.Declare(id, mci.RoleAppLocal1))
		payload := bytes.Repeat([]byte{byte(c + 1)}, 700)
		clientID := c + 1
		g.Go(func() error {
			if err := b.reg.WriteSetup(clientID, id, nil, nil); err != nil {
				return fmt.Errorf("client %d setup: %w", clientID, err)
			}
			for off := 0; off < len(payload); off += 100 {
				last := off+100 >= len(payload)
				if err := b.reg.Write(clientID, id, uint64(off), payload[off:off+100], last); err != nil {
					return fmt.Errorf("client %d write: %w", clientID, err)
				}
			}
			sum := sha256.Sum256(payload)
			return b.reg.DigestCompare(id, cose.AlgorithmSHA256, sum[:])
		})
	}
	assert.Nil(t, g.Wait())
}

func TestRegistry_RacingSetupSingleWinner(t *testing.T) {
	const clients = 8
	b := newTestBed(t, 2)
	x := declared(t, b)

	results := make([]error, clients)
	var g errgroup.Group
	for c := 0; c < clients; c++ {
		c := c
		g.Go(func() error {
			results[c] = b.reg.WriteSetup(c+1, x, nil, nil)
			return nil
		})
	}
	require.Nil(t, g.Wait())

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
			continue
		}
		assert.ErrorIs(t, err, plat.ErrIncorrectState)
	}
	assert.Equal(t, 1, winners)
}
