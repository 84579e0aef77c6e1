/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package digestcache remembers the digests already verified for memory
// components, so that a repeated check-image-match can be answered
// without streaming the component again.
package digestcache

import (
	"bytes"
	"sync"

	"github.com/veraison/go-cose"
)

type entry struct {
	length uint64
	alg    cose.Algorithm
	digest []byte
}

// Cache maps CBOR encoded component IDs to verified digests.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
}

func New() *Cache {
	return &Cache{entries: make(map[string]entry)}
}

// Add records digest as the verified content of the first length bytes
// of componentID.
func (c *Cache) Add(componentID []byte, length uint64, alg cose.Algorithm, digest []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[string(componentID)] = entry{length: length, alg: alg, digest: bytes.Clone(digest)}
}

// Match reports whether digest was verified with alg over the first
// length bytes of componentID.
func (c *Cache) Match(componentID []byte, length uint64, alg cose.Algorithm, digest []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[string(componentID)]
	return ok && e.length == length && e.alg == alg && bytes.Equal(e.digest, digest)
}

// Invalidate drops whatever is known about componentID.
func (c *Cache) Invalidate(componentID []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, string(componentID))
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
