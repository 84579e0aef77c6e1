/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package recovery keeps the emergency recovery flag in SUIT storage.
package recovery

import (
	"context"
	"fmt"
)

// Slot is the report slot holding the flag. A present report, even an
// empty one, means the flag is set.
const Slot = 0

type ReportStore interface {
	ReportRead(ctx context.Context, slot int) ([]byte, bool, error)
	ReportSave(ctx context.Context, slot int, payload []byte) error
	ReportClear(ctx context.Context, slot int) error
}

type Flag struct {
	store ReportStore
}

func NewFlag(store ReportStore) *Flag {
	return &Flag{store: store}
}

func (f *Flag) IsSet(ctx context.Context) (bool, error) {
	_, set, err := f.store.ReportRead(ctx, Slot)
	if err != nil {
		return false, fmt.Errorf("read recovery flag: %w", err)
	}
	return set, nil
}

func (f *Flag) Set(ctx context.Context) error {
	if err := f.store.ReportSave(ctx, Slot, nil); err != nil {
		return fmt.Errorf("set recovery flag: %w", err)
	}
	return nil
}

func (f *Flag) Clear(ctx context.Context) error {
	if err := f.store.ReportClear(ctx, Slot); err != nil {
		return fmt.Errorf("clear recovery flag: %w", err)
	}
	return nil
}
