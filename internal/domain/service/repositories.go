/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package service

import (
	"context"
	"time"

	"github.com/kentakayama/suit-orchestrator/internal/domain/model"
)

// ReportRepository defines the interface for SUIT storage report slots.
type ReportRepository interface {
	Save(ctx context.Context, r *model.Report) error
	FindBySlot(ctx context.Context, slot int) (*model.Report, error)
	Clear(ctx context.Context, slot int) error
}

// UpdateCandidateRepository defines the interface for the update-candidate
// descriptor persistence.
type UpdateCandidateRepository interface {
	Set(ctx context.Context, regions []model.MemoryRegion) error
	Get(ctx context.Context) ([]model.MemoryRegion, error)
	Clear(ctx context.Context) error
}

// InstalledEnvelopeRepository defines the interface for installed SUIT
// envelope persistence.
type InstalledEnvelopeRepository interface {
	Save(ctx context.Context, e *model.InstalledEnvelope) (int64, error)
	FindByClassID(ctx context.Context, classID []byte) (*model.InstalledEnvelope, error)
}

// ExecutionModeRepository defines the interface for the persisted
// execution mode.
type ExecutionModeRepository interface {
	Set(ctx context.Context, mode int) error
	Get(ctx context.Context) (*model.ExecutionModeRecord, error)
}

// MPIRepository defines the interface for MPI persistence.
type MPIRepository interface {
	Create(ctx context.Context, rec *model.MPIRecord) (int64, error)
	List(ctx context.Context) ([]*model.MPIRecord, error)
}

// ManifestSigningKeyRepository defines the interface for manifest signing key persistence.
type ManifestSigningKeyRepository interface {
	Create(ctx context.Context, key *model.ManifestSigningKey) (int64, error)
	FindByKID(ctx context.Context, kid []byte) (*model.ManifestSigningKey, error)
	Renew(ctx context.Context, kid []byte, expiredAt time.Time) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
