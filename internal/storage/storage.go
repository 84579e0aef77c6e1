/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package storage is the SUIT storage of the secure domain: the update
// candidate descriptor, installed envelopes, report slots, execution
// mode, MPI and trust anchors, kept in SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kentakayama/suit-orchestrator/internal/config"
	"github.com/kentakayama/suit-orchestrator/internal/domain"
	"github.com/kentakayama/suit-orchestrator/internal/domain/model"
	"github.com/kentakayama/suit-orchestrator/internal/domain/service"
	"github.com/kentakayama/suit-orchestrator/internal/infra/sqlite"
)

// Storage groups the SUIT storage repositories.
type Storage struct {
	db         *sql.DB
	candidates service.UpdateCandidateRepository
	envelopes  service.InstalledEnvelopeRepository
	reports    service.ReportRepository
	modes      service.ExecutionModeRepository
	mpi        service.MPIRepository
	keys       service.ManifestSigningKeyRepository
}

// Open initializes the database at cfg.DBPath.
func Open(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	path := cfg.DBPath
	if path == "" {
		path = ":memory:"
	}
	db, err := sqlite.InitDB(ctx, path)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

// New wires the repositories on an initialized database.
func New(db *sql.DB) *Storage {
	return &Storage{
		db:         db,
		candidates: sqlite.NewUpdateCandidateRepository(db),
		envelopes:  sqlite.NewInstalledEnvelopeRepository(db),
		reports:    sqlite.NewReportRepository(db),
		modes:      sqlite.NewExecutionModeRepository(db),
		mpi:        sqlite.NewMPIRepository(db),
		keys:       sqlite.NewManifestSigningKeyRepository(db),
	}
}

func (s *Storage) Close() error {
	return sqlite.CloseDB(s.db)
}

// MPI exposes the MPI repository to the MCI service.
func (s *Storage) MPI() service.MPIRepository {
	return s.mpi
}

// UpdateCandidate returns the candidate regions, nil when no candidate is
// set. Element 0 is the envelope.
func (s *Storage) UpdateCandidate(ctx context.Context) ([]model.MemoryRegion, error) {
	return s.candidates.Get(ctx)
}

func (s *Storage) SetUpdateCandidate(ctx context.Context, regions []model.MemoryRegion) error {
	if len(regions) == 0 {
		return fmt.Errorf("update candidate needs an envelope region")
	}
	return s.candidates.Set(ctx, regions)
}

func (s *Storage) ClearUpdateCandidate(ctx context.Context) error {
	return s.candidates.Clear(ctx)
}

// InstalledEnvelope returns the envelope installed for classID, or an
// error wrapping domain.ErrNotFound.
func (s *Storage) InstalledEnvelope(ctx context.Context, classID uuid.UUID) ([]byte, error) {
	e, err := s.envelopes.FindByClassID(ctx, classID[:])
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("%w: installed envelope %s", domain.ErrNotFound, classID)
	}
	return e.Envelope, nil
}

func (s *Storage) SaveInstalledEnvelope(ctx context.Context, classID uuid.UUID, envelope []byte, sequenceNumber uint64) error {
	_, err := s.envelopes.Save(ctx, &model.InstalledEnvelope{
		ClassID:        classID[:],
		Envelope:       envelope,
		SequenceNumber: sequenceNumber,
		CreatedAt:      time.Now().UTC(),
	})
	return err
}

// ReportRead returns the payload of slot and whether the slot is set.
func (s *Storage) ReportRead(ctx context.Context, slot int) ([]byte, bool, error) {
	r, err := s.reports.FindBySlot(ctx, slot)
	if err != nil {
		return nil, false, err
	}
	if r == nil {
		return nil, false, nil
	}
	return r.Payload, true, nil
}

func (s *Storage) ReportSave(ctx context.Context, slot int, payload []byte) error {
	return s.reports.Save(ctx, &model.Report{Slot: slot, Payload: payload, CreatedAt: time.Now().UTC()})
}

func (s *Storage) ReportClear(ctx context.Context, slot int) error {
	return s.reports.Clear(ctx, slot)
}

// ExecutionMode returns the persisted execution mode and whether one was
// ever persisted.
func (s *Storage) ExecutionMode(ctx context.Context) (int, bool, error) {
	rec, err := s.modes.Get(ctx)
	if err != nil {
		return 0, false, err
	}
	if rec == nil {
		return 0, false, nil
	}
	return rec.Mode, true, nil
}

func (s *Storage) SetExecutionMode(ctx context.Context, mode int) error {
	return s.modes.Set(ctx, mode)
}
