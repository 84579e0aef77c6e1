/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package mci implements the Manifest/Component Information service: it
// loads the provisioned MPI areas and answers role, boot order and
// update eligibility questions per manifest class ID.
package mci

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/kentakayama/suit-orchestrator/internal/domain/service"
	"github.com/kentakayama/suit-orchestrator/internal/util"
)

// roles invoked directly by the orchestrator, in boot order; the others
// are invoked through their parent manifests
var invokeRoles = []Role{RoleNordicTop, RoleAppRoot}

// in recovery the application recovery manifest replaces the root one
var recoveryInvokeRoles = []Role{RoleNordicTop, RoleAppRecovery}

var essentialRoles = []Role{RoleNordicTop, RoleAppRoot}

type manifestClass struct {
	role Role
	mpi  *MPI
}

// Service answers MCI queries from the provisioned MPI records.
type Service struct {
	repo   service.MPIRepository
	logger *log.Logger

	mu      sync.RWMutex
	classes map[uuid.UUID]manifestClass
	byRole  map[Role]uuid.UUID
}

func NewService(repo service.MPIRepository, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Init loads and validates every MPI record. The returned error wraps one
// of the ErrMPI* sentinels or ErrDuplicateClassID. ErrMPIUnavailable
// means the records could not be read, not that they are wrong.
func (s *Service) Init(ctx context.Context) error {
	records, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMPIUnavailable, err)
	}
	if len(records) == 0 {
		return ErrMPINotFound
	}

	seen := util.NewSet[uuid.UUID]()
	roles := util.NewSet[Role]()
	classes := make(map[uuid.UUID]manifestClass, len(records))
	byRole := make(map[Role]uuid.UUID, len(records))
	for _, rec := range records {
		m, classID, err := decodeMPI(rec.Area, rec.Digest)
		if err != nil {
			return fmt.Errorf("MPI record %d: %w", rec.ID, err)
		}
		role := Role(rec.Role)
		if !role.Valid() {
			return fmt.Errorf("%w: record %d role 0x%02x", ErrMPIInvalid, rec.ID, rec.Role)
		}
		if string(rec.ClassID) != string(classID[:]) {
			return fmt.Errorf("%w: record %d class ID does not match its MPI", ErrMPIInvalid, rec.ID)
		}
		if !seen.Add(classID) {
			return fmt.Errorf("%w: %s", ErrDuplicateClassID, classID)
		}
		if !roles.Add(role) {
			return fmt.Errorf("%w: role %s provisioned twice", ErrMPIInvalid, role)
		}
		if role.NordicProvisioned() && m.SignatureVerification == SignatureCheckOff {
			return fmt.Errorf("%w: %s without signature verification", ErrMPIUnsupported, role)
		}
		classes[classID] = manifestClass{role: role, mpi: m}
		byRole[role] = classID
	}

	if missing := roles.Missing(essentialRoles...); len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrMPIMissingRoles, missing)
	}

	s.mu.Lock()
	s.classes = classes
	s.byRole = byRole
	s.mu.Unlock()

	s.logger.Printf("MCI: %d manifest class(es) provisioned", len(classes))
	return nil
}

// InvokeOrder returns the class IDs to boot, in order.
func (s *Service) InvokeOrder(ctx context.Context, recovery bool) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.classes == nil {
		return nil, ErrNotInitialized
	}

	roles := invokeRoles
	if recovery {
		roles = recoveryInvokeRoles
	}
	var order []uuid.UUID
	for _, r := range roles {
		if classID, ok := s.byRole[r]; ok {
			order = append(order, classID)
		}
	}
	if len(order) == 0 {
		return nil, ErrManifestNotFound
	}
	return order, nil
}

// IndependentUpdatePolicy reports whether the manifest class may be
// updated on its own, without its parent manifest.
func (s *Service) IndependentUpdatePolicy(ctx context.Context, classID uuid.UUID) (bool, error) {
	c, err := s.lookup(classID)
	if err != nil {
		return false, err
	}
	return c.mpi.IndependentUpdateability == PolicyAllowed, nil
}

// RoleOf returns the role provisioned for classID.
func (s *Service) RoleOf(ctx context.Context, classID uuid.UUID) (Role, error) {
	c, err := s.lookup(classID)
	if err != nil {
		return RoleUnknown, err
	}
	return c.role, nil
}

func (s *Service) lookup(classID uuid.UUID) (manifestClass, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.classes == nil {
		return manifestClass{}, ErrNotInitialized
	}
	c, ok := s.classes[classID]
	if !ok {
		return manifestClass{}, fmt.Errorf("%w: %s", ErrManifestNotFound, classID)
	}
	return c, nil
}
