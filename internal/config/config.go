/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package config

import (
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/kentakayama/suit-orchestrator/internal/domain/model"
)

// DefaultIPUCSize is the number of IPUC pool slots.
const DefaultIPUCSize = 16

// DefaultReadBackChunk is the read-back buffer used to detect erased regions.
const DefaultReadBackChunk = 256

// IPUCConfig captures the tunables of the in-place updateable component registry.
type IPUCConfig struct {
	// Size is the number of pool slots.
	Size int
	// SDFWUpdateArea is the region the secure domain accepts SDFW mirrors in.
	SDFWUpdateArea model.MemoryRegion
	ReadBackChunk  int
	Logger         *log.Logger
}

// OrchestratorConfig captures the tunables of the boot/update state machine.
type OrchestratorConfig struct {
	// UpdateReboot requests a cold reboot after each install attempt.
	UpdateReboot bool
	// RecoveryReboot requests a cold reboot when entering recovery.
	RecoveryReboot bool
	// NordicTopClassID is the only class ID accepted by the last-resort
	// SDFW recovery install.
	NordicTopClassID uuid.UUID
	// CandidateRegions are the platform-approved update-candidate areas.
	CandidateRegions []model.MemoryRegion
	Logger           *log.Logger
}

// ServerConfig captures the tunables of the IPC gateway.
type ServerConfig struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	Logger            *log.Logger
}

// StorageConfig locates the SUIT storage database.
type StorageConfig struct {
	DBPath string
}
