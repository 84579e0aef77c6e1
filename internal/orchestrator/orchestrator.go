/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package orchestrator decides at every system start whether to boot the
// installed manifests, install a pending candidate or enter emergency
// recovery, and drives the SUIT command sequences of the chosen path.
package orchestrator

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/kentakayama/suit-orchestrator/internal/candidate"
	"github.com/kentakayama/suit-orchestrator/internal/config"
	"github.com/kentakayama/suit-orchestrator/internal/domain/model"
	"github.com/kentakayama/suit-orchestrator/internal/flash"
	"github.com/kentakayama/suit-orchestrator/internal/mci"
	"github.com/kentakayama/suit-orchestrator/internal/recovery"
	"github.com/kentakayama/suit-orchestrator/internal/suit"
)

type Processor interface {
	ProcessSequence(ctx context.Context, envelope []byte, seq suit.Sequence) error
	ManifestMetadata(envelope []byte) (*suit.ManifestMetadata, error)
}

type MCI interface {
	Init(ctx context.Context) error
	InvokeOrder(ctx context.Context, recovery bool) ([]uuid.UUID, error)
	IndependentUpdatePolicy(ctx context.Context, classID uuid.UUID) (bool, error)
}

// Storage is the SUIT storage as seen by the orchestrator.
type Storage interface {
	recovery.ReportStore
	UpdateCandidate(ctx context.Context) ([]model.MemoryRegion, error)
	ClearUpdateCandidate(ctx context.Context) error
	InstalledEnvelope(ctx context.Context, classID uuid.UUID) ([]byte, error)
	ExecutionMode(ctx context.Context) (int, bool, error)
	SetExecutionMode(ctx context.Context, mode int) error
}

type CachePools interface {
	Initialize(regions []model.MemoryRegion) error
	Deinitialize()
}

type Rebooter interface {
	Reboot(ctx context.Context) error
}

// Dependencies are the collaborators of the orchestrator. Rebooter may be
// nil when neither reboot option is configured.
type Dependencies struct {
	Processor Processor
	MCI       MCI
	Storage   Storage
	Pools     CachePools
	// Device backs the candidate envelope region
	Device   flash.Device
	Rebooter Rebooter
}

type handler func(ctx context.Context) (State, error)

type Orchestrator struct {
	cfg       config.OrchestratorConfig
	deps      Dependencies
	validator *candidate.Validator
	flag      *recovery.Flag
	logger    *log.Logger

	handlers    map[State]handler
	initialized bool
	state       State
	mode        ExecutionMode
	// result of the last update or boot path
	pathErr error
}

func New(cfg config.OrchestratorConfig, deps Dependencies) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	o := &Orchestrator{
		cfg:       cfg,
		deps:      deps,
		validator: candidate.NewValidator(cfg.CandidateRegions, deps.MCI, cfg.NordicTopClassID),
		flag:      recovery.NewFlag(deps.Storage),
		logger:    logger,
	}
	o.handlers = map[State]handler{
		StateStartup:              o.startup,
		StateInstall:              o.install,
		StateInstallRecovery:      o.installRecovery,
		StateInstallNordicTop:     o.installNordicTop,
		StatePostInstall:          o.postInstall,
		StatePostInstallNordicTop: o.postInstallNordicTop,
		StateInvoke:               o.invoke,
		StateInvokeRecovery:       o.invokeRecovery,
		StatePostInvoke:           o.postInvoke,
		StatePostInvokeRecovery:   o.postInvokeRecovery,
		StateEnterRecovery:        o.enterRecovery,
	}
	return o
}

// State returns the state Run starts from.
func (o *Orchestrator) State() State {
	return o.state
}

// Mode returns the execution mode decided by Init.
func (o *Orchestrator) Mode() ExecutionMode {
	return o.mode
}

// mpiFailureMode maps MCI initialization errors caused by the
// provisioning information to a failed execution mode.
func mpiFailureMode(err error) (ExecutionMode, bool) {
	switch {
	case errors.Is(err, mci.ErrMPINotFound):
		return ModeFailNoMPI, true
	case errors.Is(err, mci.ErrMPIInvalid),
		errors.Is(err, mci.ErrMPIAuthentication),
		errors.Is(err, mci.ErrDuplicateClassID):
		return ModeFailMPIInvalid, true
	case errors.Is(err, mci.ErrMPIMissingRoles):
		return ModeFailMPIInvalidMissing, true
	case errors.Is(err, mci.ErrMPIUnsupported):
		return ModeFailMPIUnsupported, true
	default:
		return ModeStartup, false
	}
}

// Init checks the storage and the MCI, then computes the state Run starts
// from. A failed MPI is not an Init error: the failure mode is persisted
// and reported by Run.
func (o *Orchestrator) Init(ctx context.Context) error {
	o.initialized = false
	o.pathErr = nil

	if _, _, err := o.deps.Storage.ExecutionMode(ctx); err != nil {
		o.logger.Printf("orchestrator: SUIT storage unavailable: %v", err)
		return fail(EROFS, err)
	}

	if err := o.deps.MCI.Init(ctx); err != nil {
		if errors.Is(err, mci.ErrMPIUnavailable) {
			o.logger.Printf("orchestrator: MPI unreadable: %v", err)
			return fail(EROFS, err)
		}
		mode, ok := mpiFailureMode(err)
		if !ok {
			o.logger.Printf("orchestrator: MCI init failed: %v", err)
			return fail(EFAULT, err)
		}
		o.logger.Printf("orchestrator: MPI unusable (%v), entering %s", err, mode)
		if err := o.persistMode(ctx, mode); err != nil {
			return err
		}
		hasCandidate, err := o.candidatePresent(ctx)
		if err != nil {
			return err
		}
		o.state = StateStartup
		if hasCandidate {
			o.state = StateInstallNordicTop
		}
		o.initialized = true
		return nil
	}

	o.mode = ModeStartup
	state, err := o.decide(ctx)
	if err != nil {
		return err
	}
	o.state = state
	o.initialized = true
	o.logger.Printf("orchestrator: initialized, state %s, execution mode %s", o.state, o.mode)
	return nil
}

func (o *Orchestrator) candidatePresent(ctx context.Context) (bool, error) {
	regions, err := o.deps.Storage.UpdateCandidate(ctx)
	if err != nil {
		return false, fail(EROFS, err)
	}
	return len(regions) > 0, nil
}

// decide selects the path from the candidate presence and the recovery
// flag, and persists the matching execution mode.
func (o *Orchestrator) decide(ctx context.Context) (State, error) {
	hasCandidate, err := o.candidatePresent(ctx)
	if err != nil {
		return stateDone, err
	}
	recoveryFlag, err := o.flag.IsSet(ctx)
	if err != nil {
		return stateDone, fail(EROFS, err)
	}

	var (
		state State
		mode  ExecutionMode
	)
	switch {
	case hasCandidate && recoveryFlag:
		state, mode = StateInstallRecovery, ModeInstallRecovery
	case hasCandidate:
		state, mode = StateInstall, ModeInstall
	case recoveryFlag:
		state, mode = StateInvokeRecovery, ModeInvokeRecovery
	default:
		state, mode = StateInvoke, ModeInvoke
	}
	if err := o.persistMode(ctx, mode); err != nil {
		return stateDone, err
	}
	return state, nil
}

func (o *Orchestrator) persistMode(ctx context.Context, mode ExecutionMode) error {
	if err := o.deps.Storage.SetExecutionMode(ctx, int(mode)); err != nil {
		o.logger.Printf("orchestrator: failed to persist execution mode %s: %v", mode, err)
		return fail(EIO, err)
	}
	o.mode = mode
	return nil
}

// Run executes the state machine from the state computed by Init until a
// terminal state, and returns its result.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.initialized {
		return fail(EFAULT, errors.New("orchestrator not initialized"))
	}
	state := o.state
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		h, ok := o.handlers[state]
		if !ok {
			return fail(EFAULT, errors.New("no handler for state "+state.String()))
		}
		next, err := h(ctx)
		if next == stateDone {
			if err != nil {
				o.logger.Printf("orchestrator: %s finished: %v", state, err)
			}
			return err
		}
		o.logger.Printf("orchestrator: %s -> %s", state, next)
		state = next
	}
}

func (o *Orchestrator) startup(ctx context.Context) (State, error) {
	if errno := o.mode.failErrno(); errno != 0 {
		return stateDone, errno
	}
	return o.decide(ctx)
}

func (o *Orchestrator) install(ctx context.Context) (State, error) {
	o.pathErr = o.updatePath(ctx, false)
	return StatePostInstall, nil
}

func (o *Orchestrator) installRecovery(ctx context.Context) (State, error) {
	o.pathErr = o.updatePath(ctx, false)
	if o.pathErr == nil {
		if err := o.flag.Clear(ctx); err != nil {
			o.logger.Printf("orchestrator: %v", err)
			o.pathErr = fail(EIO, err)
		}
	}
	return StatePostInstall, nil
}

func (o *Orchestrator) installNordicTop(ctx context.Context) (State, error) {
	o.pathErr = o.updatePath(ctx, true)
	return StatePostInstallNordicTop, nil
}

func (o *Orchestrator) clearCandidate(ctx context.Context) {
	if err := o.deps.Storage.ClearUpdateCandidate(ctx); err != nil {
		o.logger.Printf("orchestrator: failed to clear the update candidate: %v", err)
	}
}

func (o *Orchestrator) reboot(ctx context.Context, enabled bool) {
	if !enabled || o.deps.Rebooter == nil {
		return
	}
	o.logger.Printf("orchestrator: rebooting")
	if err := o.deps.Rebooter.Reboot(ctx); err != nil {
		o.logger.Printf("orchestrator: reboot failed: %v", err)
	}
}

func (o *Orchestrator) postInstall(ctx context.Context) (State, error) {
	o.clearCandidate(ctx)
	if o.pathErr != nil {
		o.logger.Printf("orchestrator: update failed: %v", o.pathErr)
	} else {
		o.logger.Printf("orchestrator: update installed")
	}
	o.reboot(ctx, o.cfg.UpdateReboot)
	return stateDone, o.pathErr
}

func (o *Orchestrator) postInstallNordicTop(ctx context.Context) (State, error) {
	o.clearCandidate(ctx)
	if o.pathErr != nil {
		o.logger.Printf("orchestrator: Nordic top recovery update failed: %v", o.pathErr)
		if err := o.persistMode(ctx, ModeFailInstallNordicTop); err != nil {
			return stateDone, err
		}
	}
	o.reboot(ctx, o.cfg.UpdateReboot)
	return stateDone, o.pathErr
}

func (o *Orchestrator) invoke(ctx context.Context) (State, error) {
	if err := o.bootPath(ctx, false); err != nil {
		o.logger.Printf("orchestrator: boot failed: %v", err)
		return StateEnterRecovery, nil
	}
	return StatePostInvoke, nil
}

func (o *Orchestrator) invokeRecovery(ctx context.Context) (State, error) {
	o.pathErr = o.bootPath(ctx, true)
	return StatePostInvokeRecovery, nil
}

func (o *Orchestrator) postInvoke(ctx context.Context) (State, error) {
	return stateDone, o.persistMode(ctx, ModePostInvoke)
}

func (o *Orchestrator) postInvokeRecovery(ctx context.Context) (State, error) {
	if o.pathErr != nil {
		o.logger.Printf("orchestrator: recovery boot failed: %v", o.pathErr)
		if err := o.persistMode(ctx, ModeFailInvokeRecovery); err != nil {
			return stateDone, err
		}
		return stateDone, ENOTSUP
	}
	return stateDone, o.persistMode(ctx, ModePostInvokeRecovery)
}

func (o *Orchestrator) enterRecovery(ctx context.Context) (State, error) {
	if err := o.flag.Set(ctx); err != nil {
		o.logger.Printf("orchestrator: %v", err)
		return stateDone, fail(EIO, err)
	}
	o.reboot(ctx, o.cfg.RecoveryReboot)
	return stateDone, ENOTSUP
}
