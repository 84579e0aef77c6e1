/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kentakayama/suit-orchestrator/internal/candidate"
	"github.com/kentakayama/suit-orchestrator/internal/suit"
)

type step struct {
	seq      suit.Sequence
	optional bool
}

var (
	updateSteps = []step{
		{seq: suit.SequenceParse},
		{seq: suit.SequenceCandidateVerification, optional: true},
		{seq: suit.SequenceInstall},
	}
	bootSteps = []step{
		{seq: suit.SequenceValidate},
		{seq: suit.SequenceLoad, optional: true},
		{seq: suit.SequenceInvoke},
	}
)

func (o *Orchestrator) runSteps(ctx context.Context, envelope []byte, steps []step) error {
	for _, s := range steps {
		err := o.deps.Processor.ProcessSequence(ctx, envelope, s.seq)
		if err == nil {
			continue
		}
		if s.optional && errors.Is(err, suit.ErrSUITSequenceNotFound) {
			continue
		}
		return fail(EILSEQ, fmt.Errorf("%s: %w", s.seq, err))
	}
	return nil
}

// updatePath validates the update candidate and installs it. With
// nordicTopOnly, only the Nordic top manifest is accepted.
func (o *Orchestrator) updatePath(ctx context.Context, nordicTopOnly bool) error {
	regions, err := o.deps.Storage.UpdateCandidate(ctx)
	if err != nil {
		return fail(EROFS, err)
	}
	if len(regions) == 0 {
		return fail(EMSGSIZE, errors.New("no update candidate"))
	}
	envRegion := regions[0]
	if err := o.validator.CheckLocation(envRegion); err != nil {
		if errors.Is(err, candidate.ErrInvalidSize) {
			return fail(EMSGSIZE, err)
		}
		return fail(EACCES, err)
	}

	if err := o.deps.Pools.Initialize(regions[1:]); err != nil {
		return fail(EFAULT, err)
	}
	defer o.deps.Pools.Deinitialize()

	envelope := make([]byte, envRegion.Size)
	if err := o.deps.Device.ReadAt(envelope, envRegion.Address); err != nil {
		return fail(EIO, err)
	}

	meta, err := o.deps.Processor.ManifestMetadata(envelope)
	if err != nil {
		return fail(ENOEXEC, err)
	}
	if err := o.validator.CheckManifest(ctx, meta, nordicTopOnly); err != nil {
		if errors.Is(err, candidate.ErrPolicyLookup) {
			return fail(ESRCH, err)
		}
		return fail(EACCES, err)
	}
	o.logger.Printf("orchestrator: installing %s, sequence number %d", meta.ClassID, meta.SequenceNumber)

	return o.runSteps(ctx, envelope, updateSteps)
}

// bootPath boots the installed manifests in MCI order. In emergency mode
// failures are logged and the remaining manifests still boot; the path
// then fails only when no manifest booted.
func (o *Orchestrator) bootPath(ctx context.Context, emergency bool) error {
	order, err := o.deps.MCI.InvokeOrder(ctx, emergency)
	if err != nil {
		return fail(ESRCH, err)
	}

	var (
		booted  int
		lastErr error
	)
	for _, classID := range order {
		if err := o.bootManifest(ctx, classID); err != nil {
			if !emergency {
				return err
			}
			o.logger.Printf("orchestrator: %s failed to boot, continuing: %v", classID, err)
			lastErr = err
			continue
		}
		booted++
	}
	if booted == 0 && lastErr != nil {
		return lastErr
	}
	return nil
}

func (o *Orchestrator) bootManifest(ctx context.Context, classID uuid.UUID) error {
	envelope, err := o.deps.Storage.InstalledEnvelope(ctx, classID)
	if err != nil {
		return fail(ESRCH, err)
	}
	meta, err := o.deps.Processor.ManifestMetadata(envelope)
	if err != nil {
		return fail(ENOEXEC, err)
	}
	version := "unknown"
	if meta.Version != nil {
		version = meta.Version.String()
	}
	o.logger.Printf("orchestrator: booting %s version %s, sequence number %d", classID, version, meta.SequenceNumber)

	return o.runSteps(ctx, envelope, bootSteps)
}
