/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package suit

import (
	"context"
	"fmt"
	"log"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"
)

// Keyring resolves trust anchors for manifest authentication.
type Keyring interface {
	FindKey(ctx context.Context, kid []byte) (*cose.Key, error)
}

// Invocation is one command sequence ready to be executed.
type Invocation struct {
	Sequence Sequence
	// Envelope is the raw envelope the manifest was taken from
	Envelope []byte
	Manifest *Manifest
	Commands []cbor.RawMessage
}

// CommandRunner executes the directives and conditions of one decoded
// command sequence.
type CommandRunner interface {
	Run(ctx context.Context, inv *Invocation) error
}

// EnvelopeProcessor parses and authenticates envelopes and hands the
// requested command sequences to a CommandRunner. Every call starts from
// the raw envelope, so no state is kept between phases.
type EnvelopeProcessor struct {
	keys   Keyring
	runner CommandRunner
	logger *log.Logger
}

// NewEnvelopeProcessor returns a processor. A nil keyring accepts
// envelopes with a valid digest only; a nil runner accepts any well
// formed sequence.
func NewEnvelopeProcessor(keys Keyring, runner CommandRunner, logger *log.Logger) *EnvelopeProcessor {
	if logger == nil {
		logger = log.Default()
	}
	return &EnvelopeProcessor{
		keys:   keys,
		runner: runner,
		logger: logger,
	}
}

func (p *EnvelopeProcessor) parse(ctx context.Context, envelope []byte) (*Manifest, error) {
	var e Envelope
	if err := cbor.Unmarshal(envelope, &e); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	if p.keys == nil {
		if err := e.VerifyDigest(); err != nil {
			return nil, err
		}
	} else {
		kid := e.KID()
		if kid == nil {
			return nil, ErrSUITManifestMissingKID
		}
		key, err := p.keys.FindKey(ctx, kid)
		if err != nil || key == nil {
			return nil, ErrSUITManifestNotAuthenticated
		}
		if err := e.Verify(key); err != nil {
			return nil, err
		}
	}

	var m Nested[Manifest]
	if err := cbor.Unmarshal(e.ManifestBstr, &m); err != nil {
		return nil, ErrSUITManifestInvalidFormat
	}
	return &m.Value, nil
}

// ProcessSequence authenticates envelope and runs the command sequence
// seq. A manifest without the requested sequence yields
// ErrSUITSequenceNotFound.
func (p *EnvelopeProcessor) ProcessSequence(ctx context.Context, envelope []byte, seq Sequence) error {
	m, err := p.parse(ctx, envelope)
	if err != nil {
		return err
	}
	if seq == SequenceParse {
		return nil
	}

	commands, err := m.CommandSequence(seq)
	if err != nil {
		return err
	}
	if p.runner == nil {
		p.logger.Printf("%s: %d command(s) accepted without a runner", seq, len(commands)/2)
		return nil
	}
	return p.runner.Run(ctx, &Invocation{
		Sequence: seq,
		Envelope: envelope,
		Manifest: m,
		Commands: commands,
	})
}

// ManifestMetadata reads the metadata of envelope without authenticating it.
func (p *EnvelopeProcessor) ManifestMetadata(envelope []byte) (*ManifestMetadata, error) {
	return ReadManifestMetadata(envelope)
}
