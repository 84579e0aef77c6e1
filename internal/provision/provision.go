/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package provision prepares a simulated device: MPI records, signed
// envelopes of the installed images, and update candidates.
package provision

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/kentakayama/suit-orchestrator/internal/domain/model"
	"github.com/kentakayama/suit-orchestrator/internal/flash"
	"github.com/kentakayama/suit-orchestrator/internal/mci"
	"github.com/kentakayama/suit-orchestrator/internal/storage"
	"github.com/kentakayama/suit-orchestrator/internal/suit"
	"github.com/veraison/go-cose"
)

// draft-ietf-suit-manifest command and parameter labels
const (
	conditionVendorIdentifier   = 1
	conditionClassIdentifier    = 2
	conditionImageMatch         = 3
	directiveSetComponentIndex  = 12
	directiveWrite              = 18
	directiveOverrideParameters = 20
	directiveInvoke             = 23

	parameterVendorIdentifier = 1
	parameterClassIdentifier  = 2
	parameterImageDigest      = 3
	parameterImageSize        = 14
	parameterContent          = 18

	// the whole component list is selected by a true index
	reportAll = 15
)

// DefaultKeyValidity is the lifetime of a generated trust anchor.
const DefaultKeyValidity = 365 * 24 * time.Hour

// Image is one manifest class and the MEM component it owns.
type Image struct {
	ClassID  uuid.UUID
	Role     mci.Role
	Address  uint64
	Size     uint64
	Payload  []byte
	Sequence uint64
	// Version is a SUIT_Semantic_Version_Int, e.g. [1, 0, 2]
	Version []int64
	// Independent allows updating the class without its parent
	Independent bool
}

// Provisioner writes the provisioning of one device.
type Provisioner struct {
	Storage  *storage.Storage
	Device   flash.Device
	VendorID uuid.UUID
	CPUID    uint8
	Signer   cose.Signer
	// KID identifies the trust anchor matching Signer
	KID []byte
}

// NewSigner generates an ES256 signing key and registers its public part
// as a trust anchor of s.
func NewSigner(ctx context.Context, s *storage.Storage, validity time.Duration) (cose.Signer, []byte, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	signer, err := cose.NewSigner(cose.AlgorithmES256, priv)
	if err != nil {
		return nil, nil, err
	}
	x := make([]byte, 32)
	y := make([]byte, 32)
	priv.PublicKey.X.FillBytes(x)
	priv.PublicKey.Y.FillBytes(y)
	pub, err := cose.NewKeyEC2(cose.AlgorithmES256, x, y, nil)
	if err != nil {
		return nil, nil, err
	}
	kid, err := s.AddTrustAnchor(ctx, pub, validity)
	if err != nil {
		return nil, nil, err
	}
	return signer, kid, nil
}

func wrap(v any) ([]byte, error) {
	inner, err := cbor.Marshal(v)
	if err != nil {
		return nil, err
	}
	return cbor.Marshal(inner)
}

// Manifest builds the manifest of img: INSTALL writes the payload,
// VALIDATE checks its digest and INVOKE starts it.
func (p *Provisioner) Manifest(img Image) (*suit.Manifest, error) {
	if uint64(len(img.Payload)) > img.Size {
		return nil, fmt.Errorf("payload of %s does not fit in 0x%x bytes", img.ClassID, img.Size)
	}
	encodedID, err := suit.EncodeMemComponentID(p.CPUID, img.Address, img.Size)
	if err != nil {
		return nil, err
	}
	var component suit.ComponentID
	if err := cbor.Unmarshal(encodedID, &component); err != nil {
		return nil, err
	}
	sum := sha256.Sum256(img.Payload)
	digest, err := cbor.Marshal(suit.Digest{DigestAlg: cose.AlgorithmSHA256, DigestBytes: sum[:]})
	if err != nil {
		return nil, err
	}

	install, err := suit.WrapSequence([]any{
		uint64(directiveSetComponentIndex), uint64(0),
		uint64(directiveOverrideParameters), map[uint64]any{
			parameterVendorIdentifier: p.VendorID[:],
			parameterClassIdentifier:  img.ClassID[:],
			parameterContent:          img.Payload,
		},
		uint64(conditionVendorIdentifier), uint64(reportAll),
		uint64(conditionClassIdentifier), uint64(reportAll),
		uint64(directiveWrite), uint64(reportAll),
	})
	if err != nil {
		return nil, err
	}
	validate, err := suit.WrapSequence([]any{
		uint64(directiveOverrideParameters), map[uint64]any{
			parameterImageDigest: digest,
			parameterImageSize:   uint64(len(img.Payload)),
		},
		uint64(conditionImageMatch), uint64(reportAll),
	})
	if err != nil {
		return nil, err
	}
	invoke, err := suit.WrapSequence([]any{uint64(directiveInvoke), uint64(reportAll)})
	if err != nil {
		return nil, err
	}

	return &suit.Manifest{
		ManifestVersion:        1,
		ManifestSequenceNumber: img.Sequence,
		Common:                 suit.Nested[suit.Common]{Value: suit.Common{Components: []suit.ComponentID{component}}},
		ManifestComponentID:    suit.ComponentID{[]byte("I"), img.ClassID[:]},
		CurrentVersion:         img.Version,
		Install:                install,
		Validate:               validate,
		Invoke:                 invoke,
	}, nil
}

// Envelope builds and signs the envelope of img.
func (p *Provisioner) Envelope(img Image) ([]byte, error) {
	m, err := p.Manifest(img)
	if err != nil {
		return nil, err
	}
	return suit.BuildEnvelope(m, cose.AlgorithmSHA256, p.Signer, p.KID)
}

// MPI stores the provisioning information of img.
func (p *Provisioner) MPI(ctx context.Context, img Image) error {
	independent := mci.PolicyDenied
	if img.Independent {
		independent = mci.PolicyAllowed
	}
	area, digest, err := mci.EncodeMPI(mci.MPI{
		Version:                  1,
		DowngradePrevention:      mci.DowngradePreventionDisabled,
		IndependentUpdateability: independent,
		SignatureVerification:    mci.SignatureCheckUpdateAndBoot,
		VendorID:                 p.VendorID[:],
		ClassID:                  img.ClassID[:],
	})
	if err != nil {
		return err
	}
	_, err = p.Storage.MPI().Create(ctx, &model.MPIRecord{
		ClassID:   img.ClassID[:],
		Role:      int(img.Role),
		Area:      area,
		Digest:    digest,
		CreatedAt: time.Now().UTC(),
	})
	return err
}

// Install provisions images as if they had been installed at the
// factory: MPI record, payload in flash and installed envelope.
func (p *Provisioner) Install(ctx context.Context, images ...Image) error {
	for _, img := range images {
		if err := p.MPI(ctx, img); err != nil {
			return fmt.Errorf("MPI of %s: %w", img.ClassID, err)
		}
		envelope, err := p.Envelope(img)
		if err != nil {
			return err
		}
		if err := p.Device.Erase(img.Address, img.Size); err != nil {
			return err
		}
		if err := p.Device.WriteAt(img.Payload, img.Address); err != nil {
			return err
		}
		if err := p.Storage.SaveInstalledEnvelope(ctx, img.ClassID, envelope, img.Sequence); err != nil {
			return err
		}
	}
	return nil
}

// StageCandidate writes the envelope of img at address and records it as
// the update candidate, followed by the DFU cache pools.
func (p *Provisioner) StageCandidate(ctx context.Context, img Image, address uint64, pools ...model.MemoryRegion) error {
	envelope, err := p.Envelope(img)
	if err != nil {
		return err
	}
	if !p.Device.Contains(address, uint64(len(envelope))) {
		return errors.New("candidate does not fit in the device")
	}
	if err := p.Device.WriteAt(envelope, address); err != nil {
		return err
	}
	regions := append([]model.MemoryRegion{{Address: address, Size: uint64(len(envelope))}}, pools...)
	return p.Storage.SetUpdateCandidate(ctx, regions)
}
