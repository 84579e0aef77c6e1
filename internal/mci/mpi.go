/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package mci

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

const mpiVersion = 1

// Policy values shared by the MPI policy fields.
type Policy uint8

const (
	PolicyDenied  Policy = 1
	PolicyAllowed Policy = 2
)

// Signature verification policy values.
const (
	SignatureCheckOff           Policy = 1
	SignatureCheckUpdateOnly    Policy = 2
	SignatureCheckUpdateAndBoot Policy = 3
)

// Downgrade prevention policy values.
const (
	DowngradePreventionDisabled Policy = 1
	DowngradePreventionEnabled  Policy = 2
)

// MPI is the Manifest Provisioning Information of one manifest class.
type MPI struct {
	_                        struct{} `cbor:",toarray"`
	Version                  uint8
	DowngradePrevention      Policy
	IndependentUpdateability Policy
	SignatureVerification    Policy
	VendorID                 []byte
	ClassID                  []byte
}

// EncodeMPI returns the provisioned form of m and its digest.
func EncodeMPI(m MPI) ([]byte, []byte, error) {
	area, err := cbor.Marshal(m)
	if err != nil {
		return nil, nil, err
	}
	sum := sha256.Sum256(area)
	return area, sum[:], nil
}

// decodeMPI authenticates and validates one provisioned area.
func decodeMPI(area, digest []byte) (*MPI, uuid.UUID, error) {
	sum := sha256.Sum256(area)
	if subtle.ConstantTimeCompare(sum[:], digest) != 1 {
		return nil, uuid.Nil, ErrMPIAuthentication
	}

	var m MPI
	if err := cbor.Unmarshal(area, &m); err != nil {
		return nil, uuid.Nil, fmt.Errorf("%w: %v", ErrMPIInvalid, err)
	}
	if m.Version != mpiVersion {
		return nil, uuid.Nil, fmt.Errorf("%w: version %d", ErrMPIUnsupported, m.Version)
	}
	if m.IndependentUpdateability != PolicyDenied && m.IndependentUpdateability != PolicyAllowed {
		return nil, uuid.Nil, fmt.Errorf("%w: independent updateability %d", ErrMPIInvalid, m.IndependentUpdateability)
	}
	if m.DowngradePrevention != DowngradePreventionDisabled && m.DowngradePrevention != DowngradePreventionEnabled {
		return nil, uuid.Nil, fmt.Errorf("%w: downgrade prevention %d", ErrMPIInvalid, m.DowngradePrevention)
	}
	if m.SignatureVerification < SignatureCheckOff || m.SignatureVerification > SignatureCheckUpdateAndBoot {
		return nil, uuid.Nil, fmt.Errorf("%w: signature verification %d", ErrMPIInvalid, m.SignatureVerification)
	}
	if len(m.VendorID) != 16 {
		return nil, uuid.Nil, fmt.Errorf("%w: vendor ID length %d", ErrMPIInvalid, len(m.VendorID))
	}
	classID, err := uuid.FromBytes(m.ClassID)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%w: %v", ErrMPIInvalid, err)
	}
	return &m, classID, nil
}
