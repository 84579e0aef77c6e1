/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package suit

import (
	"fmt"

	"github.com/coreos/go-semver/semver"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// ManifestMetadata is the subset of a manifest the orchestrator needs
// before running any command sequence.
type ManifestMetadata struct {
	ClassID        uuid.UUID
	SequenceNumber uint64
	// Version is nil when the manifest does not declare one
	Version *semver.Version
	Digest  Digest
}

var preReleaseNames = map[int64]string{
	-1: "alpha",
	-2: "beta",
	-3: "rc",
}

// versionOf converts a SUIT_Semantic_Version_Int array into a semantic
// version: [major, minor, patch, (pre-release type, pre-release number)].
func versionOf(v []int64) (*semver.Version, error) {
	if len(v) == 0 {
		return nil, nil
	}
	var out semver.Version
	fields := []*int64{&out.Major, &out.Minor, &out.Patch}
	i := 0
	for ; i < len(v) && i < len(fields); i++ {
		if v[i] < 0 {
			break
		}
		*fields[i] = v[i]
	}
	if i < len(v) {
		name, ok := preReleaseNames[v[i]]
		if !ok {
			return nil, fmt.Errorf("%w: version element %d", ErrInvalidValue, v[i])
		}
		pre := name
		if i+1 < len(v) {
			pre = fmt.Sprintf("%s.%d", name, v[i+1])
		}
		out.PreRelease = semver.PreRelease(pre)
	}
	return &out, nil
}

// ReadManifestMetadata decodes envelope far enough to report the class
// ID, sequence number, version and digest of its manifest. The
// authentication wrapper is decoded but not verified.
func ReadManifestMetadata(envelope []byte) (*ManifestMetadata, error) {
	var e Envelope
	if err := cbor.Unmarshal(envelope, &e); err != nil {
		return nil, err
	}
	var m Nested[Manifest]
	if err := cbor.Unmarshal(e.ManifestBstr, &m); err != nil {
		return nil, ErrSUITManifestInvalidFormat
	}
	classID, err := m.Value.ClassID()
	if err != nil {
		return nil, err
	}
	version, err := versionOf(m.Value.CurrentVersion)
	if err != nil {
		return nil, err
	}
	var digest Digest
	if err := cbor.Unmarshal(e.AuthenticationWrapper.Value.DigestBstr, &digest); err != nil {
		return nil, ErrSUITManifestInvalidFormat
	}
	return &ManifestMetadata{
		ClassID:        classID,
		SequenceNumber: m.Value.ManifestSequenceNumber,
		Version:        version,
		Digest:         digest,
	}, nil
}
