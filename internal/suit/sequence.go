/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package suit

import "github.com/fxamacker/cbor/v2"

// Sequence names a SUIT command sequence phase.
type Sequence int

const (
	SequenceParse Sequence = iota
	SequenceDependencyResolution
	SequenceCandidateVerification
	SequencePayloadFetch
	SequenceInstall
	SequenceValidate
	SequenceLoad
	SequenceInvoke
)

func (s Sequence) String() string {
	switch s {
	case SequenceParse:
		return "PARSE"
	case SequenceDependencyResolution:
		return "DEPENDENCY_RESOLUTION"
	case SequenceCandidateVerification:
		return "CANDIDATE_VERIFICATION"
	case SequencePayloadFetch:
		return "PAYLOAD_FETCH"
	case SequenceInstall:
		return "INSTALL"
	case SequenceValidate:
		return "VALIDATE"
	case SequenceLoad:
		return "LOAD"
	case SequenceInvoke:
		return "INVOKE"
	default:
		return "UNKNOWN"
	}
}

// member returns the raw manifest member holding the sequence.
func (m *Manifest) member(s Sequence) cbor.RawMessage {
	switch s {
	case SequenceDependencyResolution:
		return m.DependencyResolution
	case SequenceCandidateVerification:
		return m.CandidateVerification
	case SequencePayloadFetch:
		return m.PayloadFetch
	case SequenceInstall:
		return m.Install
	case SequenceValidate:
		return m.Validate
	case SequenceLoad:
		return m.Load
	case SequenceInvoke:
		return m.Invoke
	default:
		return nil
	}
}

// CommandSequence returns the decoded commands of sequence s. Severable
// members that were severed (a SUIT_Digest in place of the bstr) are
// rejected.
func (m *Manifest) CommandSequence(s Sequence) ([]cbor.RawMessage, error) {
	raw := m.member(s)
	if len(raw) == 0 {
		return nil, ErrSUITSequenceNotFound
	}
	var inner []byte
	if err := cbor.Unmarshal(raw, &inner); err != nil {
		var digest Digest
		if cbor.Unmarshal(raw, &digest) == nil {
			return nil, ErrSUITSequenceSevered
		}
		return nil, ErrSUITManifestInvalidFormat
	}
	var commands []cbor.RawMessage
	if err := cbor.Unmarshal(inner, &commands); err != nil {
		return nil, ErrSUITManifestInvalidFormat
	}
	// SUIT_Command_Sequence is a list of (command, argument) pairs
	if len(commands)%2 != 0 {
		return nil, ErrSUITManifestInvalidFormat
	}
	return commands, nil
}
