/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package suit

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// ComponentType is the platform tag carried by the first element of a
// SUIT_Component_Identifier.
type ComponentType int

const (
	ComponentTypeUnsupported ComponentType = iota
	ComponentTypeMem
	ComponentTypeSOCSpec
	ComponentTypeCandImage
	ComponentTypeCandManifest
	ComponentTypeInstalledManifest
	ComponentTypeCachePool
)

var componentTypeTags = map[string]ComponentType{
	"M": ComponentTypeMem,
	"D": ComponentTypeSOCSpec,
	"C": ComponentTypeCandImage,
	"c": ComponentTypeCandManifest,
	"I": ComponentTypeInstalledManifest,
	"P": ComponentTypeCachePool,
}

func (t ComponentType) String() string {
	switch t {
	case ComponentTypeMem:
		return "MEM"
	case ComponentTypeSOCSpec:
		return "SOC_SPEC"
	case ComponentTypeCandImage:
		return "CAND_IMG"
	case ComponentTypeCandManifest:
		return "CAND_MFST"
	case ComponentTypeInstalledManifest:
		return "INSTLD_MFST"
	case ComponentTypeCachePool:
		return "CACHE_POOL"
	default:
		return "UNSUPPORTED"
	}
}

func (t ComponentType) tag() string {
	for k, v := range componentTypeTags {
		if v == t {
			return k
		}
	}
	return ""
}

func decodeComponentID(encoded []byte) (ComponentID, error) {
	var id ComponentID
	if err := cbor.Unmarshal(encoded, &id); err != nil {
		return nil, ErrComponentIDInvalid
	}
	if len(id) == 0 {
		return nil, ErrComponentIDInvalid
	}
	return id, nil
}

// DecodeComponentType returns the type tag of a CBOR encoded component ID.
func DecodeComponentType(encoded []byte) (ComponentType, error) {
	id, err := decodeComponentID(encoded)
	if err != nil {
		return ComponentTypeUnsupported, err
	}
	t, ok := componentTypeTags[string(id[0])]
	if !ok {
		return ComponentTypeUnsupported, nil
	}
	return t, nil
}

// DecodeAddressSize extracts the absolute address and size of a MEM
// component: ['M', bstr .cbor cpu_id, bstr .cbor address, bstr .cbor size].
func DecodeAddressSize(encoded []byte) (uint64, uint64, error) {
	id, err := decodeComponentID(encoded)
	if err != nil {
		return 0, 0, err
	}
	if componentTypeTags[string(id[0])] != ComponentTypeMem {
		return 0, 0, ErrComponentTypeMismatch
	}
	if len(id) != 4 {
		return 0, 0, ErrComponentIDInvalid
	}
	var address, size uint64
	if err := cbor.Unmarshal(id[2], &address); err != nil {
		return 0, 0, fmt.Errorf("%w: address: %v", ErrComponentIDInvalid, err)
	}
	if err := cbor.Unmarshal(id[3], &size); err != nil {
		return 0, 0, fmt.Errorf("%w: size: %v", ErrComponentIDInvalid, err)
	}
	return address, size, nil
}

// DecodeManifestClassID extracts the RFC 4122 class ID of a manifest
// component: ['I', bstr uuid].
func DecodeManifestClassID(encoded []byte) (uuid.UUID, error) {
	id, err := decodeComponentID(encoded)
	if err != nil {
		return uuid.Nil, err
	}
	return classIDOf(id)
}

func classIDOf(id ComponentID) (uuid.UUID, error) {
	switch componentTypeTags[string(id[0])] {
	case ComponentTypeInstalledManifest, ComponentTypeCandManifest:
	default:
		return uuid.Nil, ErrComponentTypeMismatch
	}
	if len(id) != 2 {
		return uuid.Nil, ErrComponentIDInvalid
	}
	classID, err := uuid.FromBytes(id[1])
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrComponentIDInvalid, err)
	}
	return classID, nil
}

// EncodeMemComponentID builds the CBOR encoded ID of a MEM component.
func EncodeMemComponentID(cpuID uint8, address, size uint64) ([]byte, error) {
	cpu, err := cbor.Marshal(cpuID)
	if err != nil {
		return nil, err
	}
	addr, err := cbor.Marshal(address)
	if err != nil {
		return nil, err
	}
	sz, err := cbor.Marshal(size)
	if err != nil {
		return nil, err
	}
	return cbor.Marshal(ComponentID{[]byte(ComponentTypeMem.tag()), cpu, addr, sz})
}

// EncodeManifestComponentID builds the CBOR encoded ID of an installed
// manifest with the given class ID.
func EncodeManifestComponentID(classID uuid.UUID) ([]byte, error) {
	return cbor.Marshal(ComponentID{[]byte(ComponentTypeInstalledManifest.tag()), classID[:]})
}

// ClassID returns the class ID of the manifest component ID.
func (m *Manifest) ClassID() (uuid.UUID, error) {
	if len(m.ManifestComponentID) == 0 {
		return uuid.Nil, ErrSUITManifestInvalidFormat
	}
	return classIDOf(m.ManifestComponentID)
}

// EncodedComponents returns the CBOR encoded IDs of the components listed
// in the common section, in order.
func (m *Manifest) EncodedComponents() ([][]byte, error) {
	components := m.Common.Value.Components
	out := make([][]byte, 0, len(components))
	for _, c := range components {
		encoded, err := cbor.Marshal(c)
		if err != nil {
			return nil, err
		}
		out = append(out, encoded)
	}
	return out, nil
}
