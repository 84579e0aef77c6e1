/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package mci

import "fmt"

// Role is the manifest role assigned to a class ID by its MPI.
type Role int

const (
	RoleUnknown     Role = 0x00
	RoleNordicTop   Role = 0x10
	RoleSecSDFW     Role = 0x11
	RoleSecSysCtrl  Role = 0x12
	RoleAppRoot     Role = 0x20
	RoleAppRecovery Role = 0x21
	RoleAppLocal1   Role = 0x22
	RoleAppLocal2   Role = 0x23
	RoleAppLocal3   Role = 0x24
	RoleRadRecovery Role = 0x30
	RoleRadLocal1   Role = 0x31
	RoleRadLocal2   Role = 0x32
)

var roleNames = map[Role]string{
	RoleNordicTop:   "NORDIC_TOP",
	RoleSecSDFW:     "SEC_SDFW",
	RoleSecSysCtrl:  "SEC_SYSCTRL",
	RoleAppRoot:     "APP_ROOT",
	RoleAppRecovery: "APP_RECOVERY",
	RoleAppLocal1:   "APP_LOCAL_1",
	RoleAppLocal2:   "APP_LOCAL_2",
	RoleAppLocal3:   "APP_LOCAL_3",
	RoleRadRecovery: "RAD_RECOVERY",
	RoleRadLocal1:   "RAD_LOCAL_1",
	RoleRadLocal2:   "RAD_LOCAL_2",
}

func (r Role) String() string {
	if s, ok := roleNames[r]; ok {
		return s
	}
	return fmt.Sprintf("ROLE(0x%02x)", int(r))
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// NordicProvisioned reports whether manifests with role r are provisioned
// by the SoC vendor rather than the device maker.
func (r Role) NordicProvisioned() bool {
	return r >= RoleNordicTop && r <= RoleSecSysCtrl
}

// InPlaceUpdateable reports whether the components of manifests with
// role r are declared for in-place update by their local core.
func (r Role) InPlaceUpdateable() bool {
	switch r {
	case RoleAppLocal1, RoleAppLocal2, RoleAppLocal3, RoleRadLocal1, RoleRadLocal2:
		return true
	default:
		return false
	}
}
