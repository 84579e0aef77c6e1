/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package mci

import "errors"

var (
	ErrMPINotFound       = errors.New("no MPI provisioned")
	ErrMPIUnavailable    = errors.New("MPI storage unavailable")
	ErrMPIInvalid        = errors.New("MPI has an invalid format")
	ErrMPIAuthentication = errors.New("MPI digest mismatch")
	ErrMPIMissingRoles   = errors.New("MPI lacks an essential manifest role")
	ErrMPIUnsupported    = errors.New("MPI configuration not supported")
	ErrDuplicateClassID  = errors.New("duplicate manifest class ID")
	ErrManifestNotFound  = errors.New("manifest class ID not provisioned")
	ErrNotInitialized    = errors.New("MCI not initialized")
)
