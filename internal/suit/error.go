/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package suit

import "errors"

var (
	ErrFatal                        = errors.New("fatal error occured")
	ErrNotSupported                 = errors.New("not supported")
	ErrInvalidType                  = errors.New("invalid type")
	ErrInvalidValue                 = errors.New("invalid value")
	ErrSUITManifestInvalidFormat    = errors.New("invalid SUIT manifest")
	ErrSUITManifestNotAuthenticated = errors.New("SUIT manifest not authenticated")
	ErrSUITManifestMissingKID       = errors.New("SUIT authentication block does not contain a kid")
	ErrSUITManifestDigestMismatch   = errors.New("SUIT manifest digest mismatch")
	ErrSUITSequenceNotFound         = errors.New("SUIT command sequence not present in the manifest")
	ErrSUITSequenceSevered          = errors.New("severed SUIT command sequences are not supported")
	ErrComponentIDInvalid           = errors.New("invalid SUIT component ID")
	ErrComponentTypeMismatch        = errors.New("unexpected SUIT component type")
)
