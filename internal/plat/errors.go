/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package plat defines the platform error kinds shared by the IPUC and
// storage layers. Kinds are negative; positive values belong to the
// module-specific codes of the consumers.
package plat

import (
	"errors"
	"fmt"
)

// Error is a platform error kind.
type Error int

const (
	ErrIO     Error = -1
	ErrNoMem  Error = -2
	ErrAccess Error = -3
	ErrBusy   Error = -4
	ErrExists Error = -5
	ErrInval  Error = -6
	ErrTime   Error = -7

	// extended kinds
	ErrCrash           Error = -1000
	ErrSize            Error = -1001
	ErrOutOfBounds     Error = -1002
	ErrNotFound        Error = -1003
	ErrIncorrectState  Error = -1004
	ErrHWNotReady      Error = -1005
	ErrAuthentication  Error = -1006
	ErrUnreachablePath Error = -1007
	ErrCBORDecoding    Error = -1008
	ErrUnsupported     Error = -1009
	ErrIPC             Error = -1010
	ErrNoResources     Error = -1011
)

var names = map[Error]string{
	ErrIO:              "i/o failure",
	ErrNoMem:           "no memory",
	ErrAccess:          "access denied",
	ErrBusy:            "busy",
	ErrExists:          "already exists",
	ErrInval:           "invalid value",
	ErrTime:            "timeout",
	ErrCrash:           "crash",
	ErrSize:            "invalid size",
	ErrOutOfBounds:     "out of bounds",
	ErrNotFound:        "not found",
	ErrIncorrectState:  "incorrect state",
	ErrHWNotReady:      "hardware not ready",
	ErrAuthentication:  "authentication failed",
	ErrUnreachablePath: "unreachable path",
	ErrCBORDecoding:    "CBOR decoding failed",
	ErrUnsupported:     "unsupported",
	ErrIPC:             "IPC failure",
	ErrNoResources:     "no resources",
}

func (e Error) Error() string {
	if s, ok := names[e]; ok {
		return s
	}
	return fmt.Sprintf("platform error %d", int(e))
}

// Kind extracts the platform error kind carried by err. Errors that do
// not wrap a kind are reported as ErrIO, as the caller cannot tell a
// flash malfunction from anything else.
func Kind(err error) (Error, bool) {
	if err == nil {
		return 0, false
	}
	var e Error
	if errors.As(err, &e) {
		return e, true
	}
	return ErrIO, true
}

// Recoverable reports whether err is a condition the caller may retry or
// abandon, as opposed to an I/O failure.
func Recoverable(err error) bool {
	k, ok := Kind(err)
	if !ok {
		return false
	}
	switch k {
	case ErrIO, ErrCrash, ErrHWNotReady:
		return false
	default:
		return true
	}
}
