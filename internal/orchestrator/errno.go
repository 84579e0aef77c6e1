/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package orchestrator

import (
	"errors"
	"fmt"
)

// Errno is an orchestrator exit code. Values follow the Zephyr errno
// numbering and are reported negated by Code.
type Errno int

const (
	EPERM     Errno = 1
	ESRCH     Errno = 3
	EIO       Errno = 5
	ENOEXEC   Errno = 8
	EBADF     Errno = 9
	EACCES    Errno = 13
	EFAULT    Errno = 14
	EROFS     Errno = 30
	EMSGSIZE  Errno = 122
	ENOTSUP   Errno = 134
	EILSEQ    Errno = 138
	EOVERFLOW Errno = 139
)

var errnoNames = map[Errno]string{
	EPERM:     "EPERM",
	ESRCH:     "ESRCH",
	EIO:       "EIO",
	ENOEXEC:   "ENOEXEC",
	EBADF:     "EBADF",
	EACCES:    "EACCES",
	EFAULT:    "EFAULT",
	EROFS:     "EROFS",
	EMSGSIZE:  "EMSGSIZE",
	ENOTSUP:   "ENOTSUP",
	EILSEQ:    "EILSEQ",
	EOVERFLOW: "EOVERFLOW",
}

func (e Errno) Error() string {
	if s, ok := errnoNames[e]; ok {
		return s
	}
	return fmt.Sprintf("errno %d", int(e))
}

// Code converts the result of Init or Run into a negative errno, 0 on
// success. Errors that carry no Errno are reported as -EFAULT.
func Code(err error) int {
	if err == nil {
		return 0
	}
	var e Errno
	if errors.As(err, &e) {
		return -int(e)
	}
	return -int(EFAULT)
}

// fail attaches errno to the collaborator error err.
func fail(errno Errno, err error) error {
	if err == nil {
		return errno
	}
	return fmt.Errorf("%w: %v", errno, err)
}
