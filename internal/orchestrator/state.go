/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package orchestrator

// ExecutionMode is the persisted summary of the path the device is
// committed to.
type ExecutionMode int

const (
	ModeStartup ExecutionMode = iota
	ModeInvoke
	ModeInstall
	ModeInvokeRecovery
	ModeInstallRecovery
	ModePostInvoke
	ModePostInvokeRecovery
	ModeFailNoMPI
	ModeFailMPIInvalid
	ModeFailMPIInvalidMissing
	ModeFailMPIUnsupported
	ModeFailInvokeRecovery
	ModeFailInstallNordicTop
)

var modeNames = map[ExecutionMode]string{
	ModeStartup:               "STARTUP",
	ModeInvoke:                "INVOKE",
	ModeInstall:               "INSTALL",
	ModeInvokeRecovery:        "INVOKE_RECOVERY",
	ModeInstallRecovery:       "INSTALL_RECOVERY",
	ModePostInvoke:            "POST_INVOKE",
	ModePostInvokeRecovery:    "POST_INVOKE_RECOVERY",
	ModeFailNoMPI:             "FAIL_NO_MPI",
	ModeFailMPIInvalid:        "FAIL_MPI_INVALID",
	ModeFailMPIInvalidMissing: "FAIL_MPI_INVALID_MISSING",
	ModeFailMPIUnsupported:    "FAIL_MPI_UNSUPPORTED",
	ModeFailInvokeRecovery:    "FAIL_INVOKE_RECOVERY",
	ModeFailInstallNordicTop:  "FAIL_INSTALL_NORDIC_TOP",
}

func (m ExecutionMode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return "UNKNOWN"
}

// failErrno returns the code Run reports for a failed MPI mode, 0 for
// the other modes.
func (m ExecutionMode) failErrno() Errno {
	switch m {
	case ModeFailNoMPI:
		return EPERM
	case ModeFailMPIInvalid:
		return EOVERFLOW
	case ModeFailMPIInvalidMissing:
		return EBADF
	case ModeFailMPIUnsupported:
		return ENOTSUP
	default:
		return 0
	}
}

// State selects the branch of the state machine. It is computed by Init
// and never persisted.
type State int

const (
	StateStartup State = iota
	StateInvoke
	StateInvokeRecovery
	StateInstall
	StateInstallRecovery
	StateInstallNordicTop
	StatePostInvoke
	StatePostInvokeRecovery
	StatePostInstall
	StatePostInstallNordicTop
	StateEnterRecovery

	stateDone State = -1
)

var stateNames = map[State]string{
	StateStartup:              "STARTUP",
	StateInvoke:               "INVOKE",
	StateInvokeRecovery:       "INVOKE_RECOVERY",
	StateInstall:              "INSTALL",
	StateInstallRecovery:      "INSTALL_RECOVERY",
	StateInstallNordicTop:     "INSTALL_NORDIC_TOP",
	StatePostInvoke:           "POST_INVOKE",
	StatePostInvokeRecovery:   "POST_INVOKE_RECOVERY",
	StatePostInstall:          "POST_INSTALL",
	StatePostInstallNordicTop: "POST_INSTALL_NORDIC_TOP",
	StateEnterRecovery:        "ENTER_RECOVERY",
	stateDone:                 "DONE",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "UNKNOWN"
}
