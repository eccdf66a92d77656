// SPDX-License-Identifier: GPL-3.0-or-later

package errclass

import "syscall"

// classifyErrno maps a raw errno to a [Class] using the platform-specific
// constants declared in unix.go / windows.go.
func classifyErrno(errno syscall.Errno) Class {
	switch errno {
	case errEAGAIN, errEWOULDBLOCK, errEINTR:
		return ClassRetry
	case errECONNRESET, errECONNABORTED, errEPIPE, errENOTCONN:
		return ClassClosed
	case errETIMEDOUT:
		return ClassTimeout
	case errECONNREFUSED:
		return ClassRefused
	case errEADDRINUSE:
		return ClassAddrInUse
	case errEHOSTUNREACH, errENETUNREACH, errENETDOWN:
		return ClassUnreachable
	default:
		return ClassOther
	}
}

// isRetryErrno reports whether errno means "try again": EAGAIN, EWOULDBLOCK
// or EINTR. The event loop's non-blocking send/recv steps use this to
// distinguish "not ready yet" from a terminal transport error.
func isRetryErrno(errno syscall.Errno) bool {
	return errno == errEAGAIN || errno == errEWOULDBLOCK || errno == errEINTR
}
