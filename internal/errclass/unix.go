//go:build unix

//
// SPDX-License-Identifier: GPL-3.0-or-later
//

package errclass

import "golang.org/x/sys/unix"

const (
	errEADDRINUSE   = unix.EADDRINUSE
	errEAGAIN       = unix.EAGAIN
	errECONNABORTED = unix.ECONNABORTED
	errECONNREFUSED = unix.ECONNREFUSED
	errECONNRESET   = unix.ECONNRESET
	errEHOSTUNREACH = unix.EHOSTUNREACH
	errEINTR        = unix.EINTR
	errENETDOWN     = unix.ENETDOWN
	errENETUNREACH  = unix.ENETUNREACH
	errENOTCONN     = unix.ENOTCONN
	errEPIPE        = unix.EPIPE
	errETIMEDOUT    = unix.ETIMEDOUT
	errEWOULDBLOCK  = unix.EWOULDBLOCK
)
