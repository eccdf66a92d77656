//go:build windows

//
// SPDX-License-Identifier: GPL-3.0-or-later
//

package errclass

import "golang.org/x/sys/windows"

const (
	errEADDRINUSE   = windows.WSAEADDRINUSE
	errEAGAIN       = windows.WSAEWOULDBLOCK
	errECONNABORTED = windows.WSAECONNABORTED
	errECONNREFUSED = windows.WSAECONNREFUSED
	errECONNRESET   = windows.WSAECONNRESET
	errEHOSTUNREACH = windows.WSAEHOSTUNREACH
	errEINTR        = windows.WSAEINTR
	errENETDOWN     = windows.WSAENETDOWN
	errENETUNREACH  = windows.WSAENETUNREACH
	errENOTCONN     = windows.WSAENOTCONN
	errEPIPE        = windows.WSAESHUTDOWN
	errETIMEDOUT    = windows.WSAETIMEDOUT
	errEWOULDBLOCK  = windows.WSAEWOULDBLOCK
)
