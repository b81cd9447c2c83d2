//go:build windows

//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/common/errclass/windows.go
//

package errclass

import (
	"errors"
	"syscall"

	"golang.org/x/sys/windows"
)

const (
	errEADDRNOTAVAIL   = windows.WSAEADDRNOTAVAIL
	errEADDRINUSE      = windows.WSAEADDRINUSE
	errECONNABORTED    = windows.WSAECONNABORTED
	errECONNREFUSED    = windows.WSAECONNREFUSED
	errECONNRESET      = windows.WSAECONNRESET
	errEHOSTUNREACH    = windows.WSAEHOSTUNREACH
	errEINVAL          = windows.WSAEINVAL
	errEINTR           = windows.WSAEINTR
	errEMSGSIZE        = windows.WSAEMSGSIZE
	errENETDOWN        = windows.WSAENETDOWN
	errENETUNREACH     = windows.WSAENETUNREACH
	errENOBUFS         = windows.WSAENOBUFS
	errENOTCONN        = windows.WSAENOTCONN
	errEPROTONOSUPPORT = windows.WSAEPROTONOSUPPORT
	errETIMEDOUT       = windows.WSAETIMEDOUT
)

// classifyErrno maps a wrapped [syscall.Errno] to a classification label.
func classifyErrno(err error) (string, bool) {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return "", false
	}
	switch errno {
	case errEADDRNOTAVAIL:
		return EADDRNOTAVAIL, true
	case errEADDRINUSE:
		return EADDRINUSE, true
	case errECONNABORTED:
		return ECONNABORTED, true
	case errECONNREFUSED:
		return ECONNREFUSED, true
	case errECONNRESET:
		return ECONNRESET, true
	case errEHOSTUNREACH:
		return EHOSTUNREACH, true
	case errEINVAL:
		return EINVAL, true
	case errEINTR:
		return EINTR, true
	case errEMSGSIZE:
		return EMSGSIZE, true
	case errENETDOWN:
		return ENETDOWN, true
	case errENETUNREACH:
		return ENETUNREACH, true
	case errENOBUFS:
		return ENOBUFS, true
	case errENOTCONN:
		return ENOTCONN, true
	case errEPROTONOSUPPORT:
		return EPROTONOSUPPORT, true
	case errETIMEDOUT:
		return ETIMEDOUT, true
	default:
		return "", false
	}
}
