// SPDX-License-Identifier: GPL-3.0-or-later

// Package runtimex provides small assert/panic-on-error helpers, adapted
// from the upstream bassosimone/runtimex module used by the rdmnet
// package's teacher.
package runtimex

// Assert panics with msg if cond is false.
func Assert(cond bool, msg string) {
	if !cond {
		panic(msg)
	}
}

// PanicOnError panics if err is non-nil.
func PanicOnError(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}

// PanicOnError1 panics if err is non-nil, otherwise returns value.
func PanicOnError1[T any](value T, err error) T {
	if err != nil {
		panic(err.Error())
	}
	return value
}
