// SPDX-License-Identifier: GPL-3.0-or-later

package rdmnet

import (
	"math/rand/v2"
	"net"
	"time"
)

// Config holds common configuration for rdmnet operations.
//
// Pass this to constructor functions to pre-wire dependencies.
// All fields have sensible defaults set by [NewConfig].
type Config struct {
	// Dialer is used by [*ConnectFunc].
	//
	// Set by [NewConfig] to [*net.Dialer].
	Dialer Dialer

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewConfig] to [DefaultErrClassifier].
	ErrClassifier ErrClassifier

	// TimeNow returns the current time.
	//
	// Set by [NewConfig] to [time.Now]. Overriding this makes backoff
	// and heartbeat timers deterministic in tests.
	TimeNow func() time.Time

	// Rand returns a pseudo-random uint32, used for backoff jitter and
	// the LLRP probe-reply delay.
	//
	// Set by [NewConfig] to a [math/rand/v2]-backed source. Overriding
	// this makes jittered delays deterministic in tests.
	Rand func() uint32
}

// NewConfig creates a [*Config] with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Dialer:        &net.Dialer{},
		ErrClassifier: DefaultErrClassifier,
		TimeNow:       time.Now,
		Rand:          rand.Uint32,
	}
}
