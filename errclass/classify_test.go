// SPDX-License-Identifier: GPL-3.0-or-later

package errclass_test

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/rdmnet-go/rdmnet/errclass"
	"github.com/stretchr/testify/assert"
)

func TestClassifyNil(t *testing.T) {
	assert.Equal(t, "", errclass.Classify(nil))
}

func TestClassifyContext(t *testing.T) {
	assert.Equal(t, errclass.ETIMEDOUT, errclass.Classify(context.DeadlineExceeded))
	assert.Equal(t, errclass.ECANCELED, errclass.Classify(context.Canceled))
}

func TestClassifyClosed(t *testing.T) {
	assert.Equal(t, errclass.ECLOSED, errclass.Classify(net.ErrClosed))
}

func TestClassifyGeneric(t *testing.T) {
	assert.Equal(t, errclass.EGENERIC, errclass.Classify(errors.New("boom")))
}

func TestClassifyWrapped(t *testing.T) {
	err := errors.Join(errors.New("dial failed"), context.DeadlineExceeded)
	assert.Equal(t, errclass.ETIMEDOUT, errclass.Classify(err))
}
