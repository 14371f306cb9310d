package syserr

import (
	"context"
	"errors"
	"syscall"
	"testing"

	"github.com/bassosimone/errclass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap_nil(t *testing.T) {
	assert.NoError(t, Wrap(`read`, nil))
}

func TestWrap_errno(t *testing.T) {
	err := Wrap(`connect`, syscall.ECONNREFUSED)
	require.Error(t, err)

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, `connect`, e.Op)
	assert.Equal(t, errnoOrigin, e.Origin)
	assert.Equal(t, int64(syscall.ECONNREFUSED), e.Code)
	assert.ErrorIs(t, err, syscall.ECONNREFUSED)
	assert.True(t, Is(err, errnoOrigin, int64(syscall.ECONNREFUSED)))
	assert.False(t, Is(err, OriginResolver, int64(syscall.ECONNREFUSED)))
}

func TestWrap_idempotent(t *testing.T) {
	first := Wrap(`bind`, syscall.EADDRINUSE)
	second := Wrap(`listen`, first)
	assert.Same(t, first, second)
	assert.Equal(t, `bind`, second.(*Error).Op)
}

func TestWrap_noCode(t *testing.T) {
	cause := errors.New(`boom`)
	err := Wrap(`resolve`, cause)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, OriginUnknown, e.Origin)
	assert.Zero(t, e.Code)
	assert.Equal(t, `resolve: boom`, err.Error())
}

func TestError_noCause(t *testing.T) {
	err := New(`lookup`, OriginResolver, ResolverNotFound, nil)
	assert.Equal(t, `lookup: resolver error 1`, err.Error())
	assert.Nil(t, err.Unwrap())
}

func TestOrigin_String(t *testing.T) {
	for _, tc := range []struct {
		origin Origin
		want   string
	}{
		{OriginUnknown, `unknown`},
		{OriginErrno, `errno`},
		{OriginWindows, `windows`},
		{OriginResolver, `resolver`},
		{Origin(200), `unknown`},
	} {
		assert.Equal(t, tc.want, tc.origin.String())
	}
}

func TestClass(t *testing.T) {
	assert.Equal(t, ``, Class(nil))
	assert.Equal(t, errclass.ETIMEDOUT, Class(Wrap(`wait`, context.DeadlineExceeded)))
	assert.Equal(t, errclass.EGENERIC, Class(errors.New(`unknown error`)))
}
