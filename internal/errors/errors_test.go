package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := New(ErrCodeDataUnavailable, "no dataset for AAPL")
	assert.Equal(t, "DataUnavailable: no dataset for AAPL", err.Error())

	wrapped := Wrap(ErrCodeSourceError, "yahoo fetch", context.DeadlineExceeded)
	assert.Equal(t, "SourceError: yahoo fetch: context deadline exceeded", wrapped.Error())
	assert.ErrorIs(t, wrapped, context.DeadlineExceeded)
}

func TestHasCodeWalksChain(t *testing.T) {
	source := Wrap(ErrCodeSourceError, "http 503", nil)
	outer := Wrapf(ErrCodeDataUnavailable, source, "resolve %s", "MSFT")
	viaFmt := fmt.Errorf("scan: %w", outer)

	assert.Equal(t, ErrCodeDataUnavailable, GetCode(viaFmt))
	assert.True(t, HasCode(viaFmt, ErrCodeDataUnavailable))
	assert.True(t, HasCode(viaFmt, ErrCodeSourceError))
	assert.False(t, HasCode(viaFmt, ErrCodeCacheCorruption))
	assert.False(t, HasCode(nil, ErrCodeSourceError))
}

func TestGetCodeForForeignError(t *testing.T) {
	assert.Equal(t, ErrCodeUnknown, GetCode(fmt.Errorf("plain")))

	var target *Error
	require.True(t, As(Newf(ErrCodeInvalidRequest, "bad %s", "range"), &target))
	assert.Equal(t, "bad range", target.Message)
	assert.Equal(t, "ErrorCode(999)", ErrorCode(999).String())
}
