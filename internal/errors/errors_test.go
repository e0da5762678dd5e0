package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBudgetExceededError(t *testing.T) {
	err := NewBudgetExceeded("daily_revenue", 10000)

	assert.Contains(t, err.Error(), "daily_revenue")
	assert.Contains(t, err.Error(), "10000")
	assert.Contains(t, err.Error(), "narrow the date range")
	assert.Equal(t, ErrorCodeBudgetExceeded, err.Code())
}

func TestIsBudgetExceededThroughWrapping(t *testing.T) {
	err := fmt.Errorf("loading payments: %w", NewBudgetExceeded("payments", 500))

	assert.True(t, IsBudgetExceeded(err))
	assert.False(t, IsBudgetExceeded(stderrors.New("plain error")))
	assert.False(t, IsBudgetExceeded(nil))
}

func TestUpstreamErrorCodes(t *testing.T) {
	cases := []struct {
		kind UpstreamKind
		code ErrorCode
	}{
		{UpstreamTimeout, ErrorCodeUpstreamTimeout},
		{UpstreamRequest, ErrorCodeUpstreamRequest},
		{UpstreamRedirectLimit, ErrorCodeRedirectExceeded},
	}

	for _, tc := range cases {
		err := &UpstreamError{Kind: tc.kind, URL: "https://rates.example.com", Attempts: 3}
		assert.Equal(t, tc.code, err.Code())
	}
}

func TestUpstreamErrorUnwrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := &UpstreamError{Kind: UpstreamRequest, URL: "https://rates.example.com", Attempts: 2, Err: cause}

	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, IsUpstream(err))
	assert.False(t, IsUpstreamTimeout(err))
	assert.True(t, IsUpstreamTimeout(&UpstreamError{Kind: UpstreamTimeout}))
}
