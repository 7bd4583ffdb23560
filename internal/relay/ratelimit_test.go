package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/npezzotti/chat-relay/internal/cache"
	"github.com/npezzotti/chat-relay/internal/testutil"
)

func TestRateLimiterCheck(t *testing.T) {
	tcases := []struct {
		name       string
		windowSec  int
		count      int64
		retryAfter time.Duration
		cacheErr   error
		expectPass bool
	}{
		{
			name:       "first message passes",
			windowSec:  5,
			count:      1,
			retryAfter: 5 * time.Second,
			expectPass: true,
		},
		{
			name:       "second message within window rejected",
			windowSec:  5,
			count:      2,
			retryAfter: 3 * time.Second,
			expectPass: false,
		},
		{
			name:       "zero window disables limiting",
			windowSec:  0,
			expectPass: true,
		},
		{
			name:       "cache failure fails open",
			windowSec:  5,
			cacheErr:   errors.New("cache down"),
			expectPass: true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockCache := &cache.MockRelayCache{}
			defer mockCache.AssertExpectations(t)

			if tc.windowSec > 0 {
				mockCache.On("IncrRate", mock.Anything, 1, "user-1", time.Duration(tc.windowSec)*time.Second).
					Return(tc.count, tc.retryAfter, tc.cacheErr).Once()
			}

			rl := NewRateLimiter(testutil.TestLogger(t), mockCache)
			perr := rl.Check(context.Background(), 1, "user-1", tc.windowSec)

			if tc.expectPass {
				assert.Nil(t, perr, "expected message to pass the limiter")
			} else {
				assert.NotNil(t, perr, "expected a rate limit rejection")
				assert.Equal(t, ReasonRateLimited, perr.Reason)
				assert.Equal(t, tc.retryAfter, perr.RetryAfter, "expected retry-after from the counter ttl")
			}
		})
	}
}
