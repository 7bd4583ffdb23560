package relay

import (
	"context"
	"log"
	"time"

	"github.com/npezzotti/chat-relay/internal/cache"
)

// RateLimiter enforces the per-(room, author) sliding window. The
// cache's atomic increment linearizes simultaneous submissions; no
// extra locking in the relay path.
type RateLimiter struct {
	log   *log.Logger
	cache cache.RelayCache
}

func NewRateLimiter(logger *log.Logger, c cache.RelayCache) *RateLimiter {
	return &RateLimiter{log: logger, cache: c}
}

// Check increments and tests the window counter. A window of zero
// disables limiting. Cache outages fail open: dropping legitimate
// messages is worse than letting a burst through.
func (rl *RateLimiter) Check(ctx context.Context, roomId int, authorId string, windowSec int) *PolicyError {
	if windowSec <= 0 {
		return nil
	}

	count, retryAfter, err := rl.cache.IncrRate(ctx, roomId, authorId, time.Duration(windowSec)*time.Second)
	if err != nil {
		rl.log.Println("rate counter:", err)
		return nil
	}

	if count > 1 {
		return RateLimited(retryAfter)
	}

	return nil
}
