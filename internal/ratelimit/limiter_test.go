package ratelimit

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllowsWithinBurst(t *testing.T) {
	limiter := NewRateLimiter(Config{LimitPerMin: 5, BurstMultiplier: 2})

	// Burst capacity is limit * multiplier = 10.
	allowed := 0
	for i := 0; i < 15; i++ {
		if limiter.AllowIP("203.0.113.1").Allowed {
			allowed++
		}
	}

	assert.GreaterOrEqual(t, allowed, 5, "should allow at least the limit")
	assert.LessOrEqual(t, allowed, 11, "should not exceed burst plus refill margin")
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	limiter := NewRateLimiter(Config{LimitPerMin: 2, BurstMultiplier: 2})

	// Minimum burst floor is 5.
	for i := 0; i < 5; i++ {
		result := limiter.AllowIP("203.0.113.2")
		require.True(t, result.Allowed, "request %d should be allowed", i+1)
		assert.Equal(t, 2, result.Limit)
	}

	result := limiter.AllowIP("203.0.113.2")
	assert.False(t, result.Allowed)
	assert.Greater(t, result.RetryAfter, time.Duration(0))
	assert.Equal(t, 0, result.Remaining)
}

func TestRateLimiterIndependentIPs(t *testing.T) {
	limiter := NewRateLimiter(Config{LimitPerMin: 2, BurstMultiplier: 2})

	ips := []string{"198.51.100.1", "198.51.100.2", "198.51.100.3"}
	for _, ip := range ips {
		for i := 0; i < 5; i++ {
			result := limiter.AllowIP(ip)
			require.True(t, result.Allowed, "ip %s request %d", ip, i+1)
		}
		result := limiter.AllowIP(ip)
		assert.False(t, result.Allowed, "ip %s should be exhausted", ip)
	}
}

func TestRateLimiterDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, 60, config.LimitPerMin)
	assert.Equal(t, 2, config.BurstMultiplier)
}

func TestRateLimiterConcurrency(t *testing.T) {
	limiter := NewRateLimiter(DefaultConfig())

	done := make(chan bool, 50)
	for i := 0; i < 50; i++ {
		go func(n int) {
			ip := fmt.Sprintf("192.0.2.%d", n%8)
			for j := 0; j < 10; j++ {
				result := limiter.AllowIP(ip)
				assert.NotNil(t, result)
			}
			done <- true
		}(i)
	}

	for i := 0; i < 50; i++ {
		<-done
	}
}
