package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucket_Exhaustion(t *testing.T) {
	tb := NewTokenBucket(2, 1)

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	// 桶空了
	assert.False(t, tb.Allow())
}

func TestTokenBucket_Refill(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	// 手动拨回补充时间，模拟一秒过去
	tb.mu.Lock()
	tb.lastRefill = tb.lastRefill.Add(-1100 * time.Millisecond)
	tb.mu.Unlock()

	assert.True(t, tb.Allow())
}
