package errors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScrapeErrorFormatting(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := NewNetwork("flower-house", "fetch shop page", cause)

	assert.Contains(t, err.Error(), "[network]")
	assert.Contains(t, err.Error(), "flower-house")
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, cause, err.Unwrap())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, NewNetwork("", "timeout", nil).IsRetryable())
	assert.False(t, NewRateLimit("shop", time.Minute).IsRetryable())
	assert.False(t, NewParsing("", "bad block", nil).IsRetryable())
	assert.False(t, NewAuthToken("shop").IsRetryable())
}

func TestTypeLabel(t *testing.T) {
	assert.Equal(t, "none", TypeLabel(nil))
	assert.Equal(t, "rate_limit", TypeLabel(NewRateLimit("shop", time.Minute)))
	assert.Equal(t, "auth_token", TypeLabel(NewAuthToken("shop")))
	assert.Equal(t, "other", TypeLabel(fmt.Errorf("plain")))
}
