package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponentialRetryPolicyShouldRetry(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(2, 0, 0)
	serverErr := &FetchError{URL: "u", StatusCode: http.StatusServiceUnavailable}
	notFound := &FetchError{URL: "u", StatusCode: http.StatusNotFound}

	assert.True(t, p.ShouldRetry(serverErr, 0))
	assert.True(t, p.ShouldRetry(serverErr, 1))
	assert.False(t, p.ShouldRetry(serverErr, 2))
	assert.False(t, p.ShouldRetry(notFound, 0))
	assert.False(t, p.ShouldRetry(nil, 0))
	assert.False(t, p.ShouldRetry(fmt.Errorf("wrap: %w", context.Canceled), 0))
	assert.True(t, p.ShouldRetry(errors.New("eof"), 0))
}

func TestExponentialRetryPolicyDisabled(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(-1, 0, 0)
	assert.False(t, p.ShouldRetry(&FetchError{URL: "u"}, 0))
}

func TestExponentialRetryPolicyBackoffBounds(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(5, 100*time.Millisecond, 400*time.Millisecond)
	for attempt := 0; attempt < 6; attempt++ {
		d := p.Backoff(attempt)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 400*time.Millisecond)
	}
}
