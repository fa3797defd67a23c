package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPool_RoundRobin(t *testing.T) {
	pool := NewPool([]string{"a", "b", "c"})

	got := []string{pool.Next(), pool.Next(), pool.Next(), pool.Next()}
	assert.Equal(t, []string{"a", "b", "c", "a"}, got)
}

func TestPool_SingleEndpoint(t *testing.T) {
	pool := NewPool([]string{"only"})

	for i := 0; i < 5; i++ {
		assert.Equal(t, "only", pool.Next())
	}
}

func TestPool_BenchedEndpointSkipped(t *testing.T) {
	pool := NewPool([]string{"a", "b"})

	for i := 0; i < pool.maxFailures; i++ {
		pool.ReportFailure("a")
	}

	// Rotation now only yields "b" until the cooldown passes
	for i := 0; i < 4; i++ {
		assert.Equal(t, "b", pool.Next())
	}
}

func TestPool_BenchedEndpointReturnsAfterCooldown(t *testing.T) {
	now := time.Now()
	pool := NewPool([]string{"a", "b"})
	pool.now = func() time.Time { return now }

	for i := 0; i < pool.maxFailures; i++ {
		pool.ReportFailure("a")
	}

	assert.Equal(t, "b", pool.Next())

	now = now.Add(pool.cooldown + time.Second)
	assert.Equal(t, "a", pool.Next(), "cooldown elapsed, endpoint back in rotation")
}

func TestPool_SuccessResetsFailures(t *testing.T) {
	pool := NewPool([]string{"a", "b"})

	pool.ReportFailure("a")
	pool.ReportFailure("a")
	pool.ReportSuccess("a")

	assert.Equal(t, "a", pool.Next())
}

func TestPool_AllBenchedStillRotates(t *testing.T) {
	pool := NewPool([]string{"a", "b"})

	for i := 0; i < pool.maxFailures; i++ {
		pool.ReportFailure("a")
		pool.ReportFailure("b")
	}

	// Better to keep trying than to fail without a request
	assert.NotEmpty(t, pool.Next())
}
