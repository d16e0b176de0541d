package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkcast/inkcast-server/internal/ratelimit"
)

func TestAllow_WithinBurst(t *testing.T) {
	krl := ratelimit.New(1, 3)
	defer krl.Stop()

	assert.True(t, krl.Allow("client-a"))
	assert.True(t, krl.Allow("client-a"))
	assert.True(t, krl.Allow("client-a"))
	assert.False(t, krl.Allow("client-a"), "fourth request exceeds burst")
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	krl := ratelimit.New(1, 1)
	defer krl.Stop()

	assert.True(t, krl.Allow("client-a"))
	assert.False(t, krl.Allow("client-a"))
	assert.True(t, krl.Allow("client-b"), "exhausting one key must not affect another")
}

func TestWait_RespectsContext(t *testing.T) {
	krl := ratelimit.New(0.1, 1)
	defer krl.Stop()

	require.NoError(t, krl.Wait(context.Background(), "voice-nova"))

	// The bucket is empty and refills at one token per ten seconds; a short
	// deadline must abort the wait.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := krl.Wait(ctx, "voice-nova")
	assert.Error(t, err)
}

func TestStop_Idempotent(t *testing.T) {
	krl := ratelimit.New(1, 1)
	krl.Stop()
	krl.Stop()
}
