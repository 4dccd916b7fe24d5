package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates instruments register on a disabled meter and recording never panics.
// Scope: Unit Test
// Security: N/A
// Expected: NewCompute succeeds and every recorder is callable, including on a nil receiver.
// Test Case ID: MET-01
func TestNewCompute(t *testing.T) {
	ctx := context.Background()
	m, err := New(ctx, Config{Enabled: false}, "test")
	require.NoError(t, err)

	c, err := NewCompute(m)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		c.InstancesCreated(ctx, 2, false)
		c.InstanceFailed(ctx, "host_timeout")
		c.InstanceTerminated(ctx)
		c.RequestDenied(ctx, "quota_exceeded")
		c.HostCall(ctx, "launch", time.Second, errors.New("boom"))
		c.TerminalAttempt(ctx, "denied")
		c.TerminalAttached(ctx)()
	})

	var nilCompute *Compute
	assert.NotPanics(t, func() {
		nilCompute.InstancesCreated(ctx, 1, true)
		nilCompute.TerminalAttached(ctx)()
	})
}
