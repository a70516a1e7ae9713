package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Budget(t *testing.T) {
	c := NewController(Config{MemoryBudget: 100})

	require.NoError(t, c.Reserve(50))
	require.NoError(t, c.Reserve(40))
	assert.Equal(t, int64(90), c.Usage())

	err := c.Reserve(20)
	assert.ErrorIs(t, err, ErrBudgetExceeded)
	assert.Equal(t, int64(90), c.Usage())

	c.Release(50)
	assert.Equal(t, int64(40), c.Usage())

	require.NoError(t, c.Reserve(20))
	assert.Equal(t, int64(60), c.Usage())
	assert.Equal(t, int64(90), c.Peak())
}

func TestController_Unlimited(t *testing.T) {
	c := NewController(Config{})

	require.NoError(t, c.Reserve(1000))
	c.Release(500)
	assert.Equal(t, int64(500), c.Usage())
	assert.Equal(t, int64(0), c.Budget())
}

func TestController_Nil(t *testing.T) {
	var c *Controller

	require.NoError(t, c.Reserve(1<<40))
	c.Release(1)
	require.NoError(t, c.AcquireSlot(t.Context()))
	c.ReleaseSlot()
	require.NoError(t, c.WaitIO(t.Context(), 1<<20))
	assert.Zero(t, c.Usage())
}

func TestController_Slots(t *testing.T) {
	c := NewController(Config{WorkerSlots: 2})

	require.NoError(t, c.AcquireSlot(t.Context()))
	require.NoError(t, c.AcquireSlot(t.Context()))

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, c.AcquireSlot(ctx))

	c.ReleaseSlot()
	require.NoError(t, c.AcquireSlot(t.Context()))
}

func TestController_WaitIOLargerThanBurst(t *testing.T) {
	c := NewController(Config{IOBytesPerSec: 1 << 20})

	// the first burst is free, the remainder needs a little over one second
	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.WaitIO(ctx, 3<<19))
}
