package notify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_DrainAndForward(t *testing.T) {
	inner := NewRecorder(nil)
	r := NewRecorder(inner)

	r.Warn("sync cart", errors.New("connection refused"))
	r.Warn("remove item", errors.New("timeout"))

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 2, inner.Len())

	events := r.Drain()
	require.Len(t, events, 2)
	assert.Equal(t, "sync cart", events[0].Message)
	assert.EqualError(t, events[1].Err, "timeout")
	assert.False(t, events[0].At.IsZero())

	assert.Empty(t, r.Drain())
}
