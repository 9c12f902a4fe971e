package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/levishimwe/Hadathub/internal/config"
	"github.com/levishimwe/Hadathub/internal/domain"
)

func TestAvailabilityCache_Disabled(t *testing.T) {
	ctx := context.Background()
	c, err := NewAvailabilityCache(&config.RedisConfig{Enabled: false})
	require.NoError(t, err)

	c.Set(ctx, domain.Availability{EventID: "e1", Remaining: 3})
	_, ok := c.Get(ctx, "e1")
	assert.False(t, ok)
	c.Invalidate(ctx, "e1")
	assert.NoError(t, c.Close())
}

func TestAvailabilityKey(t *testing.T) {
	assert.Equal(t, "availability:e1", availabilityKey("e1"))
}
