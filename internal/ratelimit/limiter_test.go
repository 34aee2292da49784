package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_AllowRespectsBurstThenDenies(t *testing.T) {
	r := NewRegistry(1, 2)
	ctx := context.Background()

	assert.True(t, r.Allow(ctx, "ebay"))
	assert.True(t, r.Allow(ctx, "ebay"))
	assert.False(t, r.Allow(ctx, "ebay"))
}

func TestRegistry_LimitersAreProviderScoped(t *testing.T) {
	r := NewRegistry(1, 1)
	ctx := context.Background()

	assert.True(t, r.Allow(ctx, "ebay"))
	assert.False(t, r.Allow(ctx, "ebay"))
	assert.True(t, r.Allow(ctx, "amazon"))
}
