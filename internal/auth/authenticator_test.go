package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingLookup struct {
	owners map[string]string
	err    error
	calls  int
}

func (c *countingLookup) GetAPIKey(_ context.Context, key string) (string, error) {
	c.calls++
	return c.owners[key], c.err
}

func TestValidate(t *testing.T) {
	lookup := &countingLookup{owners: map[string]string{"redis-key": "dispatch"}}
	a := NewAuthenticator([]string{"static-key", ""}, time.Minute, lookup)
	ctx := context.Background()

	assert.True(t, a.Validate(ctx, "static-key"))
	assert.Equal(t, 0, lookup.calls)

	assert.True(t, a.Validate(ctx, "redis-key"))
	assert.True(t, a.Validate(ctx, "redis-key"))
	assert.Equal(t, 1, lookup.calls, "second hit is served from the local cache")

	assert.False(t, a.Validate(ctx, "unknown"))
	assert.False(t, a.Validate(ctx, ""))
}

func TestValidateCacheExpires(t *testing.T) {
	lookup := &countingLookup{owners: map[string]string{"k": "owner"}}
	a := NewAuthenticator(nil, time.Minute, lookup)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	assert.True(t, a.Validate(context.Background(), "k"))
	now = now.Add(2 * time.Minute)
	delete(lookup.owners, "k")

	assert.False(t, a.Validate(context.Background(), "k"))
	assert.Equal(t, 2, lookup.calls)
}

func TestValidateLookupError(t *testing.T) {
	a := NewAuthenticator(nil, time.Minute, &countingLookup{err: errors.New("redis down")})

	assert.False(t, a.Validate(context.Background(), "k"))
}

func TestValidateWithoutLookup(t *testing.T) {
	a := NewAuthenticator([]string{"s"}, time.Minute, nil)

	assert.True(t, a.Validate(context.Background(), "s"))
	assert.False(t, a.Validate(context.Background(), "other"))
}
