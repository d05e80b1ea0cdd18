package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/commerce-engine/internal/domains/orders/ports"
)

func TestIdempotencyStore_FirstClaimWins(t *testing.T) {
	ctx := context.Background()
	store := NewIdempotencyStore()
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	store.WithClock(func() time.Time { return fixed })

	missing, err := store.Get(ctx, "checkout-42")
	require.NoError(t, err)
	assert.Nil(t, missing)

	first, err := store.Claim(ctx, ports.IdempotencyRecord{Key: "checkout-42", RequestHash: "hash-a", OrderID: "ord-1"})
	require.NoError(t, err)
	assert.Equal(t, fixed, first.CreatedAt)

	again, err := store.Claim(ctx, ports.IdempotencyRecord{Key: "checkout-42", RequestHash: "hash-a", OrderID: "ord-2"})
	require.NoError(t, err)
	assert.Equal(t, "ord-1", again.OrderID)

	conflict, err := store.Claim(ctx, ports.IdempotencyRecord{Key: "checkout-42", RequestHash: "hash-b", OrderID: "ord-3"})
	require.ErrorIs(t, err, ports.ErrIdempotencyConflict)
	assert.Equal(t, "ord-1", conflict.OrderID)

	stored, err := store.Get(ctx, "checkout-42")
	require.NoError(t, err)
	assert.Equal(t, "hash-a", stored.RequestHash)
}
