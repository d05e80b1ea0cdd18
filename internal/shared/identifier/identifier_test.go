package identifier

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderNumberPattern = regexp.MustCompile(`^ORD-[0-9A-Z]+-[0-9A-Z]{6}$`)

func TestOrderNumber_Format(t *testing.T) {
	fixed := time.UnixMilli(1_700_000_000_000)
	g := NewGenerator(WithClock(func() time.Time { return fixed }))

	number, err := g.OrderNumber()
	require.NoError(t, err)
	assert.Regexp(t, orderNumberPattern, number)

	stamp := strings.ToUpper(strconv.FormatInt(fixed.UnixMilli(), 36))
	assert.True(t, strings.HasPrefix(number, "ORD-"+stamp+"-"))
}

func TestOrderNumber_Unique(t *testing.T) {
	g := NewGenerator()
	seen := make(map[string]struct{}, 2000)
	for i := 0; i < 2000; i++ {
		n, err := g.OrderNumber()
		require.NoError(t, err)
		_, dup := seen[n]
		require.False(t, dup, "duplicate order number %s", n)
		seen[n] = struct{}{}
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"  Hello World  ":        "hello-world",
		"Café & Bar!":            "caf-bar",
		"snake_case and  spaces": "snake-case-and-spaces",
		"--already-hyphenated--": "already-hyphenated",
		"Multi -- _ separators":  "multi-separators",
		"Go 1.24 Release Notes":  "go-124-release-notes",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestUniqueSlug(t *testing.T) {
	g := NewGenerator()
	taken := map[string]bool{"shoe": true, "shoe-1": true}
	exists := func(_ context.Context, s string) (bool, error) { return taken[s], nil }

	slug, err := g.UniqueSlug(context.Background(), "shoe", exists, 10)
	require.NoError(t, err)
	assert.Equal(t, "shoe-2", slug)

	slug, err = g.UniqueSlug(context.Background(), "boot", exists, 10)
	require.NoError(t, err)
	assert.Equal(t, "boot", slug)
}

func TestUniqueSlug_FallsBackToTimestamp(t *testing.T) {
	fixed := time.UnixMilli(42)
	g := NewGenerator(WithClock(func() time.Time { return fixed }))
	always := func(context.Context, string) (bool, error) { return true, nil }

	slug, err := g.UniqueSlug(context.Background(), "hat", always, 3)
	require.NoError(t, err)
	assert.Equal(t, "hat-42", slug)
}

func TestUniqueSlug_PropagatesLookupError(t *testing.T) {
	boom := errors.New("db down")
	_, err := NewGenerator().UniqueSlug(context.Background(), "x", func(context.Context, string) (bool, error) {
		return false, boom
	}, 3)
	require.ErrorIs(t, err, boom)
}

func TestRetryOnCollision(t *testing.T) {
	collision := errors.New("collision")
	isCollision := func(err error) bool { return errors.Is(err, collision) }

	calls := 0
	err := RetryOnCollision(3, isCollision, func(int) error {
		calls++
		if calls < 3 {
			return collision
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = RetryOnCollision(3, isCollision, func(int) error {
		calls++
		return collision
	})
	require.ErrorIs(t, err, ErrIdGenerationFailed)
	assert.Equal(t, 3, calls)

	other := errors.New("other")
	err = RetryOnCollision(3, isCollision, func(int) error { return other })
	require.ErrorIs(t, err, other)
	require.NotErrorIs(t, err, ErrIdGenerationFailed)
}

func TestNewID(t *testing.T) {
	id := NewID("ord_")
	assert.True(t, strings.HasPrefix(id, "ord_"))
	assert.Len(t, id, len("ord_")+26)
	assert.NotEqual(t, id, NewID("ord_"))
}
