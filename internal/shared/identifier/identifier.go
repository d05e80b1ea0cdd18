// Package identifier generates order numbers, slugs and entity identifiers.
package identifier

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Apurer/commerce-engine/internal/shared/errkind"
)

const (
	orderNumberPrefix = "ORD"
	suffixLength      = 6
	base36Alphabet    = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	// DefaultSlugAttempts bounds the numbered suffixes tried before falling back to a timestamp.
	DefaultSlugAttempts = 10
	// DefaultIDAttempts bounds regeneration after a uniqueness violation.
	DefaultIDAttempts = 3
)

// ErrIdGenerationFailed is returned once every regeneration attempt collided.
var ErrIdGenerationFailed = errkind.New(errkind.IdGenerationFailed, "identifier generation failed")

var (
	nonSlugChars  = regexp.MustCompile(`[^\w\s-]`)
	slugSeparator = regexp.MustCompile(`[\s_-]+`)
	edgeHyphens   = regexp.MustCompile(`^-+|-+$`)
)

// Generator produces human-readable identifiers. The zero value is not usable; call NewGenerator.
type Generator struct {
	now    func() time.Time
	random io.Reader
}

// Option customises a Generator.
type Option func(*Generator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// WithRandom overrides the entropy source used for suffixes.
func WithRandom(r io.Reader) Option {
	return func(g *Generator) {
		if r != nil {
			g.random = r
		}
	}
}

// NewGenerator builds a Generator backed by the wall clock and crypto/rand.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{now: time.Now, random: rand.Reader}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// OrderNumber returns ORD-<base36 millis>-<6 random base36 chars>, uppercase.
func (g *Generator) OrderNumber() (string, error) {
	stamp := strings.ToUpper(strconv.FormatInt(g.now().UnixMilli(), 36))
	suffix, err := g.randomSuffix(suffixLength)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%s", orderNumberPrefix, stamp, suffix), nil
}

func (g *Generator) randomSuffix(n int) (string, error) {
	var b strings.Builder
	b.Grow(n)
	limit := big.NewInt(int64(len(base36Alphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(g.random, limit)
		if err != nil {
			return "", fmt.Errorf("read random suffix: %w", err)
		}
		b.WriteByte(base36Alphabet[idx.Int64()])
	}
	return b.String(), nil
}

// UniqueSlug returns base when free, otherwise base-1 .. base-maxAttempts, and finally
// base-<unix millis> when every numbered candidate collided.
func (g *Generator) UniqueSlug(ctx context.Context, base string, exists func(context.Context, string) (bool, error), maxAttempts int) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultSlugAttempts
	}
	candidate := base
	for attempt := 0; attempt <= maxAttempts; attempt++ {
		if attempt > 0 {
			candidate = fmt.Sprintf("%s-%d", base, attempt)
		}
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return fmt.Sprintf("%s-%d", base, g.now().UnixMilli()), nil
}

// Slugify lowercases text and reduces it to word characters separated by single hyphens.
func Slugify(text string) string {
	slug := strings.TrimSpace(strings.ToLower(text))
	slug = nonSlugChars.ReplaceAllString(slug, "")
	slug = slugSeparator.ReplaceAllString(slug, "-")
	return edgeHyphens.ReplaceAllString(slug, "")
}

// NewID returns prefix followed by a fresh ULID.
func NewID(prefix string) string {
	return prefix + ulid.Make().String()
}

// RetryOnCollision calls fn up to attempts times while it reports a collision.
// Any other error is returned immediately.
func RetryOnCollision(attempts int, isCollision func(error) bool, fn func(attempt int) error) error {
	if attempts <= 0 {
		attempts = DefaultIDAttempts
	}
	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		if !isCollision(err) {
			return err
		}
		last = err
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrIdGenerationFailed, attempts, last)
}
