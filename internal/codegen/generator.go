// Package codegen produces voucher codes and resolves collisions against the store.
package codegen

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"vouchers/internal/codeset"
	"vouchers/internal/model"

	"github.com/rs/zerolog"
)

// Generator produces candidate codes.
type Generator interface {
	Generate() (string, error)
}

// Config describes the shape of generated codes.
type Config struct {
	Alphabet  string
	Length    int
	Prefix    string
	Suffix    string
	Separator string
}

// DefaultConfig returns an 8 character code from an alphabet without
// easily confused characters (0/O, 1/I).
func DefaultConfig() Config {
	return Config{
		Alphabet:  "ABCDEFGHJKLMNPQRSTUVWXYZ23456789",
		Length:    8,
		Separator: "-",
	}
}

// randomGenerator draws each character uniformly from the alphabet.
type randomGenerator struct {
	alphabet []rune
	max      *big.Int
	cfg      Config
}

// NewGenerator creates a random code generator.
func NewGenerator(cfg Config) (Generator, error) {
	alphabet := []rune(cfg.Alphabet)
	if len(alphabet) < 2 {
		return nil, fmt.Errorf("code alphabet must contain at least 2 characters")
	}
	if cfg.Length < 1 {
		return nil, fmt.Errorf("code length must be at least 1")
	}

	return &randomGenerator{
		alphabet: alphabet,
		max:      big.NewInt(int64(len(alphabet))),
		cfg:      cfg,
	}, nil
}

// Generate returns prefix + separator + random body + separator + suffix,
// omitting empty parts.
func (g *randomGenerator) Generate() (string, error) {
	body := make([]rune, g.cfg.Length)
	for i := range body {
		n, err := rand.Int(rand.Reader, g.max)
		if err != nil {
			return "", fmt.Errorf("failed to read random source: %w", err)
		}
		body[i] = g.alphabet[n.Int64()]
	}

	parts := make([]string, 0, 3)
	if g.cfg.Prefix != "" {
		parts = append(parts, g.cfg.Prefix)
	}
	parts = append(parts, string(body))
	if g.cfg.Suffix != "" {
		parts = append(parts, g.cfg.Suffix)
	}

	return strings.Join(parts, g.cfg.Separator), nil
}

// CodeChecker reports whether a code is already used.
type CodeChecker interface {
	CodeExists(ctx context.Context, code string) (bool, error)
}

// UniqueGenerator produces codes that are neither reserved nor stored.
type UniqueGenerator struct {
	gen         Generator
	store       CodeChecker
	reserved    codeset.CodeSet
	maxAttempts int
	onCollision func()
	logger      zerolog.Logger
}

// Option configures a UniqueGenerator.
type Option func(*UniqueGenerator)

// WithReserved excludes the codes in set from generation.
func WithReserved(set codeset.CodeSet) Option {
	return func(u *UniqueGenerator) {
		if set != nil {
			u.reserved = set
		}
	}
}

// WithCollisionHook calls fn for every rejected candidate.
func WithCollisionHook(fn func()) Option {
	return func(u *UniqueGenerator) { u.onCollision = fn }
}

// NewUniqueGenerator creates a UniqueGenerator. maxAttempts bounds the number
// of candidates tried per code.
func NewUniqueGenerator(gen Generator, store CodeChecker, maxAttempts int, logger zerolog.Logger, opts ...Option) *UniqueGenerator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	u := &UniqueGenerator{
		gen:         gen,
		store:       store,
		reserved:    codeset.Empty(),
		maxAttempts: maxAttempts,
		onCollision: func() {},
		logger:      logger.With().Str("component", "code-generator").Logger(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// GenerateUnique returns a code not present in the store.
// It returns model.ErrGenerationExhausted after maxAttempts collisions.
func (u *UniqueGenerator) GenerateUnique(ctx context.Context) (string, error) {
	return u.generate(ctx, nil)
}

// GenerateN returns n unused codes, pairwise distinct.
func (u *UniqueGenerator) GenerateN(ctx context.Context, n int) ([]string, error) {
	codes := make([]string, 0, n)
	seen := make(map[string]struct{}, n)

	for i := 0; i < n; i++ {
		code, err := u.generate(ctx, seen)
		if err != nil {
			return nil, err
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}

	return codes, nil
}

func (u *UniqueGenerator) generate(ctx context.Context, taken map[string]struct{}) (string, error) {
	for attempt := 1; attempt <= u.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		code, err := u.gen.Generate()
		if err != nil {
			return "", err
		}

		if _, dup := taken[code]; dup || u.reserved.Contains(code) {
			u.onCollision()
			continue
		}

		exists, err := u.store.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check code uniqueness: %w", err)
		}
		if !exists {
			return code, nil
		}

		u.onCollision()
		u.logger.Debug().Int("attempt", attempt).Msg("generated code already in use")
	}

	u.logger.Error().Int("max_attempts", u.maxAttempts).Msg("code space exhausted")

	return "", model.ErrGenerationExhausted
}
