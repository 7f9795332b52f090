package codegen

import (
	"context"
	"errors"
	"strings"
	"testing"

	"vouchers/internal/codeset"
	"vouchers/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapChecker map[string]bool

func (m mapChecker) CodeExists(ctx context.Context, code string) (bool, error) {
	return m[code], nil
}

type errChecker struct{ err error }

func (e errChecker) CodeExists(ctx context.Context, code string) (bool, error) {
	return false, e.err
}

// sequenceGenerator returns the given codes in order.
type sequenceGenerator struct {
	codes []string
	next  int
}

func (s *sequenceGenerator) Generate() (string, error) {
	code := s.codes[s.next%len(s.codes)]
	s.next++
	return code, nil
}

func TestNewGenerator_InvalidConfig(t *testing.T) {
	_, err := NewGenerator(Config{Alphabet: "A", Length: 8})
	assert.Error(t, err)

	_, err = NewGenerator(Config{Alphabet: "AB", Length: 0})
	assert.Error(t, err)
}

func TestRandomGenerator_Shape(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		prefix string
		suffix string
		length int
	}{
		{
			name:   "Body only",
			cfg:    Config{Alphabet: "ABC", Length: 6, Separator: "-"},
			length: 6,
		},
		{
			name:   "Prefix and suffix",
			cfg:    Config{Alphabet: "XYZ", Length: 4, Prefix: "PROMO", Suffix: "2024", Separator: "-"},
			prefix: "PROMO-",
			suffix: "-2024",
			length: 4,
		},
		{
			name:   "No separator",
			cfg:    Config{Alphabet: "01", Length: 10, Prefix: "V"},
			prefix: "V",
			length: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen, err := NewGenerator(tt.cfg)
			require.NoError(t, err)

			code, err := gen.Generate()
			require.NoError(t, err)

			assert.True(t, strings.HasPrefix(code, tt.prefix))
			assert.True(t, strings.HasSuffix(code, tt.suffix))

			body := strings.TrimSuffix(strings.TrimPrefix(code, tt.prefix), tt.suffix)
			assert.Len(t, body, tt.length)
			for _, r := range body {
				assert.Contains(t, tt.cfg.Alphabet, string(r))
			}
		})
	}
}

func TestUniqueGenerator_GenerateN_Distinct(t *testing.T) {
	gen, err := NewGenerator(DefaultConfig())
	require.NoError(t, err)

	u := NewUniqueGenerator(gen, mapChecker{}, 5, zerolog.Nop())

	codes, err := u.GenerateN(context.Background(), 500)
	require.NoError(t, err)
	require.Len(t, codes, 500)

	seen := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		seen[c] = struct{}{}
	}
	assert.Len(t, seen, 500)
}

func TestUniqueGenerator_SkipsStoredAndReserved(t *testing.T) {
	collisions := 0
	gen := &sequenceGenerator{codes: []string{"STORED", "RESERVED", "FRESH"}}
	u := NewUniqueGenerator(gen, mapChecker{"STORED": true}, 5, zerolog.Nop(),
		WithReserved(codeset.New("RESERVED")),
		WithCollisionHook(func() { collisions++ }),
	)

	code, err := u.GenerateUnique(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "FRESH", code)
	assert.Equal(t, 2, collisions)
}

func TestUniqueGenerator_BatchDistinct(t *testing.T) {
	gen := &sequenceGenerator{codes: []string{"A", "A", "B"}}
	u := NewUniqueGenerator(gen, mapChecker{}, 3, zerolog.Nop())

	codes, err := u.GenerateN(context.Background(), 2)

	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, codes)
}

func TestUniqueGenerator_Exhausted(t *testing.T) {
	gen := &sequenceGenerator{codes: []string{"TAKEN"}}
	u := NewUniqueGenerator(gen, mapChecker{"TAKEN": true}, 4, zerolog.Nop())

	_, err := u.GenerateUnique(context.Background())

	assert.ErrorIs(t, err, model.ErrGenerationExhausted)
	assert.Equal(t, 4, gen.next)
}

func TestUniqueGenerator_StoreError(t *testing.T) {
	gen := &sequenceGenerator{codes: []string{"X"}}
	u := NewUniqueGenerator(gen, errChecker{err: errors.New("db down")}, 4, zerolog.Nop())

	_, err := u.GenerateUnique(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to check code uniqueness")
	assert.NotErrorIs(t, err, model.ErrGenerationExhausted)
}

func TestUniqueGenerator_Cancelled(t *testing.T) {
	gen := &sequenceGenerator{codes: []string{"X"}}
	u := NewUniqueGenerator(gen, mapChecker{}, 4, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := u.GenerateUnique(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
