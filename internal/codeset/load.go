package codeset

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// LoadAll loads every path concurrently and returns their union.
// No paths yields an empty set.
func LoadAll(ctx context.Context, loader Loader, paths []string, logger zerolog.Logger) (CodeSet, error) {
	if len(paths) == 0 {
		return Empty(), nil
	}

	sets := make([]CodeSet, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			set, err := loader.Load(gctx, path)
			if err != nil {
				return fmt.Errorf("failed to load reserved codes %s: %w", path, err)
			}
			sets[i] = set
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	union := Union(sets...)

	logger.Info().
		Int("file_count", len(paths)).
		Int("reserved_codes", union.Size()).
		Msg("reserved codes loaded")

	return union, nil
}
