package codeset

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"strings"
)

const cancelCheckEvery = 100_000

// readGzipCodes reads one code per line from a gzip stream, skipping blank lines.
func readGzipCodes(ctx context.Context, r io.Reader) (*mapSet, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	set := newMapSet(1024)

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lines := 0
	for scanner.Scan() {
		if lines%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		lines++

		if code := strings.TrimSpace(scanner.Text()); code != "" {
			set.add(code)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read codes: %w", err)
	}

	return set, nil
}
