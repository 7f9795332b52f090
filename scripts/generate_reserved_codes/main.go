package main

import (
	"compress/gzip"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"vouchers/internal/codegen"
)

// Writes a gzipped reserved code file, one code per line, in the format
// read by VOUCHER_RESERVED_FILES. Codes listed there are never handed out.
func main() {
	out := flag.String("out", "data/reserved/reserved1.gz", "output file")
	count := flag.Int("n", 100, "number of codes")
	prefix := flag.String("prefix", "", "code prefix")
	flag.Parse()

	cfg := codegen.DefaultConfig()
	cfg.Prefix = *prefix

	gen, err := codegen.NewGenerator(cfg)
	if err != nil {
		log.Fatalf("Failed to create generator: %v", err)
	}

	codes := make(map[string]struct{}, *count)
	for len(codes) < *count {
		code, err := gen.Generate()
		if err != nil {
			log.Fatalf("Failed to generate code: %v", err)
		}
		codes[code] = struct{}{}
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0755); err != nil {
		log.Fatalf("Failed to create directory: %v", err)
	}

	if err := writeCodeFile(*out, codes); err != nil {
		log.Fatalf("Failed to create %s: %v", *out, err)
	}

	fmt.Printf("Created %s with %d codes\n", *out, len(codes))
}

func writeCodeFile(filePath string, codes map[string]struct{}) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	defer gzipWriter.Close()

	for code := range codes {
		if _, err := fmt.Fprintf(gzipWriter, "%s\n", code); err != nil {
			return fmt.Errorf("failed to write code: %w", err)
		}
	}

	return nil
}
