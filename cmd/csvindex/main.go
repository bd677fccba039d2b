// Command csvindex builds column indexes (.cidx, .bloom, metadata) from a
// CSV file for fast point and range lookups.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/dw/csvninja/internal/csvcore"
	"github.com/dw/csvninja/internal/indexer"
)

func main() {
	input := flag.String("input", "", "Input CSV file path (required)")
	output := flag.String("output", "", "Output directory for indexes (default: input's directory)")
	columns := flag.String("columns", "[]", "JSON array of columns to index, e.g. [\"id\",[\"state\",\"city\"]]")
	separator := flag.String("separator", ",", "CSV field separator")
	quote := flag.String("quote", "\"", "CSV quoting byte")
	escape := flag.String("escape", "", "CSV escape byte (empty for none)")
	workers := flag.Int("workers", runtime.NumCPU(), "Number of parallel scan workers")
	memoryMB := flag.Int("memory", 500, "Sort-buffer budget in MB, split across indexes")
	bloomFP := flag.Float64("bloom", 0.01, "Bloom filter false-positive rate (0 disables)")
	verbose := flag.Bool("verbose", false, "Print live progress")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "Error: -input is required")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if *output == "" {
		*output = filepath.Dir(*input)
	}

	dialect, err := dialectFromFlags(*separator, *quote, *escape)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	idx := indexer.NewIndexer(indexer.IndexerConfig{
		InputFile:   *input,
		OutputDir:   *output,
		Columns:     *columns,
		Dialect:     dialect,
		Workers:     *workers,
		MemoryMB:    *memoryMB,
		BloomFPRate: *bloomFP,
		Verbose:     *verbose,
	})

	if err := idx.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// dialectFromFlags turns the single-byte flag strings into a parser
// configuration, rejecting multi-byte values outright rather than
// silently using their first byte.
func dialectFromFlags(separator, quote, escape string) (csvcore.ReaderConfig, error) {
	var d csvcore.ReaderConfig
	if len(separator) != 1 {
		return d, fmt.Errorf("-separator must be a single byte, got %q", separator)
	}
	d.Delimiter = separator[0]
	if len(quote) > 1 {
		return d, fmt.Errorf("-quote must be a single byte, got %q", quote)
	}
	if quote != "" {
		d.Quote = quote[0]
	}
	if len(escape) > 1 {
		return d, fmt.Errorf("-escape must be a single byte, got %q", escape)
	}
	if escape != "" {
		d.Escape = escape[0]
	}
	return d, nil
}
