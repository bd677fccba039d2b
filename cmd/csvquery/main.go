// Command csvquery queries a CSV file, using on-disk indexes when present
// and falling back to a full scan otherwise, and appends rows to a CSV
// file under an advisory lock.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dw/csvninja/internal/csvcore"
	"github.com/dw/csvninja/internal/query"
	"github.com/dw/csvninja/internal/writer"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "query":
		runQuery(os.Args[2:])
	case "write":
		runWrite(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`csvquery - query and append to indexed CSV files

Usage:
    csvquery <command> [arguments]

Commands:
    query    Query a CSV file (using indexes if available)
    write    Append rows to a CSV file
    help     Show this help

Use "csvquery <command> -h" for command-specific options.`)
}

func runQuery(args []string) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)

	csvPath := fs.String("csv", "", "Path to CSV file")
	indexDir := fs.String("index-dir", "", "Directory containing index files (default: CSV's directory)")
	separator := fs.String("separator", ",", "CSV field separator")
	whereJSON := fs.String("where", "{}", "JSON object of conditions")
	limit := fs.Int("limit", 0, "Maximum results (0 = no limit)")
	offset := fs.Int("offset", 0, "Skip first N results")
	countOnly := fs.Bool("count", false, "Only output the row count")
	explain := fs.Bool("explain", false, "Print the query plan instead of executing")
	groupBy := fs.String("group-by", "", "Column to group by")
	aggCol := fs.String("agg-col", "", "Column to aggregate")
	aggFunc := fs.String("agg-func", "", "Aggregation function: count, sum, avg, min, max")
	verbose := fs.Bool("verbose", false, "Verbose logging")
	debugHeaders := fs.Bool("debug-headers", false, "Print raw header detection")

	_ = fs.Parse(args)

	if *indexDir == "" && *csvPath != "" {
		*indexDir = filepath.Dir(*csvPath)
	}
	if *indexDir == "" {
		fmt.Fprintln(os.Stderr, "Error: -index-dir or -csv is required")
		fs.PrintDefaults()
		os.Exit(1)
	}

	cond, err := query.ParseCondition([]byte(*whereJSON))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing -where JSON: %v\n", err)
		os.Exit(1)
	}

	if len(*separator) != 1 {
		fmt.Fprintf(os.Stderr, "Error: -separator must be a single byte, got %q\n", *separator)
		os.Exit(1)
	}

	engine := query.NewQueryEngine(query.QueryConfig{
		CsvPath:      *csvPath,
		IndexDir:     *indexDir,
		Dialect:      csvcore.ReaderConfig{Delimiter: (*separator)[0]},
		Where:        cond,
		Limit:        *limit,
		Offset:       *offset,
		CountOnly:    *countOnly,
		Explain:      *explain,
		GroupBy:      *groupBy,
		AggCol:       *aggCol,
		AggFunc:      *aggFunc,
		Verbose:      *verbose,
		DebugHeaders: *debugHeaders,
	})

	if err := engine.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runWrite(args []string) {
	fs := flag.NewFlagSet("write", flag.ExitOnError)

	csvPath := fs.String("csv", "", "Path to CSV file")
	headersJSON := fs.String("headers", "[]", "JSON array of headers (used only when creating a new file)")
	dataJSON := fs.String("data", "[]", "JSON array of rows, each row a JSON array of strings")
	separator := fs.String("separator", ",", "CSV field separator")

	_ = fs.Parse(args)

	if *csvPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -csv is required")
		os.Exit(1)
	}

	var headers []string
	if err := json.Unmarshal([]byte(*headersJSON), &headers); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing -headers JSON: %v\n", err)
		os.Exit(1)
	}
	var data [][]string
	if err := json.Unmarshal([]byte(*dataJSON), &data); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing -data JSON: %v\n", err)
		os.Exit(1)
	}

	w := writer.NewCsvWriter(writer.WriterConfig{
		CsvPath:   *csvPath,
		Separator: *separator,
	})
	if err := w.Write(headers, data); err != nil {
		fmt.Fprintf(os.Stderr, "Write error: %v\n", err)
		os.Exit(1)
	}
}
