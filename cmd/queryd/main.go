// Command queryd runs a Unix-domain-socket daemon serving count/select/
// groupby queries against a resident, mmap-backed CSV file.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dw/csvninja/internal/server"
)

func main() {
	socket := flag.String("socket", "/tmp/csvquery.sock", "Unix socket path")
	csvPath := flag.String("csv", "", "Path to CSV file (required)")
	indexDir := flag.String("index-dir", "", "Directory containing index files (default: CSV's directory)")
	workers := flag.Int("workers", 50, "Max concurrent connections")
	flag.Parse()

	if *csvPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -csv is required")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if *indexDir == "" {
		*indexDir = filepath.Dir(*csvPath)
	}

	if err := server.RunDaemon(*socket, *csvPath, *indexDir, *workers); err != nil {
		fmt.Fprintf(os.Stderr, "Daemon error: %v\n", err)
		os.Exit(1)
	}
}
