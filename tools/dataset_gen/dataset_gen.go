// Command dataset_gen generates a directory of deterministic, synthetic
// asset files for benchmarking the storage scheduler, dirgroup/packgroup
// backends, and client adapter outside of `go test` — the asset-pipeline
// counterpart of the teacher's tools/dataset_gen, which emitted a flat
// list of uint64 cache keys. This pipeline's workload unit is a file, not
// a bare key, so the generator instead writes out N files of a requested
// size distribution under a target directory, ready to be scanned by
// storagegroup/dirgroup or packed by storagegroup/packgroup.
//
// Usage:
//
//	go run ./tools/dataset_gen -n 10000 -minsize 256 -maxsize 65536 -seed 42 -out ./dataset
//
// © 2025 assetpipe authors. MIT License.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

func main() {
	var (
		n       = flag.Int("n", 1000, "number of files to generate")
		minSize = flag.Int("minsize", 64, "minimum file size in bytes")
		maxSize = flag.Int("maxsize", 4096, "maximum file size in bytes")
		ext     = flag.String("ext", "bin", "file extension to use for every generated file")
		seed    = flag.Int64("seed", 42, "PRNG seed, for reproducible datasets")
		out     = flag.String("out", "./dataset", "output directory")
	)
	flag.Parse()

	if *minSize <= 0 || *maxSize < *minSize {
		fmt.Fprintln(os.Stderr, "dataset_gen: maxsize must be >= minsize > 0")
		os.Exit(1)
	}

	if err := os.MkdirAll(*out, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "dataset_gen: mkdir:", err)
		os.Exit(1)
	}

	rnd := rand.New(rand.NewSource(*seed))
	spread := *maxSize - *minSize + 1
	for i := 0; i < *n; i++ {
		size := *minSize
		if spread > 1 {
			size += rnd.Intn(spread)
		}
		data := make([]byte, size)
		rnd.Read(data)

		name := fmt.Sprintf("asset_%06d.%s", i, *ext)
		if err := os.WriteFile(filepath.Join(*out, name), data, 0o644); err != nil {
			fmt.Fprintln(os.Stderr, "dataset_gen: write:", err)
			os.Exit(1)
		}
	}
	fmt.Printf("wrote %d files to %s\n", *n, *out)
}
