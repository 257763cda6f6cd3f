// Command assetpipe-inspect scans a directory or packed archive and prints
// a summary of what the asset pipeline would register from it: file
// count, per-type breakdown, and total size.
//
// It is the Go counterpart of the teacher's cmd/arena-cache-inspect, kept
// in the same "flags in, human-readable or JSON dump out" shape but
// retargeted from polling a running process's /debug/arena-cache/snapshot
// endpoint to statically inspecting asset storage groups on disk, since
// this pipeline has no long-running service of its own to poll.
//
// © 2025 assetpipe authors. MIT License.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/tatwood-go/assetpipe/asset"
	"github.com/tatwood-go/assetpipe/storagegroup/dirgroup"
	"github.com/tatwood-go/assetpipe/storagegroup/packgroup"
)

type summary struct {
	Name       string         `json:"name"`
	TotalFiles int            `json:"total_files"`
	TotalBytes int64          `json:"total_bytes"`
	ByType     map[string]int `json:"by_type"`
}

func main() {
	var (
		dir     = flag.String("dir", "", "inspect a loose-file directory group")
		archive = flag.String("archive", "", "inspect a packed archive (see storagegroup/packgroup)")
		name    = flag.String("name", "inspected", "storage group name to assign")
		asJSON  = flag.Bool("json", false, "print the summary as JSON instead of text")
	)
	flag.Parse()

	if (*dir == "") == (*archive == "") {
		fatal(fmt.Errorf("exactly one of -dir or -archive must be set"))
	}

	var group *asset.StorageGroup
	if *dir != "" {
		st := dirgroup.New(4)
		g, err := st.Scan(*name, *dir)
		if err != nil {
			fatal(err)
		}
		group = g
	} else {
		st, err := packgroup.Open(*name, *archive, "")
		if err != nil {
			fatal(err)
		}
		defer st.Close()
		group = st.Group()
	}

	snap := summarize(group)
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			fatal(err)
		}
		return
	}
	printSummary(snap)
}

func summarize(group *asset.StorageGroup) summary {
	snap := summary{Name: group.Name, TotalFiles: len(group.Files), ByType: map[string]int{}}
	for _, f := range group.Files {
		snap.TotalBytes += f.Size
		snap.ByType[extensionLabel(f)]++
	}
	return snap
}

func extensionLabel(f asset.FileDescriptor) string {
	// The registry only ever sees TypeKey, not the original extension
	// string, so the label here is the hash itself rather than a name a
	// human would recognize without re-deriving keys.TypeKeyOf.
	return fmt.Sprintf("typekey:%08x", uint32(f.TypeKey))
}

func printSummary(snap summary) {
	fmt.Printf("Group:       %s\n", snap.Name)
	fmt.Printf("Files:       %d\n", snap.TotalFiles)
	fmt.Printf("Total size:  %s\n", humanize.Bytes(uint64(snap.TotalBytes)))
	types := make([]string, 0, len(snap.ByType))
	for t := range snap.ByType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Printf("  %-18s %d\n", t, snap.ByType[t])
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "assetpipe-inspect:", err)
	os.Exit(1)
}

