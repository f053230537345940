// Command ntfsdebug is a minimal flag-based probe that opens an NTFS volume
// image, prints its geometry, and lists the root directory. Mirrors the
// teacher's cmd/debugudf/main.go.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/s0up4200/ntfsgo/internal/blockio"
	"github.com/s0up4200/ntfsgo/pkg/ntfs"
)

func main() {
	image := flag.String("image", "", "path to NTFS volume image")
	flag.Parse()
	if *image == "" {
		log.Fatal("-image required")
	}

	r, err := blockio.OpenFile(*image)
	if err != nil {
		log.Fatalf("OpenFile: %v", err)
	}
	defer r.Close()

	vol, err := ntfs.Open(r)
	if err != nil {
		log.Fatalf("Open: %v", err)
	}

	g := vol.Inner().Geometry()
	fmt.Printf("bytesPerSector=%d sectorsPerCluster=%d clusterSize=%d recordSize=%d indexRecordSize=%d mftLCN=%d serial=%#x\n",
		g.BytesPerSector, g.SectorsPerCluster, g.ClusterSize, g.RecordSize, g.IndexRecordSize, g.MFTLCN, g.SerialNumber)

	root, err := vol.RootDirectory()
	if err != nil {
		fmt.Printf("RootDirectory err: %v\n", err)
		return
	}

	idx, err := root.Inner().DirectoryIndex()
	if err != nil {
		fmt.Printf("DirectoryIndex err: %v\n", err)
		return
	}
	idx.Reset()
	count := 0
	for {
		entry, err := idx.Next()
		if err != nil {
			fmt.Printf("index Next err: %v\n", err)
			return
		}
		if entry == nil {
			break
		}
		child, err := vol.Inner().OpenFile(entry.Reference)
		if err != nil {
			fmt.Printf("- <open err: %v>\n", err)
			continue
		}
		name, err := ntfs.FromCore(vol, child).Name()
		if err != nil {
			continue
		}
		fmt.Printf("- %q dir=%v\n", name, child.IsDirectory())
		count++
		if count >= 32 {
			fmt.Println("...")
			break
		}
	}
}
