// Test program for the METS reader
//
// Usage:
//
//	go run ./cmd/test/mets_reader/main.go <mets-file> [indexed-type] [ruleset-file]
//
// This program tests the following functionality:
// - Reading a METS file with the permissive or a given ruleset
// - Printing the logical structure with the page range of each element
// - Counting physical pages and their image files
// - Building the page range index for one structure type (default: PdfChapter)
package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/yuanying/bits2mets/internal/converter"
	"github.com/yuanying/bits2mets/internal/mets"
	"github.com/yuanying/bits2mets/internal/processlog"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./cmd/test/mets_reader/main.go <mets-file> [indexed-type] [ruleset-file]")
		os.Exit(1)
	}

	indexed := "PdfChapter"
	if len(os.Args) > 2 {
		indexed = os.Args[2]
	}

	rs := mets.DefaultRuleset()
	if len(os.Args) > 3 {
		var err error
		rs, err = mets.LoadRuleset(os.Args[3])
		if err != nil {
			log.Fatalf("Failed to load ruleset: %v", err)
		}
	}

	fmt.Printf("Opening METS file: %s\n", os.Args[1])
	doc, err := mets.ReadFile(os.Args[1], rs)
	if err != nil {
		log.Fatalf("Failed to read METS: %v", err)
	}
	fmt.Printf("✓ METS read successfully\n")
	fmt.Printf("OBJID: %s\n\n", doc.ObjID)

	fmt.Println("Logical structure:")
	printNode(doc.Logical(), 1)

	pages, files := 0, 0
	doc.Physical().Walk(func(ds *mets.DocStruct) {
		if len(ds.MetadataByType(mets.PhysPageNumber)) > 0 {
			pages++
		}
		files += len(ds.ContentFiles())
	})
	fmt.Printf("\nPhysical pages: %d (%d files)\n", pages, files)

	idx := converter.BuildIndex(doc.Logical(), indexed, processlog.Discard)
	fmt.Printf("Indexed %s elements: %d\n", indexed, idx.Len())
}

func printNode(ds *mets.DocStruct, depth int) {
	indent := strings.Repeat("  ", depth)
	title := ""
	if mds := ds.MetadataByType("TitleDocMain"); len(mds) > 0 {
		title = mds[0].Value
	}
	fmt.Printf("%s- %s %q%s\n", indent, ds.TypeName(), title, pageRange(ds))
	for _, c := range ds.Children() {
		printNode(c, depth+1)
	}
}

func pageRange(ds *mets.DocStruct) string {
	first, last := 0, 0
	for _, ref := range ds.References() {
		for _, md := range ref.MetadataByType(mets.PhysPageNumber) {
			var n int
			if _, err := fmt.Sscanf(md.Value, "%d", &n); err != nil {
				continue
			}
			if first == 0 || n < first {
				first = n
			}
			if n > last {
				last = n
			}
		}
	}
	if first == 0 {
		return ""
	}
	return fmt.Sprintf(" pages %d-%d", first, last)
}
