// Test program for BITS metadata extraction
//
// Usage:
//   go run ./cmd/test/bits_reader/main.go <config-file> <xml-file>
//
// Example:
//   go run ./cmd/test/bits_reader/main.go ./bits2mets.yaml ~/process/source/book.xml
//
// This program will:
// - Load the configuration and compile its XPath expressions
// - Parse the XML file
// - Display the publication metadata and persons
// - List every extracted book part with its page range
// - Show how many candidates were skipped and why

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/yuanying/bits2mets/internal/bits"
	"github.com/yuanying/bits2mets/internal/config"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s <config-file> <xml-file>\n", os.Args[0])
		os.Exit(1)
	}

	cfgPath, xmlPath := os.Args[1], os.Args[2]

	fmt.Println("=== BITS Reader Test ===")
	fmt.Printf("Config: %s\n", cfgPath)
	fmt.Printf("File:   %s\n\n", xmlPath)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	rules, err := cfg.Rules()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error compiling rules: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Rules compiled successfully")
	fmt.Printf("Book part path: %s\n\n", rules.BookPart)

	doc, err := bits.Open(xmlPath, bits.ReadOptions{AllowDoctype: cfg.AllowDoctype})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening XML: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ XML parsed successfully")

	book, stats := bits.NewExtractor(rules).Extract(doc)

	fmt.Println("\n--- Publication ---")
	printMetadata(book.Metadata, "  ")

	fmt.Printf("\n--- Book parts (%d) ---\n", book.CountParts())
	printParts(book.BookParts, "  ")

	fmt.Println("\n--- Stats ---")
	fmt.Printf("Candidates:    %d\n", stats.Candidates)
	fmt.Printf("Extracted:     %d\n", stats.Extracted)
	fmt.Printf("Missing pages: %d\n", stats.MissingPages)
	fmt.Printf("Invalid pages: %d\n", stats.InvalidPages)
}

func printMetadata(md bits.ParsedMetadata, indent string) {
	for _, el := range md.Elements {
		fmt.Printf("%s%s: %s\n", indent, el.Field, el.Value)
	}
	for _, p := range md.Persons {
		fmt.Printf("%s%s: %s, %s\n", indent, p.Role, p.LastName, p.FirstName)
	}
}

func printParts(parts []bits.BookPart, indent string) {
	for i, p := range parts {
		fmt.Printf("%s[%d] pages %d-%d\n", indent, i+1, p.FirstPage, p.LastPage)
		printMetadata(p.Metadata, indent+strings.Repeat(" ", 4))
		printParts(p.Children, indent+"  ")
	}
}
