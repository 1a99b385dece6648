package bits

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
)

// ErrPageParse marks a book part whose page bound is present but not a
// positive integer, or whose range is inverted. It is counted, not returned.
var ErrPageParse = errors.New("invalid page bound")

// ExtractStats summarizes the candidates the extractor had to drop.
type ExtractStats struct {
	Candidates   int `json:"candidates" yaml:"candidates"`       // nodes selected by the book part path
	Extracted    int `json:"extracted" yaml:"extracted"`         // parts kept, at every level
	MissingPages int `json:"missing_pages" yaml:"missing_pages"` // parts without a first or last page value
	InvalidPages int `json:"invalid_pages" yaml:"invalid_pages"` // parts with unparseable or inverted page bounds
}

// Skipped returns the number of candidates that did not produce a part.
func (s ExtractStats) Skipped() int {
	return s.MissingPages + s.InvalidPages
}

// ExtractMetadata applies rules to ctx. The result follows rule order, then
// document order within a rule.
func ExtractMetadata(rules []MappingRule, ctx *xmlquery.Node) []MetadataElement {
	var elements []MetadataElement
	for _, rule := range rules {
		for _, v := range rule.Path.Strings(ctx) {
			elements = append(elements, MetadataElement{Field: rule.Field, Value: v})
		}
	}
	return elements
}

// ExtractPersons applies person rules to ctx. Every node matched by a rule
// yields a person, even when its name parts are missing.
func ExtractPersons(rules []PersonMappingRule, ctx *xmlquery.Node) []Person {
	var persons []Person
	for _, rule := range rules {
		for _, node := range rule.Node.Nodes(ctx) {
			persons = append(persons, Person{
				Role:      rule.Role,
				FirstName: rule.FirstName.FirstOrEmpty(node),
				LastName:  rule.LastName.FirstOrEmpty(node),
			})
		}
	}
	return persons
}

// Extractor builds a Book from a parsed document.
type Extractor struct {
	rules Rules
}

// NewExtractor creates an extractor for rules.
func NewExtractor(rules Rules) *Extractor {
	return &Extractor{rules: rules}
}

// candidate is a selected book part node and, once extracted, its part.
type candidate struct {
	node *xmlquery.Node
	part *BookPart
	kids []*candidate
}

// Extract reads the publication metadata and every book part from doc.
// Candidates without usable page bounds are left out and counted in the
// returned stats.
func (e *Extractor) Extract(doc *Document) (*Book, ExtractStats) {
	var stats ExtractStats
	root := doc.Root()

	book := &Book{
		Metadata: ParsedMetadata{
			Elements: ExtractMetadata(e.rules.PublicationMetadata, root),
			Persons:  ExtractPersons(e.rules.PublicationPersons, root),
		},
	}

	nodes := e.rules.BookPart.Nodes(root)
	stats.Candidates = len(nodes)

	candidates := make([]*candidate, 0, len(nodes))
	for _, node := range nodes {
		c := &candidate{node: node}
		part, err := e.extractPart(node)
		switch {
		case err == nil:
			c.part = part
			stats.Extracted++
		case errors.Is(err, ErrPageParse):
			stats.InvalidPages++
		default:
			stats.MissingPages++
		}
		candidates = append(candidates, c)
	}

	if e.rules.Nested {
		book.BookParts = nest(candidates)
	} else {
		for _, c := range candidates {
			if c.part != nil {
				book.BookParts = append(book.BookParts, *c.part)
			}
		}
	}
	return book, stats
}

var errMissingPage = errors.New("missing page bound")

func (e *Extractor) extractPart(node *xmlquery.Node) (*BookPart, error) {
	md := ParsedMetadata{
		Elements: ExtractMetadata(e.rules.ElementMetadata, node),
		Persons:  ExtractPersons(e.rules.ElementPersons, node),
	}

	fpage := e.rules.FirstPage.FirstOrEmpty(node)
	lpage := e.rules.LastPage.FirstOrEmpty(node)
	if strings.TrimSpace(fpage) == "" || strings.TrimSpace(lpage) == "" {
		return nil, errMissingPage
	}

	first, err := parsePage(fpage)
	if err != nil {
		return nil, err
	}
	last, err := parsePage(lpage)
	if err != nil {
		return nil, err
	}
	if last < first {
		return nil, fmt.Errorf("%w: range %d-%d is inverted", ErrPageParse, first, last)
	}

	return &BookPart{Metadata: md, FirstPage: first, LastPage: last}, nil
}

func parsePage(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrPageParse, s)
	}
	if n < 1 {
		return 0, fmt.Errorf("%w: %d is not a page number", ErrPageParse, n)
	}
	return n, nil
}

// nest attaches every candidate to its nearest selected ancestor. Children of
// a dropped candidate move up to the nearest kept ancestor, or to the top
// level.
func nest(candidates []*candidate) []BookPart {
	byNode := make(map[*xmlquery.Node]*candidate, len(candidates))
	for _, c := range candidates {
		byNode[c.node] = c
	}

	var top []*candidate
	for _, c := range candidates {
		if c.part == nil {
			continue
		}
		parent := nearestKeptAncestor(c.node, byNode)
		if parent == nil {
			top = append(top, c)
		} else {
			parent.kids = append(parent.kids, c)
		}
	}

	return materialize(top)
}

func nearestKeptAncestor(n *xmlquery.Node, byNode map[*xmlquery.Node]*candidate) *candidate {
	for p := n.Parent; p != nil; p = p.Parent {
		if c, ok := byNode[p]; ok && c.part != nil {
			return c
		}
	}
	return nil
}

func materialize(cs []*candidate) []BookPart {
	if len(cs) == 0 {
		return nil
	}
	parts := make([]BookPart, 0, len(cs))
	for _, c := range cs {
		part := *c.part
		part.Children = materialize(c.kids)
		parts = append(parts, part)
	}
	return parts
}
