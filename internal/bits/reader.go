package bits

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/antchfx/xmlquery"
	"golang.org/x/net/html/charset"
)

var (
	ErrDoctypeNotAllowed = errors.New("DOCTYPE declaration not allowed")
	ErrNoRootElement     = errors.New("no root element found")
)

// ReadOptions controls how a source document is parsed.
type ReadOptions struct {
	// AllowDoctype accepts documents that carry a DOCTYPE declaration. The
	// declaration is never expanded: external entities are not resolved.
	AllowDoctype bool
}

// Document is a parsed BITS source file.
type Document struct {
	path string
	root *xmlquery.Node
}

// Open reads and parses the XML file at path.
func Open(path string, opts ReadOptions) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read XML: %w", err)
	}
	doc, err := Parse(content, opts)
	if err != nil {
		return nil, err
	}
	doc.path = path
	return doc, nil
}

// Parse parses XML content.
func Parse(content []byte, opts ReadOptions) (*Document, error) {
	if err := validateProlog(content, opts); err != nil {
		return nil, err
	}

	root, err := xmlquery.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}
	if root.SelectElement("*") == nil {
		return nil, ErrNoRootElement
	}
	return &Document{root: root}, nil
}

// Path returns the file the document was read from, if any.
func (d *Document) Path() string {
	return d.path
}

// Root returns the document node.
func (d *Document) Root() *xmlquery.Node {
	return d.root
}

// validateProlog scans the tokens before the root element and rejects DOCTYPE
// declarations unless they are allowed.
func validateProlog(content []byte, opts ReadOptions) error {
	decoder := xml.NewDecoder(bytes.NewReader(content))
	decoder.CharsetReader = charset.NewReaderLabel

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			return ErrNoRootElement
		}
		if err != nil {
			return fmt.Errorf("failed to parse XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			return nil
		case xml.Directive:
			if !opts.AllowDoctype && isDoctype(t) {
				return ErrDoctypeNotAllowed
			}
		}
	}
}

func isDoctype(d xml.Directive) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(string(d))), "DOCTYPE")
}
