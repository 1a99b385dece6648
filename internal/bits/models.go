package bits

// MetadataElement is a single extracted value. Field names may repeat for
// repeatable fields.
type MetadataElement struct {
	Field string `json:"field" yaml:"field"`
	Value string `json:"value" yaml:"value"`
}

// Person is an extracted person with the role it is mapped to.
type Person struct {
	Role      string `json:"role" yaml:"role"`
	FirstName string `json:"first_name" yaml:"first_name"`
	LastName  string `json:"last_name" yaml:"last_name"`
}

// ParsedMetadata holds the metadata of the book or of one book part in
// extraction order.
type ParsedMetadata struct {
	Elements []MetadataElement `json:"elements" yaml:"elements"`
	Persons  []Person          `json:"persons" yaml:"persons"`
}

// Empty reports whether nothing was extracted.
func (m ParsedMetadata) Empty() bool {
	return len(m.Elements) == 0 && len(m.Persons) == 0
}

// BookPart is one structural division with its 1-based page range.
type BookPart struct {
	Metadata  ParsedMetadata `json:"metadata" yaml:"metadata"`
	FirstPage int            `json:"first_page" yaml:"first_page"`
	LastPage  int            `json:"last_page" yaml:"last_page"`
	Children  []BookPart     `json:"children,omitempty" yaml:"children,omitempty"`
}

// PageCount returns the number of pages the part spans.
func (p BookPart) PageCount() int {
	return p.LastPage - p.FirstPage + 1
}

// Book is the result of an extraction run.
type Book struct {
	Metadata  ParsedMetadata `json:"metadata" yaml:"metadata"`
	BookParts []BookPart     `json:"book_parts" yaml:"book_parts"`
}

// CountParts returns the number of book parts at every level.
func (b *Book) CountParts() int {
	return countParts(b.BookParts)
}

func countParts(parts []BookPart) int {
	n := len(parts)
	for _, p := range parts {
		n += countParts(p.Children)
	}
	return n
}

// MappingRule maps the values selected by Path to a metadata field.
type MappingRule struct {
	Path  *Path
	Field string
}

// PersonMappingRule maps every node selected by Node to a person with Role.
// FirstName and LastName are evaluated relative to that node.
type PersonMappingRule struct {
	Node      *Path
	FirstName *Path
	LastName  *Path
	Role      string
}

// Rules is the compiled extraction configuration.
type Rules struct {
	BookPart            *Path
	FirstPage           *Path
	LastPage            *Path
	PublicationMetadata []MappingRule
	PublicationPersons  []PersonMappingRule
	ElementMetadata     []MappingRule
	ElementPersons      []PersonMappingRule

	// Nested rebuilds the book part hierarchy from the ancestry of the
	// selected nodes instead of returning a flat list.
	Nested bool
}
