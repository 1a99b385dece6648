// Package mets is the document model the reconciliation writes into: a
// logical structure tree, a physical page tree, the links between them, and
// METS persistence. A Ruleset decides which structure and metadata types
// exist and where they may appear.
package mets

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Wildcard allows any child or metadata type.
const Wildcard = "*"

// StructType describes a structural division type.
type StructType struct {
	Name     string   `yaml:"name"`
	Children []string `yaml:"children"`
	Metadata []string `yaml:"metadata"`
}

// AllowsChild reports whether a child of type name may be attached.
func (t *StructType) AllowsChild(name string) bool {
	return contains(t.Children, name)
}

// AllowsMetadata reports whether metadata or persons of type name may be
// attached.
func (t *StructType) AllowsMetadata(name string) bool {
	return contains(t.Metadata, name)
}

func contains(list []string, name string) bool {
	for _, s := range list {
		if s == Wildcard || s == name {
			return true
		}
	}
	return false
}

// MetadataType describes a metadata field. Person types carry names instead
// of a value.
type MetadataType struct {
	Name   string `yaml:"name"`
	Person bool   `yaml:"person"`
}

// Ruleset holds the known types. A permissive ruleset accepts every name and
// creates types on first use.
type Ruleset struct {
	permissive bool

	mu       sync.Mutex
	structs  map[string]*StructType
	metadata map[string]*MetadataType
}

type rulesetFile struct {
	StructTypes   []*StructType   `yaml:"struct_types"`
	MetadataTypes []*MetadataType `yaml:"metadata_types"`
}

// DefaultRuleset returns a permissive ruleset.
func DefaultRuleset() *Ruleset {
	return &Ruleset{
		permissive: true,
		structs:    make(map[string]*StructType),
		metadata:   make(map[string]*MetadataType),
	}
}

// LoadRuleset reads a YAML ruleset file.
func LoadRuleset(path string) (*Ruleset, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ruleset: %w", err)
	}
	return ParseRuleset(content)
}

// ParseRuleset parses YAML ruleset content.
func ParseRuleset(content []byte) (*Ruleset, error) {
	var f rulesetFile
	if err := yaml.Unmarshal(content, &f); err != nil {
		return nil, fmt.Errorf("failed to parse ruleset: %w", err)
	}

	rs := &Ruleset{
		structs:  make(map[string]*StructType, len(f.StructTypes)),
		metadata: make(map[string]*MetadataType, len(f.MetadataTypes)),
	}
	for _, st := range f.StructTypes {
		if st == nil || st.Name == "" {
			return nil, fmt.Errorf("failed to parse ruleset: struct type without name")
		}
		if _, dup := rs.structs[st.Name]; dup {
			return nil, fmt.Errorf("failed to parse ruleset: duplicate struct type %q", st.Name)
		}
		rs.structs[st.Name] = st
	}
	for _, mt := range f.MetadataTypes {
		if mt == nil || mt.Name == "" {
			return nil, fmt.Errorf("failed to parse ruleset: metadata type without name")
		}
		rs.metadata[mt.Name] = mt
	}
	return rs, nil
}

// StructType looks up a structure type by name.
func (rs *Ruleset) StructType(name string) (*StructType, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if t, ok := rs.structs[name]; ok {
		return t, nil
	}
	if rs.permissive && name != "" {
		t := &StructType{Name: name, Children: []string{Wildcard}, Metadata: []string{Wildcard}}
		rs.structs[name] = t
		return t, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
}

// MetadataType looks up a metadata type by name. In a permissive ruleset,
// unknown names become plain metadata types unless person is set.
func (rs *Ruleset) MetadataType(name string, person bool) (*MetadataType, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if t, ok := rs.metadata[name]; ok {
		return t, nil
	}
	if rs.permissive && name != "" {
		t := &MetadataType{Name: name, Person: person}
		rs.metadata[name] = t
		return t, nil
	}
	return nil, fmt.Errorf("%w: unknown metadata type %q", ErrMetadataTypeNotAllowed, name)
}
