package mets

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
)

var (
	// ErrUnknownType is returned when a structure type name is not in the ruleset.
	ErrUnknownType = errors.New("unknown structure type")
	// ErrTypeNotAllowedAsChild is returned when the parent type does not accept the child type.
	ErrTypeNotAllowedAsChild = errors.New("type not allowed for parent")
	// ErrMetadataTypeNotAllowed is returned when metadata or a person cannot be attached.
	ErrMetadataTypeNotAllowed = errors.New("metadata type not allowed")
)

// Metadata is a typed value attached to a structure node.
type Metadata struct {
	Type  *MetadataType
	Value string
}

// Person is a typed name attached to a structure node. The type is the role.
type Person struct {
	Type      *MetadataType
	FirstName string
	LastName  string
}

// DisplayName returns "LastName, FirstName", or whichever part is present.
func (p *Person) DisplayName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.LastName + ", " + p.FirstName
}

// ContentFile is a file that backs a physical page.
type ContentFile struct {
	Location string
	MimeType string
}

// Document holds the logical and physical trees of one digitized work.
type Document struct {
	Ruleset *Ruleset
	ObjID   string

	logical  *DocStruct
	physical *DocStruct
}

// NewDocument creates a document with an empty logical root of type topType
// and an empty physical root of type physType.
func NewDocument(rs *Ruleset, topType, physType string) (*Document, error) {
	if rs == nil {
		rs = DefaultRuleset()
	}
	d := &Document{Ruleset: rs, ObjID: uuid.NewString()}

	top, err := d.CreateDocStruct(topType)
	if err != nil {
		return nil, fmt.Errorf("failed to create logical root: %w", err)
	}
	phys, err := d.CreateDocStruct(physType)
	if err != nil {
		return nil, fmt.Errorf("failed to create physical root: %w", err)
	}
	d.logical = top
	d.physical = phys
	return d, nil
}

// Logical returns the root of the logical tree.
func (d *Document) Logical() *DocStruct { return d.logical }

// Physical returns the root of the physical tree.
func (d *Document) Physical() *DocStruct { return d.physical }

// SetPhysical replaces the physical root.
func (d *Document) SetPhysical(ds *DocStruct) { d.physical = ds }

// CreateDocStruct creates a detached node of the named type.
func (d *Document) CreateDocStruct(typeName string) (*DocStruct, error) {
	t, err := d.Ruleset.StructType(typeName)
	if err != nil {
		return nil, err
	}
	return &DocStruct{doc: d, typ: t}, nil
}

// NewMetadata creates a metadata value of the named type.
func (d *Document) NewMetadata(typeName, value string) (*Metadata, error) {
	t, err := d.Ruleset.MetadataType(typeName, false)
	if err != nil {
		return nil, err
	}
	if t.Person {
		return nil, fmt.Errorf("%w: %q is a person type", ErrMetadataTypeNotAllowed, typeName)
	}
	return &Metadata{Type: t, Value: value}, nil
}

// NewPerson creates a person with the given role.
func (d *Document) NewPerson(role, firstName, lastName string) (*Person, error) {
	t, err := d.Ruleset.MetadataType(role, true)
	if err != nil {
		return nil, err
	}
	if !t.Person {
		return nil, fmt.Errorf("%w: %q is not a person type", ErrMetadataTypeNotAllowed, role)
	}
	return &Person{Type: t, FirstName: firstName, LastName: lastName}, nil
}

// DocStruct is a node in the logical or physical tree.
type DocStruct struct {
	doc      *Document
	typ      *StructType
	parent   *DocStruct
	children []*DocStruct
	metadata []*Metadata
	persons  []*Person
	refs     []*DocStruct
	files    []ContentFile
}

// Type returns the structure type.
func (ds *DocStruct) Type() *StructType { return ds.typ }

// TypeName returns the structure type name.
func (ds *DocStruct) TypeName() string { return ds.typ.Name }

// SetType changes the structure type.
func (ds *DocStruct) SetType(t *StructType) { ds.typ = t }

// Parent returns the parent node, or nil for a root.
func (ds *DocStruct) Parent() *DocStruct { return ds.parent }

// Children returns the child nodes in order.
func (ds *DocStruct) Children() []*DocStruct { return ds.children }

// ChildrenByType returns the direct children of the named type.
func (ds *DocStruct) ChildrenByType(typeName string) []*DocStruct {
	var out []*DocStruct
	for _, c := range ds.children {
		if c.typ.Name == typeName {
			out = append(out, c)
		}
	}
	return out
}

// AddChild appends child if the ruleset allows its type below this node.
func (ds *DocStruct) AddChild(child *DocStruct) error {
	if !ds.typ.AllowsChild(child.typ.Name) {
		return fmt.Errorf("%w: %s below %s", ErrTypeNotAllowedAsChild, child.typ.Name, ds.typ.Name)
	}
	child.parent = ds
	ds.children = append(ds.children, child)
	return nil
}

// InsertChild places child at position i, or appends it when i is out of
// range, if the ruleset allows its type below this node.
func (ds *DocStruct) InsertChild(i int, child *DocStruct) error {
	if i < 0 || i >= len(ds.children) {
		return ds.AddChild(child)
	}
	if !ds.typ.AllowsChild(child.typ.Name) {
		return fmt.Errorf("%w: %s below %s", ErrTypeNotAllowedAsChild, child.typ.Name, ds.typ.Name)
	}
	child.parent = ds
	ds.children = slices.Insert(ds.children, i, child)
	return nil
}

// Metadata returns all metadata in insertion order.
func (ds *DocStruct) Metadata() []*Metadata { return ds.metadata }

// MetadataByType returns the metadata of the named type.
func (ds *DocStruct) MetadataByType(typeName string) []*Metadata {
	var out []*Metadata
	for _, md := range ds.metadata {
		if md.Type.Name == typeName {
			out = append(out, md)
		}
	}
	return out
}

// AddMetadata attaches md if the ruleset allows its type on this node.
func (ds *DocStruct) AddMetadata(md *Metadata) error {
	if !ds.typ.AllowsMetadata(md.Type.Name) {
		return fmt.Errorf("%w: %s on %s", ErrMetadataTypeNotAllowed, md.Type.Name, ds.typ.Name)
	}
	ds.metadata = append(ds.metadata, md)
	return nil
}

// Persons returns all persons in insertion order.
func (ds *DocStruct) Persons() []*Person { return ds.persons }

// AddPerson attaches p if the ruleset allows its role on this node.
func (ds *DocStruct) AddPerson(p *Person) error {
	if !ds.typ.AllowsMetadata(p.Type.Name) {
		return fmt.Errorf("%w: %s on %s", ErrMetadataTypeNotAllowed, p.Type.Name, ds.typ.Name)
	}
	ds.persons = append(ds.persons, p)
	return nil
}

// AddReferenceTo links this node to target, typically a logical node to a
// physical page. Duplicate links are ignored.
func (ds *DocStruct) AddReferenceTo(target *DocStruct) {
	for _, r := range ds.refs {
		if r == target {
			return
		}
	}
	ds.refs = append(ds.refs, target)
}

// References returns the linked nodes in insertion order.
func (ds *DocStruct) References() []*DocStruct { return ds.refs }

// ContentFiles returns the files backing this node.
func (ds *DocStruct) ContentFiles() []ContentFile { return ds.files }

// AddContentFile attaches a file to this node.
func (ds *DocStruct) AddContentFile(cf ContentFile) {
	ds.files = append(ds.files, cf)
}

// Walk visits ds and its descendants depth first, parents before children.
func (ds *DocStruct) Walk(fn func(*DocStruct)) {
	fn(ds)
	for _, c := range ds.children {
		c.Walk(fn)
	}
}
