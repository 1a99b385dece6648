package mets

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/beevik/etree"
)

// ErrInvalidMETS is returned when a file is well-formed XML but lacks the
// structure maps a METS document needs.
var ErrInvalidMETS = errors.New("invalid METS document")

// ReadFile parses the METS file at path using rs for type lookups.
func ReadFile(path string, rs *Ruleset) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open METS file: %w", err)
	}
	defer f.Close()
	return Read(f, rs)
}

// Read parses a METS document. Metadata is attached without re-checking the
// ruleset placement rules so that existing files load as written.
func Read(r io.Reader, rs *Ruleset) (*Document, error) {
	if rs == nil {
		rs = DefaultRuleset()
	}

	xml := etree.NewDocument()
	if _, err := xml.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("failed to parse METS: %w", err)
	}
	root := xml.Root()
	if root == nil || root.Tag != "mets" {
		return nil, fmt.Errorf("%w: root element is not mets", ErrInvalidMETS)
	}

	rd := &reader{
		doc:   &Document{Ruleset: rs, ObjID: attrValue(root, "OBJID")},
		dmd:   make(map[string]*etree.Element),
		files: make(map[string]ContentFile),
		nodes: make(map[string]*DocStruct),
	}

	for _, sec := range children(root, "dmdSec") {
		rd.dmd[attrValue(sec, "ID")] = sec
	}
	for _, fs := range children(root, "fileSec") {
		for _, grp := range children(fs, "fileGrp") {
			for _, file := range children(grp, "file") {
				cf := ContentFile{MimeType: attrValue(file, "MIMETYPE")}
				if loc := child(file, "FLocat"); loc != nil {
					cf.Location = attrValue(loc, "href")
				}
				rd.files[attrValue(file, "ID")] = cf
			}
		}
	}

	for _, sm := range children(root, "structMap") {
		div := child(sm, "div")
		if div == nil {
			continue
		}
		switch attrValue(sm, "TYPE") {
		case "LOGICAL":
			ds, err := rd.readDiv(div, false)
			if err != nil {
				return nil, err
			}
			rd.doc.logical = ds
		case "PHYSICAL":
			ds, err := rd.readDiv(div, true)
			if err != nil {
				return nil, err
			}
			rd.doc.physical = ds
		}
	}
	if rd.doc.logical == nil {
		return nil, fmt.Errorf("%w: missing logical structMap", ErrInvalidMETS)
	}
	if rd.doc.physical == nil {
		return nil, fmt.Errorf("%w: missing physical structMap", ErrInvalidMETS)
	}

	for _, sl := range children(root, "structLink") {
		for _, link := range children(sl, "smLink") {
			from, ok := rd.nodes[attrValue(link, "from")]
			if !ok {
				continue
			}
			to, ok := rd.nodes[attrValue(link, "to")]
			if !ok {
				continue
			}
			from.AddReferenceTo(to)
		}
	}
	return rd.doc, nil
}

type reader struct {
	doc   *Document
	dmd   map[string]*etree.Element
	files map[string]ContentFile
	nodes map[string]*DocStruct
}

func (rd *reader) readDiv(div *etree.Element, physical bool) (*DocStruct, error) {
	ds, err := rd.doc.CreateDocStruct(attrValue(div, "TYPE"))
	if err != nil {
		return nil, fmt.Errorf("failed to read div %s: %w", attrValue(div, "ID"), err)
	}
	if id := attrValue(div, "ID"); id != "" {
		rd.nodes[id] = ds
	}

	if physical {
		if err := rd.pageAttribute(ds, PhysPageNumber, attrValue(div, "ORDER")); err != nil {
			return nil, err
		}
		if err := rd.pageAttribute(ds, LogicalPageNumber, attrValue(div, "ORDERLABEL")); err != nil {
			return nil, err
		}
		for _, ptr := range children(div, "fptr") {
			if cf, ok := rd.files[attrValue(ptr, "FILEID")]; ok {
				ds.AddContentFile(cf)
			}
		}
	}

	if sec, ok := rd.dmd[attrValue(div, "DMDID")]; ok {
		if err := rd.readMetadata(ds, sec); err != nil {
			return nil, err
		}
	}

	for _, c := range children(div, "div") {
		cds, err := rd.readDiv(c, physical)
		if err != nil {
			return nil, err
		}
		cds.parent = ds
		ds.children = append(ds.children, cds)
	}
	return ds, nil
}

func (rd *reader) pageAttribute(ds *DocStruct, name, value string) error {
	if value == "" {
		return nil
	}
	md, err := rd.doc.NewMetadata(name, value)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	ds.metadata = append(ds.metadata, md)
	return nil
}

func (rd *reader) readMetadata(ds *DocStruct, sec *etree.Element) error {
	goobi := descend(sec, "mdWrap", "xmlData", "mods", "extension", "goobi")
	if goobi == nil {
		return nil
	}
	for _, el := range children(goobi, "metadata") {
		name := attrValue(el, "name")
		if attrValue(el, "type") == "person" {
			p, err := rd.doc.NewPerson(name, childText(el, "firstName"), childText(el, "lastName"))
			if err != nil {
				return fmt.Errorf("failed to read person: %w", err)
			}
			ds.persons = append(ds.persons, p)
			continue
		}
		md, err := rd.doc.NewMetadata(name, el.Text())
		if err != nil {
			return fmt.Errorf("failed to read metadata: %w", err)
		}
		ds.metadata = append(ds.metadata, md)
	}
	return nil
}

// Elements are matched by local name so that files using other namespace
// prefixes still load.

func children(el *etree.Element, tag string) []*etree.Element {
	var out []*etree.Element
	for _, c := range el.ChildElements() {
		if c.Tag == tag {
			out = append(out, c)
		}
	}
	return out
}

func child(el *etree.Element, tag string) *etree.Element {
	for _, c := range el.ChildElements() {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

func descend(el *etree.Element, tags ...string) *etree.Element {
	for _, tag := range tags {
		if el = child(el, tag); el == nil {
			return nil
		}
	}
	return el
}

func childText(el *etree.Element, tag string) string {
	if c := child(el, tag); c != nil {
		return c.Text()
	}
	return ""
}

func attrValue(el *etree.Element, key string) string {
	for _, a := range el.Attr {
		if a.Key == key && a.Space != "xmlns" {
			return a.Value
		}
	}
	return ""
}
