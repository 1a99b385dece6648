package mets

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/beevik/etree"
)

const (
	nsMETS  = "http://www.loc.gov/METS/"
	nsMODS  = "http://www.loc.gov/mods/v3"
	nsGoobi = "http://meta.goobi.org/v1.5.1/"
	nsXLink = "http://www.w3.org/1999/xlink"

	// Page metadata stored as attributes of the physical div.
	PhysPageNumber    = "physPageNumber"
	LogicalPageNumber = "logicalPageNumber"

	agentName = "bits2mets"
)

// ids assigns stable identifiers to nodes and files for one write.
type ids struct {
	node map[*DocStruct]string
	dmd  map[*DocStruct]string
	file map[*DocStruct][]string
}

func assignIDs(d *Document) *ids {
	m := &ids{
		node: make(map[*DocStruct]string),
		dmd:  make(map[*DocStruct]string),
		file: make(map[*DocStruct][]string),
	}

	n := 0
	d.logical.Walk(func(ds *DocStruct) {
		m.node[ds] = fmt.Sprintf("LOG_%04d", n)
		if hasDescriptiveMetadata(ds) {
			m.dmd[ds] = fmt.Sprintf("DMDLOG_%04d", n)
		}
		n++
	})

	n, f := 0, 1
	d.physical.Walk(func(ds *DocStruct) {
		m.node[ds] = fmt.Sprintf("PHYS_%04d", n)
		if hasDescriptiveMetadata(ds) {
			m.dmd[ds] = fmt.Sprintf("DMDPHYS_%04d", n)
		}
		for range ds.files {
			m.file[ds] = append(m.file[ds], fmt.Sprintf("FILE_%04d", f))
			f++
		}
		n++
	})
	return m
}

func isPageAttribute(name string) bool {
	return name == PhysPageNumber || name == LogicalPageNumber
}

func hasDescriptiveMetadata(ds *DocStruct) bool {
	if len(ds.persons) > 0 {
		return true
	}
	for _, md := range ds.metadata {
		if !isPageAttribute(md.Type.Name) {
			return true
		}
	}
	return false
}

func firstValue(ds *DocStruct, typeName string) string {
	if mds := ds.MetadataByType(typeName); len(mds) > 0 {
		return mds[0].Value
	}
	return ""
}

// Write serializes d as a METS document.
func Write(w io.Writer, d *Document) error {
	doc := buildXML(d)
	doc.Indent(2)
	if _, err := doc.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write METS: %w", err)
	}
	return nil
}

// WriteFile writes d to path. The file is replaced atomically so an
// interrupted write leaves the previous version in place.
func WriteFile(path string, d *Document) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := Write(tmp, d); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func buildXML(d *Document) *etree.Document {
	m := assignIDs(d)

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("mets:mets")
	root.CreateAttr("xmlns:mets", nsMETS)
	root.CreateAttr("xmlns:mods", nsMODS)
	root.CreateAttr("xmlns:goobi", nsGoobi)
	root.CreateAttr("xmlns:xlink", nsXLink)
	if d.ObjID != "" {
		root.CreateAttr("OBJID", d.ObjID)
	}

	hdr := root.CreateElement("mets:metsHdr")
	agent := hdr.CreateElement("mets:agent")
	agent.CreateAttr("ROLE", "CREATOR")
	agent.CreateAttr("TYPE", "OTHER")
	agent.CreateAttr("OTHERTYPE", "SOFTWARE")
	agent.CreateElement("mets:name").SetText(agentName)

	writeDmdSecs(root, d.logical, m)
	writeDmdSecs(root, d.physical, m)
	writeFileSec(root, d.physical, m)

	logical := root.CreateElement("mets:structMap")
	logical.CreateAttr("TYPE", "LOGICAL")
	writeDiv(logical, d.logical, m, false)

	physical := root.CreateElement("mets:structMap")
	physical.CreateAttr("TYPE", "PHYSICAL")
	writeDiv(physical, d.physical, m, true)

	writeStructLink(root, d.logical, m)
	return doc
}

func writeDmdSecs(root *etree.Element, top *DocStruct, m *ids) {
	top.Walk(func(ds *DocStruct) {
		id, ok := m.dmd[ds]
		if !ok {
			return
		}
		sec := root.CreateElement("mets:dmdSec")
		sec.CreateAttr("ID", id)
		wrap := sec.CreateElement("mets:mdWrap")
		wrap.CreateAttr("MDTYPE", "MODS")
		goobi := wrap.CreateElement("mets:xmlData").
			CreateElement("mods:mods").
			CreateElement("mods:extension").
			CreateElement("goobi:goobi")

		for _, md := range ds.metadata {
			if isPageAttribute(md.Type.Name) {
				continue
			}
			el := goobi.CreateElement("goobi:metadata")
			el.CreateAttr("name", md.Type.Name)
			el.SetText(md.Value)
		}
		for _, p := range ds.persons {
			el := goobi.CreateElement("goobi:metadata")
			el.CreateAttr("name", p.Type.Name)
			el.CreateAttr("type", "person")
			el.CreateElement("goobi:firstName").SetText(p.FirstName)
			el.CreateElement("goobi:lastName").SetText(p.LastName)
			el.CreateElement("goobi:displayName").SetText(p.DisplayName())
		}
	})
}

func writeFileSec(root *etree.Element, physical *DocStruct, m *ids) {
	if len(m.file) == 0 {
		return
	}
	grp := root.CreateElement("mets:fileSec").CreateElement("mets:fileGrp")
	grp.CreateAttr("USE", "LOCAL")
	physical.Walk(func(ds *DocStruct) {
		for i, cf := range ds.files {
			file := grp.CreateElement("mets:file")
			file.CreateAttr("ID", m.file[ds][i])
			if cf.MimeType != "" {
				file.CreateAttr("MIMETYPE", cf.MimeType)
			}
			loc := file.CreateElement("mets:FLocat")
			loc.CreateAttr("LOCTYPE", "URL")
			loc.CreateAttr("xlink:href", cf.Location)
		}
	})
}

func writeDiv(parent *etree.Element, ds *DocStruct, m *ids, physical bool) {
	div := parent.CreateElement("mets:div")
	div.CreateAttr("ID", m.node[ds])
	div.CreateAttr("TYPE", ds.typ.Name)
	if id, ok := m.dmd[ds]; ok {
		div.CreateAttr("DMDID", id)
	}
	if physical {
		if v := firstValue(ds, PhysPageNumber); v != "" {
			div.CreateAttr("ORDER", v)
		}
		if v := firstValue(ds, LogicalPageNumber); v != "" {
			div.CreateAttr("ORDERLABEL", v)
		}
		for _, id := range m.file[ds] {
			div.CreateElement("mets:fptr").CreateAttr("FILEID", id)
		}
	} else if label := firstValue(ds, "TitleDocMain"); label != "" {
		div.CreateAttr("LABEL", label)
	}
	for _, c := range ds.children {
		writeDiv(div, c, m, physical)
	}
}

func writeStructLink(root *etree.Element, logical *DocStruct, m *ids) {
	var link *etree.Element
	logical.Walk(func(ds *DocStruct) {
		for _, target := range ds.refs {
			to, ok := m.node[target]
			if !ok {
				continue
			}
			if link == nil {
				link = root.CreateElement("mets:structLink")
			}
			sm := link.CreateElement("mets:smLink")
			sm.CreateAttr("xlink:from", m.node[ds])
			sm.CreateAttr("xlink:to", to)
		}
	})
}
