package converter

import (
	"testing"

	"github.com/yuanying/bits2mets/internal/bits"
	"github.com/yuanying/bits2mets/internal/mets"
	"github.com/yuanying/bits2mets/internal/processlog"
	"github.com/yuanying/bits2mets/internal/workspace"
)

func newTestReconciler(t *testing.T, doc *mets.Document, images []workspace.Image, log processlog.Logger) *Reconciler {
	t.Helper()
	linker := NewPageLinker(doc, images, "page", log)
	r, err := NewReconciler(doc, "Chapter", "PdfChapter", NewOverridePolicy(DefaultOverrideFields...), linker, log)
	if err != nil {
		t.Fatalf("NewReconciler() error = %v", err)
	}
	return r
}

func titled(title string, first, last int, children ...bits.BookPart) bits.BookPart {
	return bits.BookPart{
		Metadata:  bits.ParsedMetadata{Elements: []bits.MetadataElement{{Field: "TitleDocMain", Value: title}}},
		FirstPage: first,
		LastPage:  last,
		Children:  children,
	}
}

func titleOf(ds *mets.DocStruct) string {
	if mds := ds.MetadataByType("TitleDocMain"); len(mds) > 0 {
		return mds[0].Value
	}
	return ""
}

func TestReconcile_ExactMatch(t *testing.T) {
	doc, images := newTestDocument(t, 20)
	node := addNode(t, doc, doc.Logical(), "PdfChapter", 5, 12)
	rec := &processlog.Recorder{}

	stats := newTestReconciler(t, doc, images, rec).MapBook(&bits.Book{
		BookParts: []bits.BookPart{titled("Intro", 5, 12)},
	})

	if stats.Matched != 1 || stats.Created != 0 {
		t.Errorf("stats = %+v, want 1 matched and 0 created", stats)
	}
	if n := len(doc.Logical().Children()); n != 1 {
		t.Errorf("logical root has %d children, want 1", n)
	}
	if node.TypeName() != "Chapter" {
		t.Errorf("matched node type = %q, want Chapter", node.TypeName())
	}
	if got := titleOf(node); got != "Intro" {
		t.Errorf("matched node title = %q, want Intro", got)
	}
	if n := len(node.References()); n != 8 {
		t.Errorf("matched node references %d pages, want 8", n)
	}
}

func TestReconcile_NoMatch(t *testing.T) {
	doc, images := newTestDocument(t, 30)
	addNode(t, doc, doc.Logical(), "PdfChapter", 5, 12)
	rec := &processlog.Recorder{}

	stats := newTestReconciler(t, doc, images, rec).MapBook(&bits.Book{
		BookParts: []bits.BookPart{titled("Appendix", 20, 25)},
	})

	if stats.Matched != 0 || stats.Created != 1 {
		t.Errorf("stats = %+v, want 0 matched and 1 created", stats)
	}
	created := doc.Logical().ChildrenByType("Chapter")
	if len(created) != 1 {
		t.Fatalf("got %d Chapter nodes, want 1", len(created))
	}
	if n := len(created[0].References()); n != 6 {
		t.Errorf("created node references %d pages, want 6", n)
	}
	if got := titleOf(created[0]); got != "Appendix" {
		t.Errorf("created node title = %q, want Appendix", got)
	}
	if !rec.Contains("start page: 20 and last page: 25") {
		t.Error("missing no-match diagnostic")
	}
	if n := len(doc.Physical().Children()); n != 30 {
		t.Errorf("physical root has %d pages, want the existing 30 reused", n)
	}
}

func TestReconcile_EmptyTree(t *testing.T) {
	doc, images := newTestDocument(t, 10)
	rec := &processlog.Recorder{}

	stats := newTestReconciler(t, doc, images, rec).MapBook(&bits.Book{
		BookParts: []bits.BookPart{titled("One", 1, 3), titled("Two", 4, 10)},
	})

	if stats.Created != 2 {
		t.Errorf("Created = %d, want 2", stats.Created)
	}
	children := doc.Logical().Children()
	if len(children) != 2 {
		t.Fatalf("logical root has %d children, want 2", len(children))
	}
	if titleOf(children[0]) != "One" || titleOf(children[1]) != "Two" {
		t.Errorf("children = %q, %q; want One, Two", titleOf(children[0]), titleOf(children[1]))
	}
	if n := len(children[1].References()); n != 7 {
		t.Errorf("second node references %d pages, want 7", n)
	}
	if !rec.Contains("No Element with physical pages detected") {
		t.Error("missing empty index diagnostic")
	}
	if rec.Contains("Couldn't find matching docstruct") {
		t.Error("per-part no-match diagnostic logged for an empty index")
	}
}

func TestReconcile_Override(t *testing.T) {
	doc, images := newTestDocument(t, 5)
	node := addNode(t, doc, doc.Logical(), "PdfChapter", 1, 2)
	addMetadata(t, doc, node, "TitleDocMain", "Old")
	rec := &processlog.Recorder{}

	newTestReconciler(t, doc, images, rec).MapBook(&bits.Book{
		BookParts: []bits.BookPart{titled("New", 1, 2)},
	})

	mds := node.MetadataByType("TitleDocMain")
	if len(mds) != 1 || mds[0].Value != "New" {
		t.Errorf("TitleDocMain = %+v, want exactly one with value New", mds)
	}
	if !rec.Contains("The following TitleDocMain was overriden: Old with: New") {
		t.Error("missing override diagnostic")
	}
}

func TestReconcile_Nested(t *testing.T) {
	doc, images := newTestDocument(t, 40)
	part := addNode(t, doc, doc.Logical(), "PdfChapter", 1, 40)
	addNode(t, doc, part, "PdfChapter", 1, 20)

	r := newTestReconciler(t, doc, images, processlog.Discard)
	stats := r.MapBook(&bits.Book{
		BookParts: []bits.BookPart{
			titled("Part", 1, 40,
				titled("Chapter 1", 1, 20),
				titled("Chapter 2", 21, 40, titled("Section", 22, 23)),
			),
		},
	})

	if stats.Matched != 2 || stats.Created != 2 {
		t.Errorf("stats = %+v, want 2 matched and 2 created", stats)
	}
	kids := part.Children()
	if len(kids) != 2 {
		t.Fatalf("part has %d children, want 2", len(kids))
	}
	if titleOf(kids[0]) != "Chapter 1" || titleOf(kids[1]) != "Chapter 2" {
		t.Errorf("part children = %q, %q", titleOf(kids[0]), titleOf(kids[1]))
	}
	if sec := kids[1].Children(); len(sec) != 1 || titleOf(sec[0]) != "Section" {
		t.Errorf("Chapter 2 should hold the new Section node")
	}
}

func TestReconcile_ChildNotAllowed(t *testing.T) {
	rs, err := mets.ParseRuleset([]byte(`
metadata_types:
  - name: TitleDocMain
  - name: physPageNumber
  - name: logicalPageNumber
struct_types:
  - name: Monograph
    children: [PdfChapter]
    metadata: ["*"]
  - name: PdfChapter
    metadata: ["*"]
  - name: Chapter
    children: [Chapter]
    metadata: ["*"]
  - name: BoundBook
    children: [page]
  - name: page
    metadata: [physPageNumber, logicalPageNumber]
`))
	if err != nil {
		t.Fatalf("ParseRuleset() error = %v", err)
	}
	doc, err := mets.NewDocument(rs, "Monograph", "BoundBook")
	if err != nil {
		t.Fatalf("NewDocument() error = %v", err)
	}
	rec := &processlog.Recorder{}

	stats := newTestReconciler(t, doc, nil, rec).MapBook(&bits.Book{
		BookParts: []bits.BookPart{titled("One", 1, 2, titled("Inner", 1, 1))},
	})

	if stats.Failed != 2 {
		t.Errorf("Failed = %d, want 2", stats.Failed)
	}
	if len(doc.Logical().Children()) != 0 {
		t.Error("rejected node was attached")
	}
	if rec.Count(processlog.Error) != 1 {
		t.Errorf("got %d error records, want 1", rec.Count(processlog.Error))
	}
}

func TestNewReconciler_UnknownType(t *testing.T) {
	rs, err := mets.ParseRuleset([]byte("struct_types:\n  - name: Monograph\n  - name: BoundBook\n"))
	if err != nil {
		t.Fatal(err)
	}
	doc, err := mets.NewDocument(rs, "Monograph", "BoundBook")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewReconciler(doc, "Chapter", "Monograph", nil, nil, nil); err == nil {
		t.Error("NewReconciler() error = nil, want error for unknown type")
	}
}

func TestReconcile_RoundTripReindex(t *testing.T) {
	doc, images := newTestDocument(t, 12)
	r := newTestReconciler(t, doc, images, processlog.Discard)
	r.MapBook(&bits.Book{BookParts: []bits.BookPart{titled("One", 1, 4), titled("Two", 5, 12)}})

	// Nodes created in the first pass are found by range in the second.
	idx := BuildIndex(doc.Logical(), "Chapter", processlog.Discard)
	for _, rng := range [][2]int{{1, 4}, {5, 12}} {
		if _, ok := idx.Lookup(rng[0], rng[1]); !ok {
			t.Errorf("Lookup(%d, %d) found nothing after reconciliation", rng[0], rng[1])
		}
	}
}

func TestReconcile_PublicationMetadata(t *testing.T) {
	doc, images := newTestDocument(t, 2)
	addMetadata(t, doc, doc.Logical(), "TitleDocMain", "Scanned title")

	newTestReconciler(t, doc, images, processlog.Discard).MapBook(&bits.Book{
		Metadata: bits.ParsedMetadata{
			Elements: []bits.MetadataElement{{Field: "TitleDocMain", Value: "Real title"}, {Field: "ISBN", Value: "123"}},
			Persons:  []bits.Person{{Role: "Editor", FirstName: "Jane", LastName: "Doe"}},
		},
	})

	root := doc.Logical()
	if got := titleOf(root); got != "Real title" {
		t.Errorf("root title = %q, want Real title", got)
	}
	if n := len(root.MetadataByType("TitleDocMain")); n != 1 {
		t.Errorf("root has %d titles, want 1", n)
	}
	if n := len(root.MetadataByType("ISBN")); n != 1 {
		t.Errorf("root has %d ISBN values, want 1", n)
	}
	if n := len(root.Persons()); n != 1 {
		t.Errorf("root has %d persons, want 1", n)
	}
}
