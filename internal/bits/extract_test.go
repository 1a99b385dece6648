package bits

import (
	"reflect"
	"testing"
)

const bookFixture = `<?xml version="1.0" encoding="UTF-8"?>
<book>
  <book-meta>
    <book-title-group><book-title>Collected Essays</book-title></book-title-group>
    <contrib-group>
      <contrib contrib-type="editor"><name><surname>Doe</surname><given-names>Jane</given-names></name></contrib>
      <contrib contrib-type="editor"><name><surname>Roe</surname></name></contrib>
    </contrib-group>
    <isbn>978-0-00-000000-0</isbn>
  </book-meta>
  <book-body>
    <book-part book-part-type="chapter" id="c1">
      <book-part-meta>
        <title-group><title>One</title></title-group>
        <contrib-group><contrib contrib-type="author"><name><surname>Smith</surname><given-names>Ann</given-names></name></contrib></contrib-group>
        <fpage>5</fpage><lpage>12</lpage>
      </book-part-meta>
    </book-part>
    <book-part book-part-type="chapter" id="c2">
      <book-part-meta>
        <title-group><title>Two</title></title-group>
        <fpage></fpage><lpage>20</lpage>
      </book-part-meta>
    </book-part>
    <book-part book-part-type="chapter" id="c3">
      <book-part-meta>
        <title-group><title>Three</title></title-group>
        <fpage>xiv</fpage><lpage>30</lpage>
      </book-part-meta>
    </book-part>
    <book-part book-part-type="chapter" id="c4">
      <book-part-meta>
        <title-group><title>Four</title><subtitle>A</subtitle><subtitle>B</subtitle></title-group>
        <fpage> 31 </fpage><lpage>31</lpage>
      </book-part-meta>
    </book-part>
  </book-body>
</book>`

func testRules(t *testing.T) Rules {
	t.Helper()
	return Rules{
		BookPart:  MustCompilePath("//book-part[@book-part-type='chapter']"),
		FirstPage: MustCompilePath("book-part-meta/fpage"),
		LastPage:  MustCompilePath("book-part-meta/lpage"),
		PublicationMetadata: []MappingRule{
			{Path: MustCompilePath("//book-meta//book-title"), Field: "TitleDocMain"},
			{Path: MustCompilePath("//book-meta/isbn"), Field: "ISBN"},
		},
		PublicationPersons: []PersonMappingRule{
			{
				Node:      MustCompilePath("//book-meta/contrib-group/contrib[@contrib-type='editor']"),
				FirstName: MustCompilePath("name/given-names"),
				LastName:  MustCompilePath("name/surname"),
				Role:      "Editor",
			},
		},
		ElementMetadata: []MappingRule{
			{Path: MustCompilePath("book-part-meta/title-group/title"), Field: "TitleDocMain"},
			{Path: MustCompilePath("book-part-meta/title-group/subtitle"), Field: "TitleDocSub1"},
		},
		ElementPersons: []PersonMappingRule{
			{
				Node:      MustCompilePath("book-part-meta/contrib-group/contrib[@contrib-type='author']"),
				FirstName: MustCompilePath("name/given-names"),
				LastName:  MustCompilePath("name/surname"),
				Role:      "Author",
			},
		},
	}
}

func TestExtractMetadata_RepeatableFields(t *testing.T) {
	doc := parseFixture(t, bookFixture)
	rules := []MappingRule{
		{Path: MustCompilePath("//subtitle"), Field: "TitleDocSub1"},
		{Path: MustCompilePath("//book-title"), Field: "TitleDocMain"},
	}

	got := ExtractMetadata(rules, doc.Root())
	want := []MetadataElement{
		{Field: "TitleDocSub1", Value: "A"},
		{Field: "TitleDocSub1", Value: "B"},
		{Field: "TitleDocMain", Value: "Collected Essays"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractMetadata() = %+v, want %+v", got, want)
	}
}

func TestExtractPersons_MissingNameParts(t *testing.T) {
	doc := parseFixture(t, bookFixture)
	rules := testRules(t).PublicationPersons

	got := ExtractPersons(rules, doc.Root())
	want := []Person{
		{Role: "Editor", FirstName: "Jane", LastName: "Doe"},
		{Role: "Editor", FirstName: "", LastName: "Roe"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractPersons() = %+v, want %+v", got, want)
	}
}

func TestExtractor_Extract(t *testing.T) {
	doc := parseFixture(t, bookFixture)

	book, stats := NewExtractor(testRules(t)).Extract(doc)

	if stats.Candidates != 4 {
		t.Errorf("Candidates = %d, want 4", stats.Candidates)
	}
	if stats.Extracted != 2 {
		t.Errorf("Extracted = %d, want 2", stats.Extracted)
	}
	if stats.MissingPages != 1 {
		t.Errorf("MissingPages = %d, want 1", stats.MissingPages)
	}
	if stats.InvalidPages != 1 {
		t.Errorf("InvalidPages = %d, want 1", stats.InvalidPages)
	}
	if stats.Skipped() != 2 {
		t.Errorf("Skipped() = %d, want 2", stats.Skipped())
	}

	wantBook := []MetadataElement{
		{Field: "TitleDocMain", Value: "Collected Essays"},
		{Field: "ISBN", Value: "978-0-00-000000-0"},
	}
	if !reflect.DeepEqual(book.Metadata.Elements, wantBook) {
		t.Errorf("book metadata = %+v, want %+v", book.Metadata.Elements, wantBook)
	}
	if len(book.Metadata.Persons) != 2 {
		t.Errorf("book persons = %d, want 2", len(book.Metadata.Persons))
	}

	if len(book.BookParts) != 2 {
		t.Fatalf("got %d book parts, want 2", len(book.BookParts))
	}

	first := book.BookParts[0]
	if first.FirstPage != 5 || first.LastPage != 12 {
		t.Errorf("part[0] range = %d-%d, want 5-12", first.FirstPage, first.LastPage)
	}
	wantPersons := []Person{{Role: "Author", FirstName: "Ann", LastName: "Smith"}}
	if !reflect.DeepEqual(first.Metadata.Persons, wantPersons) {
		t.Errorf("part[0] persons = %+v, want %+v", first.Metadata.Persons, wantPersons)
	}

	second := book.BookParts[1]
	if second.FirstPage != 31 || second.LastPage != 31 {
		t.Errorf("part[1] range = %d-%d, want 31-31", second.FirstPage, second.LastPage)
	}
	if second.PageCount() != 1 {
		t.Errorf("part[1] PageCount() = %d, want 1", second.PageCount())
	}
	wantElements := []MetadataElement{
		{Field: "TitleDocMain", Value: "Four"},
		{Field: "TitleDocSub1", Value: "A"},
		{Field: "TitleDocSub1", Value: "B"},
	}
	if !reflect.DeepEqual(second.Metadata.Elements, wantElements) {
		t.Errorf("part[1] elements = %+v, want %+v", second.Metadata.Elements, wantElements)
	}
	if len(second.Children) != 0 {
		t.Errorf("flat extraction produced %d children", len(second.Children))
	}
}

func TestExtractor_BlankPageIsSkipped(t *testing.T) {
	doc := parseFixture(t, `<book><book-part><fpage>  </fpage><lpage>3</lpage></book-part></book>`)
	rules := Rules{
		BookPart:  MustCompilePath("//book-part"),
		FirstPage: MustCompilePath("fpage"),
		LastPage:  MustCompilePath("lpage"),
	}

	book, stats := NewExtractor(rules).Extract(doc)
	if len(book.BookParts) != 0 {
		t.Errorf("got %d book parts, want 0", len(book.BookParts))
	}
	if stats.MissingPages != 1 {
		t.Errorf("MissingPages = %d, want 1", stats.MissingPages)
	}
}

func TestExtractor_InvalidRanges(t *testing.T) {
	tests := []struct {
		name  string
		fpage string
		lpage string
	}{
		{name: "inverted", fpage: "9", lpage: "3"},
		{name: "zero", fpage: "0", lpage: "3"},
		{name: "negative", fpage: "-1", lpage: "3"},
		{name: "roman numeral", fpage: "ix", lpage: "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			xml := `<book><book-part><fpage>` + tt.fpage + `</fpage><lpage>` + tt.lpage + `</lpage></book-part></book>`
			doc := parseFixture(t, xml)
			rules := Rules{
				BookPart:  MustCompilePath("//book-part"),
				FirstPage: MustCompilePath("fpage"),
				LastPage:  MustCompilePath("lpage"),
			}

			book, stats := NewExtractor(rules).Extract(doc)
			if len(book.BookParts) != 0 {
				t.Errorf("got %d book parts, want 0", len(book.BookParts))
			}
			if stats.InvalidPages != 1 {
				t.Errorf("InvalidPages = %d, want 1", stats.InvalidPages)
			}
		})
	}
}

const nestedFixture = `<book>
  <book-body>
    <book-part id="p1"><fpage>1</fpage><lpage>40</lpage>
      <body>
        <book-part id="c1"><fpage>1</fpage><lpage>20</lpage>
          <body>
            <book-part id="s1"><fpage>3</fpage><lpage>8</lpage></book-part>
          </body>
        </book-part>
        <book-part id="c2"><fpage>21</fpage><lpage>40</lpage></book-part>
      </body>
    </book-part>
    <book-part id="p2"><fpage></fpage><lpage></lpage>
      <body>
        <book-part id="c3"><fpage>41</fpage><lpage>50</lpage></book-part>
      </body>
    </book-part>
  </book-body>
</book>`

func TestExtractor_Nested(t *testing.T) {
	doc := parseFixture(t, nestedFixture)
	rules := Rules{
		BookPart:        MustCompilePath("//book-part"),
		FirstPage:       MustCompilePath("fpage"),
		LastPage:        MustCompilePath("lpage"),
		ElementMetadata: []MappingRule{{Path: MustCompilePath("@id"), Field: "CatalogIDDigital"}},
		Nested:          true,
	}

	book, stats := NewExtractor(rules).Extract(doc)
	if stats.MissingPages != 1 {
		t.Errorf("MissingPages = %d, want 1", stats.MissingPages)
	}
	if got := book.CountParts(); got != 5 {
		t.Errorf("CountParts() = %d, want 5", got)
	}

	ids := func(parts []BookPart) []string {
		var out []string
		for _, p := range parts {
			out = append(out, p.Metadata.Elements[0].Value)
		}
		return out
	}

	// c3 moves up to the top level because its parent p2 has no pages.
	if got := ids(book.BookParts); !reflect.DeepEqual(got, []string{"p1", "c3"}) {
		t.Fatalf("top level = %v, want [p1 c3]", got)
	}
	p1 := book.BookParts[0]
	if got := ids(p1.Children); !reflect.DeepEqual(got, []string{"c1", "c2"}) {
		t.Fatalf("p1 children = %v, want [c1 c2]", got)
	}
	if got := ids(p1.Children[0].Children); !reflect.DeepEqual(got, []string{"s1"}) {
		t.Errorf("c1 children = %v, want [s1]", got)
	}
}
