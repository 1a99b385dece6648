package converter

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/yuanying/bits2mets/internal/mets"
	"github.com/yuanying/bits2mets/internal/processlog"
	"github.com/yuanying/bits2mets/internal/workspace"
)

const uncountedPage = "uncounted"

// ErrImageIndexOutOfRange is reported when a page number has no page image.
var ErrImageIndexOutOfRange = errors.New("image index out of range")

// PageLinker connects logical nodes to physical pages, creating the pages
// from the sorted page images on first use.
type PageLinker struct {
	doc      *mets.Document
	images   []workspace.Image
	pageType string
	log      processlog.Logger

	pages map[int]*mets.DocStruct
}

// NewPageLinker creates a linker for doc. Images are ordered by file name and
// image i (1-based) backs page i.
func NewPageLinker(doc *mets.Document, images []workspace.Image, pageType string, log processlog.Logger) *PageLinker {
	if log == nil {
		log = processlog.Discard
	}
	sorted := slices.Clone(images)
	slices.SortFunc(sorted, func(a, b workspace.Image) int {
		return strings.Compare(a.Name, b.Name)
	})
	return &PageLinker{
		doc:      doc,
		images:   sorted,
		pageType: pageType,
		log:      log,
	}
}

// LinkPages references every page in [first, last] from node. Pages that
// cannot be resolved are logged and skipped. It returns the number of pages
// linked.
func (l *PageLinker) LinkPages(node *mets.DocStruct, first, last int) int {
	linked := 0
	for n := first; n <= last; n++ {
		page, err := l.page(n)
		if err != nil {
			l.log.Log(fmt.Sprintf("Couldn't add page %d to structure %s: %v", n, node.TypeName(), err), processlog.Error, true)
			continue
		}
		node.AddReferenceTo(page)
		linked++
	}
	return linked
}

// page returns the physical page numbered n, creating it if needed.
func (l *PageLinker) page(n int) (*mets.DocStruct, error) {
	if l.pages == nil {
		l.pages = existingPages(l.doc.Physical())
	}
	if p, ok := l.pages[n]; ok {
		return p, nil
	}
	if n < 1 || n > len(l.images) {
		return nil, fmt.Errorf("%w: page %d, %d images", ErrImageIndexOutOfRange, n, len(l.images))
	}

	p, err := l.doc.CreateDocStruct(l.pageType)
	if err != nil {
		return nil, err
	}
	num, err := l.doc.NewMetadata(mets.PhysPageNumber, strconv.Itoa(n))
	if err != nil {
		return nil, err
	}
	if err := p.AddMetadata(num); err != nil {
		return nil, err
	}
	label, err := l.doc.NewMetadata(mets.LogicalPageNumber, uncountedPage)
	if err != nil {
		return nil, err
	}
	if err := p.AddMetadata(label); err != nil {
		return nil, err
	}

	img := l.images[n-1]
	p.AddContentFile(mets.ContentFile{Location: "file://" + img.Name, MimeType: img.MimeType})

	root := l.doc.Physical()
	if err := root.InsertChild(insertPosition(root, n), p); err != nil {
		return nil, err
	}
	l.pages[n] = p
	return p, nil
}

// insertPosition returns the index of the first child of root numbered after
// page n, so the physical pages stay in page order.
func insertPosition(root *mets.DocStruct, n int) int {
	for i, c := range root.Children() {
		if num, ok := pageNumber(c); ok && num > n {
			return i
		}
	}
	return len(root.Children())
}

func pageNumber(ds *mets.DocStruct) (int, bool) {
	for _, md := range ds.MetadataByType(mets.PhysPageNumber) {
		if n, err := strconv.Atoi(strings.TrimSpace(md.Value)); err == nil {
			return n, true
		}
	}
	return 0, false
}

// existingPages indexes the physical tree by page number. The first page
// with a given number wins.
func existingPages(root *mets.DocStruct) map[int]*mets.DocStruct {
	pages := make(map[int]*mets.DocStruct)
	if root == nil {
		return pages
	}
	root.Walk(func(ds *mets.DocStruct) {
		for _, md := range ds.MetadataByType(mets.PhysPageNumber) {
			n, err := strconv.Atoi(strings.TrimSpace(md.Value))
			if err != nil {
				continue
			}
			if _, dup := pages[n]; !dup {
				pages[n] = ds
			}
		}
	})
	return pages
}
