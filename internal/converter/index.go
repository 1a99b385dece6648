package converter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yuanying/bits2mets/internal/mets"
	"github.com/yuanying/bits2mets/internal/processlog"
)

// PageIndexEntry points at a logical node that covers a page range. The node
// belongs to the document; the index only borrows it.
type PageIndexEntry struct {
	Node      *mets.DocStruct
	FirstPage int
	LastPage  int
}

// PageIndex maps a first page to the entries starting on it, in discovery
// order.
type PageIndex map[int][]PageIndexEntry

// BuildIndex walks the children of root whose type is typeName, descending
// through children of the same type, and indexes every node that references
// at least one physical page with a numeric physPageNumber.
func BuildIndex(root *mets.DocStruct, typeName string, log processlog.Logger) PageIndex {
	if log == nil {
		log = processlog.Discard
	}
	idx := make(PageIndex)
	if root == nil {
		return idx
	}
	for _, child := range root.ChildrenByType(typeName) {
		idx.populate(child, typeName, log)
	}
	return idx
}

func (idx PageIndex) populate(node *mets.DocStruct, typeName string, log processlog.Logger) {
	first, last, ok := pageRange(node, log)
	if ok {
		idx[first] = append(idx[first], PageIndexEntry{Node: node, FirstPage: first, LastPage: last})
	}
	for _, child := range node.ChildrenByType(typeName) {
		idx.populate(child, typeName, log)
	}
}

// pageRange returns the smallest and largest physical page number referenced
// by node.
func pageRange(node *mets.DocStruct, log processlog.Logger) (first, last int, ok bool) {
	for _, ref := range node.References() {
		for _, md := range ref.MetadataByType(mets.PhysPageNumber) {
			n, err := strconv.Atoi(strings.TrimSpace(md.Value))
			if err != nil {
				log.Log(fmt.Sprintf("ignoring non-numeric %s %q on %s", mets.PhysPageNumber, md.Value, node.TypeName()), processlog.Debug, false)
				continue
			}
			if !ok {
				first, last, ok = n, n, true
				continue
			}
			first = min(first, n)
			last = max(last, n)
		}
	}
	return first, last, ok
}

// Lookup returns the first entry that starts on first and ends on last.
func (idx PageIndex) Lookup(first, last int) (PageIndexEntry, bool) {
	for _, e := range idx[first] {
		if e.LastPage == last {
			return e, true
		}
	}
	return PageIndexEntry{}, false
}

// Len returns the number of indexed nodes.
func (idx PageIndex) Len() int {
	n := 0
	for _, entries := range idx {
		n += len(entries)
	}
	return n
}
