package converter

import (
	"fmt"

	"github.com/yuanying/bits2mets/internal/bits"
	"github.com/yuanying/bits2mets/internal/mets"
	"github.com/yuanying/bits2mets/internal/processlog"
)

// ReconcileStats counts what happened to the extracted book parts.
type ReconcileStats struct {
	Matched int `json:"matched" yaml:"matched"`
	Created int `json:"created" yaml:"created"`
	Failed  int `json:"failed" yaml:"failed"`
}

// Reconciler merges an extracted book into a document: book parts that match
// an existing node by page range enrich that node, the rest become new nodes.
type Reconciler struct {
	doc      *mets.Document
	bitsType *mets.StructType
	pdfType  string
	policy   OverridePolicy
	linker   *PageLinker
	log      processlog.Logger

	index   PageIndex
	stats   ReconcileStats
	quietly bool
}

// NewReconciler creates a reconciler that types matched and created nodes as
// bitsType and indexes existing nodes of pdfType.
func NewReconciler(doc *mets.Document, bitsType, pdfType string, policy OverridePolicy, linker *PageLinker, log processlog.Logger) (*Reconciler, error) {
	t, err := doc.Ruleset.StructType(bitsType)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve structure type: %w", err)
	}
	if _, err := doc.Ruleset.StructType(pdfType); err != nil {
		return nil, fmt.Errorf("failed to resolve structure type: %w", err)
	}
	if log == nil {
		log = processlog.Discard
	}
	return &Reconciler{
		doc:      doc,
		bitsType: t,
		pdfType:  pdfType,
		policy:   policy,
		linker:   linker,
		log:      log,
		index:    make(PageIndex),
	}, nil
}

// MapBook merges the publication metadata into the logical root and
// reconciles every book part below it. The page index is rebuilt on every
// call.
func (r *Reconciler) MapBook(book *bits.Book) ReconcileStats {
	r.stats = ReconcileStats{}
	root := r.doc.Logical()

	r.MergeMetadata(root, book.Metadata, true)

	r.index = BuildIndex(root, r.pdfType, r.log)
	r.quietly = r.index.Len() == 0
	if r.quietly {
		r.log.Log("No Element with physical pages detected", processlog.Info, true)
	}

	r.Reconcile(root, book.BookParts)
	return r.stats
}

// Reconcile handles parts below parent, recursing into their children.
func (r *Reconciler) Reconcile(parent *mets.DocStruct, parts []bits.BookPart) {
	for _, part := range parts {
		if entry, ok := r.index.Lookup(part.FirstPage, part.LastPage); ok {
			entry.Node.SetType(r.bitsType)
			r.MergeMetadata(entry.Node, part.Metadata, true)
			r.stats.Matched++
			r.Reconcile(entry.Node, part.Children)
			continue
		}

		if !r.quietly {
			r.log.Log(fmt.Sprintf("Couldn't find matching docstruct for element with start page: %d and last page: %d. New element will be added to %s",
				part.FirstPage, part.LastPage, parent.TypeName()), processlog.Info, true)
		}

		node, err := r.createNode(parent, part)
		if err != nil {
			r.log.Log(fmt.Sprintf("failed to add element for pages %d-%d: %v, skipping", part.FirstPage, part.LastPage, err), processlog.Error, true)
			r.stats.Failed += 1 + countParts(part.Children)
			continue
		}
		r.stats.Created++
		r.Reconcile(node, part.Children)
	}
}

// MergeMetadata merges md into node using the reconciler's override policy.
func (r *Reconciler) MergeMetadata(node *mets.DocStruct, md bits.ParsedMetadata, override bool) {
	MergeMetadata(r.doc, node, md, override, r.policy, r.log)
}

func (r *Reconciler) createNode(parent *mets.DocStruct, part bits.BookPart) (*mets.DocStruct, error) {
	node, err := r.doc.CreateDocStruct(r.bitsType.Name)
	if err != nil {
		return nil, err
	}
	if err := parent.AddChild(node); err != nil {
		return nil, err
	}
	r.MergeMetadata(node, part.Metadata, false)
	if r.linker != nil {
		r.linker.LinkPages(node, part.FirstPage, part.LastPage)
	}
	return node, nil
}

func countParts(parts []bits.BookPart) int {
	n := len(parts)
	for _, p := range parts {
		n += countParts(p.Children)
	}
	return n
}
