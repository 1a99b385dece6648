// Package converter reconciles an extracted BITS book with a METS document and
// drives a whole conversion run.
package converter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/yuanying/bits2mets/internal/bits"
	"github.com/yuanying/bits2mets/internal/config"
	"github.com/yuanying/bits2mets/internal/mets"
	"github.com/yuanying/bits2mets/internal/processlog"
	"github.com/yuanying/bits2mets/internal/workspace"
)

const (
	defaultMETSName = "meta.xml"
	defaultRetries  = 3
	retryDelay      = 200 * time.Millisecond
)

// ConvertOptions holds options for the conversion pipeline.
type ConvertOptions struct {
	ProcessDir string
	METSPath   string // defaults to ProcessDir/meta.xml
	OutputPath string // defaults to METSPath
	Config     *config.Config
	Retries    uint // attempts for reading the XML source
	Log        processlog.Logger
}

// Result summarizes a conversion run.
type Result struct {
	OutputPath string
	Extract    bits.ExtractStats
	Reconcile  ReconcileStats
	Created    bool // true when no METS file existed and a new one was written
}

// Pipeline orchestrates the BITS to METS conversion.
type Pipeline struct {
	Options ConvertOptions
}

// NewPipeline creates a new conversion pipeline.
func NewPipeline(opts ConvertOptions) *Pipeline {
	if opts.METSPath == "" {
		opts.METSPath = filepath.Join(opts.ProcessDir, defaultMETSName)
	}
	if opts.OutputPath == "" {
		opts.OutputPath = opts.METSPath
	}
	if opts.Retries == 0 {
		opts.Retries = defaultRetries
	}
	if opts.Log == nil {
		opts.Log = processlog.Discard
	}
	return &Pipeline{Options: opts}
}

// Convert executes the conversion pipeline. The context is checked between
// stages; the METS file is only replaced once reconciliation has finished.
func (p *Pipeline) Convert(ctx context.Context) (*Result, error) {
	cfg := p.Options.Config
	if cfg == nil {
		return nil, fmt.Errorf("%w: no configuration", config.ErrMissingField)
	}
	rules, err := cfg.Rules()
	if err != nil {
		return nil, err
	}
	ruleset, err := cfg.LoadRuleset()
	if err != nil {
		return nil, fmt.Errorf("failed to load ruleset: %w", err)
	}

	ws, err := workspace.Discover(p.Options.ProcessDir)
	if err != nil {
		return nil, fmt.Errorf("failed to discover input files: %w", err)
	}
	p.checkWorkspace(ws)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, created, err := p.loadDocument(ruleset)
	if err != nil {
		return nil, err
	}

	source, err := p.readSource(ctx, ws.XMLPath)
	if err != nil {
		return nil, err
	}

	book, stats := bits.NewExtractor(rules).Extract(source)
	if n := stats.Skipped(); n > 0 {
		p.Options.Log.Log(fmt.Sprintf("There were %d bookPart elements without lpage or fpage element. The metadata of these Elements could not be mapped to the structure!", n), processlog.Warn, true)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	linker := NewPageLinker(doc, ws.Images, cfg.PageType, p.Options.Log)
	rec, err := NewReconciler(doc, cfg.StructureTypeBits, cfg.StructureTypePDF, NewOverridePolicy(cfg.OverrideFields...), linker, p.Options.Log)
	if err != nil {
		return nil, err
	}
	recStats := rec.MapBook(book)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := mets.WriteFile(p.Options.OutputPath, doc); err != nil {
		return nil, fmt.Errorf("failed to write METS: %w", err)
	}

	return &Result{
		OutputPath: p.Options.OutputPath,
		Extract:    stats,
		Reconcile:  recStats,
		Created:    created,
	}, nil
}

// checkWorkspace logs the non-fatal findings of discovery.
func (p *Pipeline) checkWorkspace(ws *workspace.Workspace) {
	log := p.Options.Log
	for _, name := range ws.Unrecognized {
		log.Log(fmt.Sprintf("warning: %s was not recognized as an image", name), processlog.Warn, true)
	}

	if ws.PDFPath != "" {
		n, err := workspace.PDFPageCount(ws.PDFPath)
		switch {
		case err != nil:
			log.Log(fmt.Sprintf("warning: failed to count pages of %s: %v", filepath.Base(ws.PDFPath), err), processlog.Warn, false)
		case n != len(ws.Images):
			log.Log(fmt.Sprintf("warning: %s has %d pages but %d page images were found", filepath.Base(ws.PDFPath), n, len(ws.Images)), processlog.Warn, true)
		}
	}

	if p.Options.Config.VerifyImages {
		for _, err := range workspace.VerifyImages(ws.Images) {
			log.Log(fmt.Sprintf("warning: %v", err), processlog.Warn, true)
		}
	}
}

// loadDocument reads the METS file, or creates an empty document when it
// does not exist yet.
func (p *Pipeline) loadDocument(rs *mets.Ruleset) (*mets.Document, bool, error) {
	doc, err := mets.ReadFile(p.Options.METSPath, rs)
	if err == nil {
		return doc, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, fmt.Errorf("failed to read METS: %w", err)
	}

	cfg := p.Options.Config
	doc, err = mets.NewDocument(rs, cfg.TopStructType, cfg.PhysicalRootType)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create METS document: %w", err)
	}
	p.Options.Log.Log(fmt.Sprintf("no METS file at %s, creating a new document", p.Options.METSPath), processlog.Info, true)
	return doc, true, nil
}

// readSource parses the XML source, retrying transient read failures.
func (p *Pipeline) readSource(ctx context.Context, path string) (*bits.Document, error) {
	opts := bits.ReadOptions{AllowDoctype: p.Options.Config.AllowDoctype}

	var doc *bits.Document
	err := retry.Do(
		func() error {
			var err error
			doc, err = bits.Open(path, opts)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(p.Options.Retries),
		retry.Delay(retryDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isTransient),
		retry.OnRetry(func(n uint, err error) {
			p.Options.Log.Log(fmt.Sprintf("warning: failed to read %s (attempt %d): %v", filepath.Base(path), n+1, err), processlog.Warn, false)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read XML source: %w", err)
	}
	return doc, nil
}

// isTransient reports whether a source read error may succeed on retry.
// Parse errors and missing files never do.
func isTransient(err error) bool {
	var pathErr *fs.PathError
	return errors.As(err, &pathErr) && !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, fs.ErrPermission)
}
