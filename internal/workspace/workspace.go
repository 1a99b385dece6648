// Package workspace finds the input files of a process directory: the BITS
// XML source, an optional PDF, and the scanned page images.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

const (
	SourceDir = "source"
	ImagesDir = "images"
)

var (
	ErrNoSource        = errors.New("no XML source found")
	ErrMultipleSources = errors.New("more than one XML source found")
	ErrNoImages        = errors.New("no page images found")
	ErrUnreadableImage = errors.New("unreadable page image")
)

var (
	xmlFile   = regexp.MustCompile(`(?i)\.xml$`)
	pdfFile   = regexp.MustCompile(`(?i)\.pdf$`)
	imageFile = regexp.MustCompile(`(?i)\.(tif|tiff|jpg|jpeg|png|jp2)$`)
)

// extensionTypes is used when the content of an image file is not recognized.
var extensionTypes = map[string]string{
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".jp2":  "image/jp2",
}

// Image is a page image file.
type Image struct {
	Path     string
	Name     string
	MimeType string
}

// Workspace lists the input files of one process directory.
type Workspace struct {
	Dir     string
	XMLPath string
	PDFPath string // empty when the source directory has no PDF
	Images  []Image
	// Unrecognized holds image-named files whose content was not detected as
	// an image. They stay in Images so page positions never shift.
	Unrecognized []string
}

// Discover scans dir/source and dir/images. Hidden files and directories are
// ignored. Exactly one XML file and at least one page image are required.
func Discover(dir string) (*Workspace, error) {
	ws := &Workspace{Dir: dir}

	sources, err := listFiles(filepath.Join(dir, SourceDir))
	if err != nil {
		return nil, fmt.Errorf("failed to list source directory: %w", err)
	}
	var xmls []string
	for _, name := range sources {
		switch {
		case xmlFile.MatchString(name):
			xmls = append(xmls, filepath.Join(dir, SourceDir, name))
		case pdfFile.MatchString(name) && ws.PDFPath == "":
			ws.PDFPath = filepath.Join(dir, SourceDir, name)
		}
	}
	switch len(xmls) {
	case 0:
		return nil, fmt.Errorf("%w in %s", ErrNoSource, filepath.Join(dir, SourceDir))
	case 1:
		ws.XMLPath = xmls[0]
	default:
		return nil, fmt.Errorf("%w: %s", ErrMultipleSources, strings.Join(xmls, ", "))
	}

	names, err := listFiles(filepath.Join(dir, ImagesDir))
	if err != nil {
		return nil, fmt.Errorf("failed to list images directory: %w", err)
	}
	for _, name := range names {
		if !imageFile.MatchString(name) {
			continue
		}
		path := filepath.Join(dir, ImagesDir, name)
		img := Image{Path: path, Name: name}
		mtype, err := mimetype.DetectFile(path)
		if err == nil && strings.HasPrefix(mtype.String(), "image/") {
			img.MimeType = mtype.String()
		} else {
			img.MimeType = extensionTypes[strings.ToLower(filepath.Ext(name))]
			ws.Unrecognized = append(ws.Unrecognized, name)
		}
		ws.Images = append(ws.Images, img)
	}
	if len(ws.Images) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoImages, filepath.Join(dir, ImagesDir))
	}
	return ws, nil
}

// listFiles returns the sorted names of the visible regular files in dir.
func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)
	return names, nil
}

// PDFPageCount returns the number of pages of the PDF at path.
func PDFPageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	n, err := api.PageCount(f, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count PDF pages: %w", err)
	}
	return n, nil
}

// VerifyImages decodes every image in a format the decoder supports and
// returns one error per image that fails.
func VerifyImages(images []Image) []error {
	var errs []error
	for _, img := range images {
		if _, err := imaging.FormatFromFilename(img.Name); err != nil {
			continue
		}
		if _, err := imaging.Open(img.Path); err != nil {
			errs = append(errs, fmt.Errorf("%w %s: %v", ErrUnreadableImage, img.Name, err))
		}
	}
	return errs
}
