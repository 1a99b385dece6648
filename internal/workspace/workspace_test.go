package workspace

import (
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func writeImage(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	img := imaging.New(4, 4, color.White)
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("imaging.Save() error = %v", err)
	}
}

func newProcessDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, SourceDir, "book.XML"), []byte(`<book/>`))
	writeFile(t, filepath.Join(dir, SourceDir, "book.pdf"), []byte("%PDF-1.4"))
	writeFile(t, filepath.Join(dir, SourceDir, ".hidden.xml"), []byte(`<book/>`))
	writeImage(t, filepath.Join(dir, ImagesDir, "00000002.png"))
	writeImage(t, filepath.Join(dir, ImagesDir, "00000001.tif"))
	writeFile(t, filepath.Join(dir, ImagesDir, "notes.txt"), []byte("x"))
	return dir
}

func TestDiscover(t *testing.T) {
	dir := newProcessDir(t)
	writeFile(t, filepath.Join(dir, ImagesDir, "00000003.jpg"), []byte("not really an image"))

	ws, err := Discover(dir)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if want := filepath.Join(dir, SourceDir, "book.XML"); ws.XMLPath != want {
		t.Errorf("XMLPath = %q, want %q", ws.XMLPath, want)
	}
	if want := filepath.Join(dir, SourceDir, "book.pdf"); ws.PDFPath != want {
		t.Errorf("PDFPath = %q, want %q", ws.PDFPath, want)
	}

	if len(ws.Images) != 3 {
		t.Fatalf("got %d images, want 3", len(ws.Images))
	}
	tests := []struct {
		name, mime string
	}{
		{"00000001.tif", "image/tiff"},
		{"00000002.png", "image/png"},
		{"00000003.jpg", "image/jpeg"},
	}
	for i, tt := range tests {
		if ws.Images[i].Name != tt.name {
			t.Errorf("Images[%d].Name = %q, want %q", i, ws.Images[i].Name, tt.name)
		}
		if ws.Images[i].MimeType != tt.mime {
			t.Errorf("Images[%d].MimeType = %q, want %q", i, ws.Images[i].MimeType, tt.mime)
		}
	}
	if len(ws.Unrecognized) != 1 || ws.Unrecognized[0] != "00000003.jpg" {
		t.Errorf("Unrecognized = %v, want [00000003.jpg]", ws.Unrecognized)
	}
}

func TestDiscover_UnrecognizedImageKeepsPosition(t *testing.T) {
	dir := newProcessDir(t)
	writeFile(t, filepath.Join(dir, ImagesDir, "00000001.tif"), nil)
	writeImage(t, filepath.Join(dir, ImagesDir, "00000003.png"))

	ws, err := Discover(dir)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	want := []string{"00000001.tif", "00000002.png", "00000003.png"}
	if len(ws.Images) != len(want) {
		t.Fatalf("got %d images, want %d", len(ws.Images), len(want))
	}
	for i, name := range want {
		if ws.Images[i].Name != name {
			t.Errorf("Images[%d].Name = %q, want %q", i, ws.Images[i].Name, name)
		}
	}
	if ws.Images[0].MimeType != "image/tiff" {
		t.Errorf("Images[0].MimeType = %q, want image/tiff", ws.Images[0].MimeType)
	}
	if len(ws.Unrecognized) != 1 || ws.Unrecognized[0] != "00000001.tif" {
		t.Errorf("Unrecognized = %v, want [00000001.tif]", ws.Unrecognized)
	}
}

func TestDiscover_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, dir string)
		want  error
	}{
		{
			name: "no xml",
			setup: func(t *testing.T, dir string) {
				writeFile(t, filepath.Join(dir, SourceDir, "book.pdf"), []byte("%PDF"))
				writeImage(t, filepath.Join(dir, ImagesDir, "1.png"))
			},
			want: ErrNoSource,
		},
		{
			name: "two xml files",
			setup: func(t *testing.T, dir string) {
				writeFile(t, filepath.Join(dir, SourceDir, "a.xml"), []byte(`<a/>`))
				writeFile(t, filepath.Join(dir, SourceDir, "b.xml"), []byte(`<b/>`))
				writeImage(t, filepath.Join(dir, ImagesDir, "1.png"))
			},
			want: ErrMultipleSources,
		},
		{
			name: "no images",
			setup: func(t *testing.T, dir string) {
				writeFile(t, filepath.Join(dir, SourceDir, "a.xml"), []byte(`<a/>`))
				if err := os.MkdirAll(filepath.Join(dir, ImagesDir, "sub.png"), 0o755); err != nil {
					t.Fatal(err)
				}
			},
			want: ErrNoImages,
		},
		{
			name:  "missing source directory",
			setup: func(t *testing.T, dir string) {},
			want:  os.ErrNotExist,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.setup(t, dir)
			_, err := Discover(dir)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Discover() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestVerifyImages(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.png")
	writeImage(t, good)
	bad := filepath.Join(dir, "bad.png")
	writeFile(t, bad, []byte("\x89PNG\r\n\x1a\ntruncated"))
	jp2 := filepath.Join(dir, "page.jp2")
	writeFile(t, jp2, []byte("unchecked"))

	errs := VerifyImages([]Image{
		{Path: good, Name: "good.png"},
		{Path: bad, Name: "bad.png"},
		{Path: jp2, Name: "page.jp2"},
	})
	if len(errs) != 1 {
		t.Fatalf("VerifyImages() returned %d errors, want 1: %v", len(errs), errs)
	}
	if !errors.Is(errs[0], ErrUnreadableImage) {
		t.Errorf("error = %v, want ErrUnreadableImage", errs[0])
	}
}

func TestPDFPageCount_Errors(t *testing.T) {
	if _, err := PDFPageCount(filepath.Join(t.TempDir(), "missing.pdf")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("PDFPageCount(missing) error = %v, want os.ErrNotExist", err)
	}

	path := filepath.Join(t.TempDir(), "broken.pdf")
	writeFile(t, path, []byte("this is not a pdf"))
	if _, err := PDFPageCount(path); err == nil {
		t.Error("PDFPageCount(broken) error = nil, want error")
	}
}
