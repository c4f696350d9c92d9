package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// Rendering defaults.
const (
	DefaultDPI          = 138
	DefaultMaxDimension = 2000
)

// RasterOptions controls how documents are turned into page images.
type RasterOptions struct {
	// DPI used to render PDF pages.
	DPI float64
	// MaxDimension bounds the longer side of every page, in pixels.
	// Larger pages are scaled down; smaller ones are left alone.
	MaxDimension int
}

func (o RasterOptions) withDefaults() RasterOptions {
	if o.DPI <= 0 {
		o.DPI = DefaultDPI
	}
	if o.MaxDimension <= 0 {
		o.MaxDimension = DefaultMaxDimension
	}
	return o
}

// Rasterizer renders documents from disk.
type Rasterizer struct {
	opts RasterOptions
}

// NewRasterizer creates a Rasterizer; zero options take the defaults.
func NewRasterizer(opts RasterOptions) *Rasterizer {
	return &Rasterizer{opts: opts.withDefaults()}
}

// Rasterize renders every page of a PDF, or the single page of an image, as
// PNG. Supported formats: PDF, JPEG, PNG, GIF, HEIC, HEIF.
func (r *Rasterizer) Rasterize(path string) ([]Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}

	if isPDF(path, data) {
		return r.pdfPages(data)
	}

	img, err := decodeImage(path, data)
	if err != nil {
		return nil, err
	}
	page, err := r.encode(img, 1)
	if err != nil {
		return nil, err
	}
	return []Page{page}, nil
}

// PageCount returns the number of pages without rendering them. Images have
// one page.
func (r *Rasterizer) PageCount(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading document: %w", err)
	}
	if !isPDF(path, data) {
		return 1, nil
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return 0, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()
	return doc.NumPage(), nil
}

func (r *Rasterizer) pdfPages(data []byte) ([]Page, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	pages := make([]Page, 0, doc.NumPage())
	for n := 0; n < doc.NumPage(); n++ {
		img, err := doc.ImageDPI(n, r.opts.DPI)
		if err != nil {
			return nil, fmt.Errorf("rendering PDF page %d: %w", n+1, err)
		}
		page, err := r.encode(img, n+1)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, nil
}

func (r *Rasterizer) encode(img image.Image, number int) (Page, error) {
	img = imaging.Fit(img, r.opts.MaxDimension, r.opts.MaxDimension, imaging.Lanczos)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Page{}, fmt.Errorf("encoding page %d as PNG: %w", number, err)
	}
	return Page{Number: number, PNG: buf.Bytes()}, nil
}

func isPDF(path string, data []byte) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf") || bytes.HasPrefix(data, []byte("%PDF-"))
}

// decodeImage decodes JPEG, PNG, GIF and HEIC/HEIF images
func decodeImage(path string, data []byte) (image.Image, error) {
	// Go's standard image package doesn't support HEIC
	if isHEICFormat(data) || isHEICExtension(path) {
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if strings.Contains(err.Error(), "unknown format") {
			return nil, fmt.Errorf("unsupported document format. Supported formats: PDF, JPEG, PNG, GIF, HEIC, HEIF. Error: %w", err)
		}
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// isHEICFormat checks if the image data is in HEIC/HEIF format
// HEIC files carry an ftyp box at offset 4 with a HEIC-related brand
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	brand := string(data[8:12])
	return brand == "heic" || brand == "heif" || brand == "mif1" || brand == "msf1"
}

func isHEICExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".heic" || ext == ".heif"
}
