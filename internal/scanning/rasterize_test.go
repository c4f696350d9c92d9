package scanning

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func writeJPEG(path string, w, h int) {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.Black)
	}
	var buf bytes.Buffer
	Expect(jpeg.Encode(&buf, img, nil)).To(Succeed())
	Expect(os.WriteFile(path, buf.Bytes(), 0644)).To(Succeed())
}

var _ = Describe("Rasterizer", func() {
	var (
		dir        string
		rasterizer *Rasterizer
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		rasterizer = NewRasterizer(RasterOptions{MaxDimension: 100})
	})

	When("the document is a large image", func() {
		var path string

		BeforeEach(func() {
			path = filepath.Join(dir, "scan.jpg")
			writeJPEG(path, 400, 200)
		})

		It("should produce one PNG page bounded by the max dimension", func() {
			pages, err := rasterizer.Rasterize(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(pages).To(HaveLen(1))
			Expect(pages[0].Number).To(Equal(1))

			img, err := png.Decode(bytes.NewReader(pages[0].PNG))
			Expect(err).NotTo(HaveOccurred())
			Expect(img.Bounds().Dx()).To(Equal(100))
			Expect(img.Bounds().Dy()).To(Equal(50))
		})

		It("should count one page", func() {
			n, err := rasterizer.PageCount(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))
		})
	})

	When("the document is a small image", func() {
		It("should not scale it up", func() {
			path := filepath.Join(dir, "small.jpg")
			writeJPEG(path, 40, 20)

			pages, err := rasterizer.Rasterize(path)
			Expect(err).NotTo(HaveOccurred())
			img, err := png.Decode(bytes.NewReader(pages[0].PNG))
			Expect(err).NotTo(HaveOccurred())
			Expect(img.Bounds().Dx()).To(Equal(40))
		})
	})

	When("the document format is unknown", func() {
		It("returns the error", func() {
			path := filepath.Join(dir, "notes.txt")
			Expect(os.WriteFile(path, []byte("hello"), 0644)).To(Succeed())

			_, err := rasterizer.Rasterize(path)
			Expect(err).To(MatchError(ContainSubstring("unsupported document format")))
		})
	})

	When("the file does not exist", func() {
		It("returns the error", func() {
			_, err := rasterizer.Rasterize(filepath.Join(dir, "missing.pdf"))
			Expect(err).To(MatchError(ContainSubstring("reading document")))
			_, err = rasterizer.PageCount(filepath.Join(dir, "missing.pdf"))
			Expect(err).To(HaveOccurred())
		})
	})

	It("should fill in default options", func() {
		r := NewRasterizer(RasterOptions{})
		Expect(r.opts.DPI).To(Equal(float64(DefaultDPI)))
		Expect(r.opts.MaxDimension).To(Equal(DefaultMaxDimension))
	})
})

var _ = Describe("isHEICFormat", func() {
	It("should detect HEIC brands", func() {
		Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypheic\x00\x00"))).To(BeTrue())
		Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypmif1\x00\x00"))).To(BeTrue())
	})

	It("should reject other data", func() {
		Expect(isHEICFormat([]byte("%PDF-1.4 ......"))).To(BeFalse())
		Expect(isHEICFormat([]byte("short"))).To(BeFalse())
	})
})
