// Package page provides decoding and normalization of rasterized scan pages.
package page

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"markscan/internal/sheet"

	"gocv.io/x/gocv"
	_ "golang.org/x/image/tiff"
)

// PageImage is one decoded page owned transiently by a grading run.
// Gray holds the grayscale working copy all sampling operates on;
// Src keeps the original decode for QR strategies that need it.
type PageImage struct {
	Number int // 1-based page number within the batch
	Width  int
	Height int
	Scale  float64 // pixels per canonical 72-DPI layout unit
	Src    image.Image
	Gray   gocv.Mat

	// StandardDimensions is false when the scan's aspect ratio deviates
	// from the canonical page beyond tolerance. Processing continues but
	// derived positions carry reduced confidence.
	StandardDimensions bool
}

// Decode decodes raw page-image bytes (PNG, JPEG, or TIFF) into a PageImage.
func Decode(number int, data []byte) (*PageImage, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("page %d: failed to decode image: %w", number, err)
	}
	return FromImage(number, img)
}

// FromImage wraps an already-decoded image.
func FromImage(number int, img image.Image) (*PageImage, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("page %d: empty image", number)
	}

	p := &PageImage{
		Number:             number,
		Width:              w,
		Height:             h,
		Scale:              float64(w) / sheet.CanonicalWidth,
		Src:                img,
		StandardDimensions: sheet.CheckDimensions(w, h),
	}
	p.Gray = grayMatFromImage(img)
	return p, nil
}

// Close releases the page's Mat resources.
func (p *PageImage) Close() {
	if !p.Gray.Empty() {
		p.Gray.Close()
	}
}

// Rotate180 rotates the page in place. Used after orientation detection
// flags an upside-down scan; all downstream geometry assumes the corrected
// top-left origin.
func (p *PageImage) Rotate180() {
	rotated := gocv.NewMat()
	gocv.Rotate(p.Gray, &rotated, gocv.Rotate180Clockwise)
	p.Gray.Close()
	p.Gray = rotated
	p.Src = rotateImage180(p.Src)
}

// grayMatFromImage converts a Go image to a single-channel grayscale Mat
// using the Rec. 601 luma weights.
func grayMatFromImage(img image.Image) gocv.Mat {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	mat := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC1)

	// Fast path for pre-grayscale decodes
	if gray, ok := img.(*image.Gray); ok {
		for y := 0; y < h; y++ {
			row := gray.Pix[y*gray.Stride : y*gray.Stride+w]
			for x := 0; x < w; x++ {
				mat.SetUCharAt(y, x, row[x])
			}
		}
		return mat
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			lum := (299*(r>>8) + 587*(g>>8) + 114*(b>>8)) / 1000
			mat.SetUCharAt(y, x, uint8(lum))
		}
	}
	return mat
}

// rotateImage180 returns a copy of img rotated by 180 degrees.
func rotateImage180(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Set(w-1-x, h-1-y, img.At(x+bounds.Min.X, y+bounds.Min.Y))
		}
	}
	return out
}

// MatToGrayImage converts a single-channel Mat back to an image.Gray.
// QR decode strategies work in image.Image space after Mat preprocessing.
func MatToGrayImage(mat gocv.Mat) *image.Gray {
	h, w := mat.Rows(), mat.Cols()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Pix[y*out.Stride+x] = mat.GetUCharAt(y, x)
		}
	}
	return out
}
