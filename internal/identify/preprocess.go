package identify

import (
	"image"

	"markscan/internal/page"
	"markscan/pkg/geometry"

	"gocv.io/x/gocv"
	xdraw "golang.org/x/image/draw"
)

// upscale resizes an image by the given factor using Catmull-Rom
// interpolation. The QR decoder works in image.Image space, so scaling
// happens there rather than via a Mat round trip.
func upscale(img image.Image, factor float64) image.Image {
	if factor == 1.0 {
		return img
	}
	bounds := img.Bounds()
	w := int(float64(bounds.Dx()) * factor)
	h := int(float64(bounds.Dy()) * factor)
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(out, out.Bounds(), img, bounds, xdraw.Over, nil)
	return out
}

// crop extracts a region of an image, clamped to its bounds.
func crop(img image.Image, r geometry.RectInt) image.Image {
	bounds := img.Bounds()
	r = r.Clamp(bounds.Dx(), bounds.Dy())
	if r.Empty() {
		return img
	}
	rect := image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height).Add(bounds.Min)

	type subImager interface {
		SubImage(image.Rectangle) image.Image
	}
	if si, ok := img.(subImager); ok {
		return si.SubImage(rect)
	}

	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	xdraw.Copy(out, image.Point{}, img, rect, xdraw.Over, nil)
	return out
}

// rotate180 flips an image for the forced-rotation decode strategy, which
// covers pages where corner-mark orientation detection itself failed.
func rotate180(img image.Image) image.Image {
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

// sharpen applies an unsharp mask through OpenCV and returns the result as a
// grayscale image. Helps soft phone-camera scans where module edges blur.
func sharpen(gray gocv.Mat) *image.Gray {
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{0, 0}, 3, 3, gocv.BorderDefault)

	sharp := gocv.NewMat()
	defer sharp.Close()
	gocv.AddWeighted(gray, 1.5, blurred, -0.5, 0, &sharp)

	return page.MatToGrayImage(sharp)
}

// binarize applies a fixed threshold and returns the result as a grayscale
// image. A hard split sometimes recovers symbols that adaptive binarizers
// inside the decoder give up on.
func binarize(gray gocv.Mat, threshold float32) *image.Gray {
	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(gray, &binary, threshold, 255, gocv.ThresholdBinary)

	return page.MatToGrayImage(binary)
}

// invert returns the negative of a grayscale copy of img. The decoder retries
// inverted because white-on-black symbols appear when a scanner's background
// plate is dark.
func invert(img image.Image) *image.Gray {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			lum := (299*(r>>8) + 587*(g>>8) + 114*(b>>8)) / 1000
			out.Pix[y*out.Stride+x] = 255 - uint8(lum)
		}
	}
	return out
}
