// Package orientation detects upside-down scans from the printed corner marks.
//
// Each sheet carries a filled square at the top-left corner and a filled
// circle at the bottom-right. Both sample regions are the mark's bounding
// square, so a filled square reads darker than a filled circle (the circle
// covers ~pi/4 of its bounding box). Comparing the two corners therefore
// distinguishes a 180-degree rotated scan without any feature matching.
package orientation

import (
	"markscan/internal/page"
	"markscan/internal/sheet"
	"markscan/pkg/geometry"

	"gocv.io/x/gocv"
)

const (
	// lumaThreshold separates "dark" mark pixels from paper.
	lumaThreshold = 128

	// minMarkDarkness is the fraction of dark pixels a region must reach
	// to count as containing a mark at all.
	minMarkDarkness = 0.40

	// squareCircleMargin is the minimum darkness difference (in fraction
	// of pixels) before the square/circle comparison is trusted.
	squareCircleMargin = 0.05
)

// Result holds the orientation decision and the measurements behind it.
type Result struct {
	UpsideDown bool

	// Darkness fractions of the two expected mark regions.
	SquareDarkness float64
	CircleDarkness float64

	// MarksFound is false when neither diagonal showed convincing marks;
	// the detector then fails open and reports "not rotated".
	MarksFound bool
}

// Detect decides whether a page is scanned upside down. It must run before
// any position-based sampling, since all layout geometry assumes a top-left
// origin at normal orientation.
func Detect(p *page.PageImage, layout *sheet.Layout) Result {
	scale := p.Scale

	squareRegion := layout.SquareMarkRegion().Scale(scale).ToInt()
	circleRegion := layout.CircleMarkRegion().Scale(scale).ToInt()

	sq := regionDarkness(p.Gray, squareRegion)
	ci := regionDarkness(p.Gray, circleRegion)

	res := Result{SquareDarkness: sq, CircleDarkness: ci}

	if sq > minMarkDarkness && ci > minMarkDarkness {
		// Both expected corners carry a mark. At normal orientation the
		// square corner is the darker one; upside down puts the square
		// at the circle's corner and flips the comparison.
		res.MarksFound = true
		res.UpsideDown = ci-sq > squareCircleMargin
		return res
	}

	// Expected diagonal empty: if the opposite diagonal is dark instead,
	// the marks are there and the page is rotated.
	tr := regionDarkness(p.Gray, mirrorX(layout.SquareMarkRegion(), scale, p.Width))
	bl := regionDarkness(p.Gray, mirrorX(layout.CircleMarkRegion(), scale, p.Width))
	if tr > minMarkDarkness && bl > minMarkDarkness {
		res.MarksFound = true
		res.UpsideDown = true
		return res
	}

	// No convincing marks anywhere. Fail open: downstream detection
	// degrades gracefully on an uncorrected page, whereas a wrong flip
	// ruins every sampled position.
	return res
}

// regionDarkness returns the fraction of pixels darker than lumaThreshold
// inside the region, clamped to the image bounds.
func regionDarkness(gray gocv.Mat, r geometry.RectInt) float64 {
	r = r.Clamp(gray.Cols(), gray.Rows())
	if r.Empty() {
		return 0
	}

	dark := 0
	for y := r.Y; y < r.Y+r.Height; y++ {
		for x := r.X; x < r.X+r.Width; x++ {
			if gray.GetUCharAt(y, x) < lumaThreshold {
				dark++
			}
		}
	}
	return float64(dark) / float64(r.Width*r.Height)
}

// mirrorX reflects a canonical-unit region across the vertical page axis
// and scales it to pixels, yielding the opposite-diagonal sample position.
func mirrorX(r geometry.Rect, scale float64, imageWidth int) geometry.RectInt {
	mirrored := geometry.Rect{
		X:      sheet.CanonicalWidth - r.X - r.Width,
		Y:      r.Y,
		Width:  r.Width,
		Height: r.Height,
	}
	out := mirrored.Scale(scale).ToInt()
	// Guard against rounding drift at the right edge
	if out.X+out.Width > imageWidth {
		out.X = imageWidth - out.Width
	}
	return out
}
