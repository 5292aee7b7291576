package orientation

import (
	"image"
	"image/color"
	"math"
	"testing"

	"markscan/internal/page"
	"markscan/internal/sheet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drawMarkedPage renders a white page with the square and circle corner
// marks in their printed positions.
func drawMarkedPage(t *testing.T, layout *sheet.Layout) *image.Gray {
	t.Helper()

	img := image.NewGray(image.Rect(0, 0, int(sheet.CanonicalWidth), int(sheet.CanonicalHeight)))
	for i := range img.Pix {
		img.Pix[i] = 255
	}

	sq := layout.SquareMarkRegion().ToInt()
	for y := sq.Y; y < sq.Y+sq.Height; y++ {
		for x := sq.X; x < sq.X+sq.Width; x++ {
			img.SetGray(x, y, color.Gray{Y: 0})
		}
	}

	ci := layout.CircleMarkRegion()
	cx, cy := ci.Center().X, ci.Center().Y
	r := ci.Width / 2
	for y := int(cy - r); y <= int(cy+r); y++ {
		for x := int(cx - r); x <= int(cx+r); x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			if math.Sqrt(dx*dx+dy*dy) <= r {
				img.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
	return img
}

func rotate180Gray(img *image.Gray) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(b)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.SetGray(b.Dx()-1-x, b.Dy()-1-y, img.GrayAt(x, y))
		}
	}
	return out
}

func TestDetectNormalOrientation(t *testing.T) {
	layout := sheet.StandardLayout()
	p, err := page.FromImage(1, drawMarkedPage(t, layout))
	require.NoError(t, err)
	defer p.Close()

	res := Detect(p, layout)
	assert.True(t, res.MarksFound)
	assert.False(t, res.UpsideDown)
	// A filled square reads darker than a filled circle over the same
	// bounding box
	assert.Greater(t, res.SquareDarkness, res.CircleDarkness)
}

func TestDetectUpsideDown(t *testing.T) {
	layout := sheet.StandardLayout()
	p, err := page.FromImage(1, rotate180Gray(drawMarkedPage(t, layout)))
	require.NoError(t, err)
	defer p.Close()

	res := Detect(p, layout)
	assert.True(t, res.MarksFound)
	assert.True(t, res.UpsideDown)
}

// Detecting, correcting, and re-detecting must report normal orientation.
func TestDetectIsSelfInverse(t *testing.T) {
	layout := sheet.StandardLayout()
	p, err := page.FromImage(1, rotate180Gray(drawMarkedPage(t, layout)))
	require.NoError(t, err)
	defer p.Close()

	res := Detect(p, layout)
	require.True(t, res.UpsideDown)

	p.Rotate180()
	res = Detect(p, layout)
	assert.False(t, res.UpsideDown)
}

// A page without marks must fail open rather than guess a rotation.
func TestDetectBlankPageFailsOpen(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, int(sheet.CanonicalWidth), int(sheet.CanonicalHeight)))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	p, err := page.FromImage(1, img)
	require.NoError(t, err)
	defer p.Close()

	res := Detect(p, sheet.StandardLayout())
	assert.False(t, res.MarksFound)
	assert.False(t, res.UpsideDown)
}
