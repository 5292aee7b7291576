package identify

import (
	"errors"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// Decoder decodes one machine-readable symbol from an image.
// Abstracted so resolver tests can substitute a fake.
type Decoder interface {
	Decode(img image.Image) (string, error)
}

// errNoSymbol is returned when no symbol was found in the image.
var errNoSymbol = errors.New("identify: no symbol found")

// qrDecoder wraps the zxing QR reader. The reader itself is rotation
// invariant; inversion is covered by a manual retry on the negative image.
type qrDecoder struct {
	reader gozxing.Reader
	hints  map[gozxing.DecodeHintType]interface{}
}

// NewQRDecoder returns the production QR decoder.
func NewQRDecoder() Decoder {
	return &qrDecoder{
		reader: qrcode.NewQRCodeReader(),
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

func (d *qrDecoder) Decode(img image.Image) (string, error) {
	if text, err := d.decodeOnce(img); err == nil {
		return text, nil
	}
	// Retry inverted: dark scanner backgrounds produce white-on-black symbols
	return d.decodeOnce(invert(img))
}

func (d *qrDecoder) decodeOnce(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", errNoSymbol
	}
	result, err := d.reader.Decode(bmp, d.hints)
	if err != nil {
		return "", errNoSymbol
	}
	return result.GetText(), nil
}
