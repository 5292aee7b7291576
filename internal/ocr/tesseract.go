// Package ocr provides OCR (Optical Character Recognition) for the
// handwritten/printed name header on answer sheets.
package ocr

import (
	"fmt"
	"image"
	"strings"
	"sync"

	"markscan/pkg/geometry"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"
)

// NameChars is the character set for name-header OCR. Names never contain
// digits; restricting the whitelist keeps Tesseract from reading pen strokes
// as numbers.
const NameChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz.,'- "

// Engine provides OCR functionality using Tesseract.
//
// Tesseract's client is process-wide state and not safe for concurrent use;
// Engine serializes access with a mutex so independent grading runs can share
// one instance.
type Engine struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewEngine creates a new OCR engine.
func NewEngine() (*Engine, error) {
	client := gosseract.NewClient()

	if err := client.SetLanguage("eng"); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}

	// Names aren't dictionary words; disable word correction so Tesseract
	// doesn't "fix" surnames into English vocabulary.
	_ = client.SetVariable("load_system_dawg", "false")
	_ = client.SetVariable("load_freq_dawg", "false")
	_ = client.SetVariable("language_model_penalty_non_dict_word", "0")

	return &Engine{client: client}, nil
}

// Close releases OCR resources.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		err := e.client.Close()
		e.client = nil
		return err
	}
	return nil
}

// NameResult is the recognized header text with its mean word confidence.
type NameResult struct {
	Text       string
	Confidence float64 // 0-100, Tesseract word confidence averaged over words
}

// RecognizeName performs OCR on the name-header region of a grayscale page.
func (e *Engine) RecognizeName(gray gocv.Mat, bounds geometry.RectInt) (NameResult, error) {
	if gray.Empty() {
		return NameResult{}, fmt.Errorf("empty image")
	}

	bounds = bounds.Clamp(gray.Cols(), gray.Rows())
	if bounds.Empty() {
		return NameResult{}, fmt.Errorf("invalid region bounds")
	}

	region := gray.Region(image.Rect(bounds.X, bounds.Y, bounds.X+bounds.Width, bounds.Y+bounds.Height))
	defer region.Close()

	processed := preprocessName(region)
	defer processed.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, processed)
	if err != nil {
		return NameResult{}, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return NameResult{}, fmt.Errorf("engine closed")
	}

	// PSM 7 = single text line, which is what the name box holds
	if err := e.client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
		return NameResult{}, fmt.Errorf("failed to set PSM: %w", err)
	}
	if err := e.client.SetWhitelist(NameChars); err != nil {
		return NameResult{}, fmt.Errorf("failed to set whitelist: %w", err)
	}
	if err := e.client.SetImageFromBytes(buf.GetBytes()); err != nil {
		return NameResult{}, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return NameResult{}, fmt.Errorf("OCR failed: %w", err)
	}

	var words []string
	var confSum float64
	for _, box := range boxes {
		word := strings.TrimSpace(box.Word)
		if word == "" {
			continue
		}
		words = append(words, word)
		confSum += box.Confidence
	}
	if len(words) == 0 {
		return NameResult{}, nil
	}

	return NameResult{
		Text:       strings.Join(words, " "),
		Confidence: confSum / float64(len(words)),
	}, nil
}

// preprocessName prepares the header crop for OCR: upscale, contrast
// normalize, sharpen, then binarize.
func preprocessName(region gocv.Mat) gocv.Mat {
	// Upscale 2x; header crops are small at scan resolution
	scaled := gocv.NewMat()
	gocv.Resize(region, &scaled, image.Point{}, 2.0, 2.0, gocv.InterpolationCubic)

	// CLAHE evens out uneven pencil pressure and scan lighting
	clahe := gocv.NewCLAHEWithParams(2.0, image.Point{8, 8})
	defer clahe.Close()

	enhanced := gocv.NewMat()
	clahe.Apply(scaled, &enhanced)
	scaled.Close()

	// Unsharp mask
	blurred := gocv.NewMat()
	gocv.GaussianBlur(enhanced, &blurred, image.Point{0, 0}, 3, 3, gocv.BorderDefault)
	sharpened := gocv.NewMat()
	gocv.AddWeighted(enhanced, 1.5, blurred, -0.5, 0, &sharpened)
	enhanced.Close()
	blurred.Close()

	// Otsu gives a clean text/paper split regardless of scan contrast
	binary := gocv.NewMat()
	gocv.Threshold(sharpened, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	sharpened.Close()

	return binary
}
