package identify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"markscan/internal/assess"
	"markscan/internal/lookup"
	"markscan/internal/ocr"
	"markscan/internal/page"
	"markscan/internal/sheet"
)

// Params tunes the resolution chain.
type Params struct {
	// MinOCRConfidence is the Tesseract word-confidence floor (0-100)
	// below which a recognized name is discarded.
	MinOCRConfidence float64

	// MinOCRLength is the minimum recognized character count (letters
	// only) before a name is considered real text.
	MinOCRLength int

	// MinSuggestionScore is the fuzzy-match floor for roster suggestions.
	MinSuggestionScore int

	// MaxSuggestions caps how many roster candidates are surfaced.
	MaxSuggestions int
}

// DefaultParams returns the tuned resolution parameters.
func DefaultParams() Params {
	return Params{
		MinOCRConfidence:   50,
		MinOCRLength:       3,
		MinSuggestionScore: 40,
		MaxSuggestions:     3,
	}
}

// Resolution is the outcome of identifying one page.
type Resolution struct {
	// Identity is nil when no code resolved.
	Identity *Identity

	// DecodeErr describes why code decode failed ("" on success).
	DecodeErr string

	// UnknownPayload is true when a symbol decoded but matched no schema,
	// which usually means the page is not one of ours.
	UnknownPayload bool

	// OCR fallback output, populated only when code decode failed.
	OCRName       string
	OCRConfidence float64
	Suggestions   []Suggestion
}

// Resolver decodes printed codes and falls back to OCR name matching.
type Resolver struct {
	store   *lookup.Store
	engine  *ocr.Engine
	decoder Decoder
	params  Params
}

// NewResolver builds a resolver over the given collaborators. engine may be
// nil, which disables the OCR fallback.
func NewResolver(store *lookup.Store, engine *ocr.Engine, params Params) *Resolver {
	return &Resolver{
		store:   store,
		engine:  engine,
		decoder: NewQRDecoder(),
		params:  params,
	}
}

// SetDecoder replaces the symbol decoder. Tests use this to avoid real
// QR round trips.
func (r *Resolver) SetDecoder(d Decoder) { r.decoder = d }

// Resolve identifies the page. candidates is the not-yet-graded subset of the
// roster used for OCR suggestions; suggestions never auto-assign.
func (r *Resolver) Resolve(ctx context.Context, p *page.PageImage, layout *sheet.Layout, candidates []assess.Student) (Resolution, error) {
	text, found := r.decodeWithStrategies(p, layout)
	if found {
		payload, err := ParsePayload(text)
		if err != nil {
			// A foreign QR decoded cleanly; retrying other strategies
			// would find the same symbol again.
			return Resolution{
				DecodeErr:      "unrecognized payload",
				UnknownPayload: true,
			}, nil
		}

		if payload.Inline != nil {
			return Resolution{Identity: payload.Inline}, nil
		}

		rec, err := r.store.Get(ctx, payload.ShortKey)
		if errors.Is(err, lookup.ErrNotFound) {
			res := r.ocrFallback(p, layout, candidates)
			res.DecodeErr = fmt.Sprintf("short key %s not registered", payload.ShortKey)
			return res, nil
		}
		if err != nil {
			// Store failures are infrastructure, not detection noise
			return Resolution{}, err
		}
		return Resolution{Identity: &Identity{
			AssignmentID: rec.AssignmentID,
			StudentID:    rec.StudentID,
			Format:       rec.Format,
			Variant:      rec.Variant,
		}}, nil
	}

	res := r.ocrFallback(p, layout, candidates)
	res.DecodeErr = "no code decoded"
	return res, nil
}

// decodeWithStrategies runs the ordered decode chain until one strategy
// yields a symbol. Scan quality varies wildly, so cheap strategies run first
// and progressively more aggressive preprocessing follows.
func (r *Resolver) decodeWithStrategies(p *page.PageImage, layout *sheet.Layout) (string, bool) {
	// 1. Full page at 2x
	if text, err := r.decoder.Decode(upscale(p.Src, 2.0)); err == nil {
		return text, true
	}

	// 2. Known code region at higher relative upscale; robust when the
	// symbol is small and crisp but the rest of the page is noisy
	codeRegion := layout.CodeRegion.Scale(p.Scale).ToInt()
	if text, err := r.decoder.Decode(upscale(crop(p.Src, codeRegion), 4.0)); err == nil {
		return text, true
	}

	// 3. Forced 180-degree rotation, in case orientation detection failed
	if text, err := r.decoder.Decode(upscale(rotate180(p.Src), 2.0)); err == nil {
		return text, true
	}

	// 4. Alternate upscale factors
	for _, factor := range []float64{1.5, 2.5, 3.0} {
		if text, err := r.decoder.Decode(upscale(p.Src, factor)); err == nil {
			return text, true
		}
	}

	// 5. Sharpened
	if text, err := r.decoder.Decode(upscale(sharpen(p.Gray), 2.0)); err == nil {
		return text, true
	}

	// 6. Hard binarization
	if text, err := r.decoder.Decode(upscale(binarize(p.Gray, 128), 2.0)); err == nil {
		return text, true
	}

	return "", false
}

// ocrFallback recognizes the name header and scores roster candidates.
// It never assigns an identity; the output only informs manual assignment.
func (r *Resolver) ocrFallback(p *page.PageImage, layout *sheet.Layout, candidates []assess.Student) Resolution {
	if r.engine == nil {
		return Resolution{}
	}

	region := layout.NameRegion.Scale(p.Scale).ToInt()
	result, err := r.engine.RecognizeName(p.Gray, region)
	if err != nil {
		return Resolution{}
	}

	letters := 0
	for _, c := range result.Text {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			letters++
		}
	}
	if result.Confidence < r.params.MinOCRConfidence || letters < r.params.MinOCRLength {
		return Resolution{}
	}

	name := strings.TrimSpace(result.Text)
	return Resolution{
		OCRName:       name,
		OCRConfidence: result.Confidence,
		Suggestions:   MatchName(name, candidates, r.params.MinSuggestionScore, r.params.MaxSuggestions),
	}
}
