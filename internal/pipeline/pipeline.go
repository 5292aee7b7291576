// Package pipeline orchestrates a grading run: orientation correction, ID
// resolution, bubble detection, and scoring, page by page.
//
// Processing is single-threaded and page-sequential within one run. The OCR
// engine and decoder hold process-wide state, and the not-yet-graded
// candidate set must shrink in page order for unidentified-page suggestions
// to stay meaningful. Independent runs may execute concurrently; they share
// only the lookup store and the OCR engine, both of which serialize access
// internally.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"markscan/internal/assess"
	"markscan/internal/bubble"
	"markscan/internal/grade"
	"markscan/internal/identify"
	"markscan/internal/lookup"
	"markscan/internal/ocr"
	"markscan/internal/orientation"
	"markscan/internal/page"
	"markscan/internal/sheet"
)

// Request is one grading run's input. Pages hold encoded page images
// (PNG/JPEG/TIFF) produced by the external rasterizer, in document order.
type Request struct {
	AssignmentID string
	SectionID    string
	Assessment   *assess.Assessment
	Roster       assess.Roster
	Pages        [][]byte
}

// Summary counts how every input page was accounted for. The four categories
// partition the batch: identified + unidentified + blank + unknown == total.
type Summary struct {
	TotalPages   int `json:"total_pages"`
	Identified   int `json:"identified"`
	Unidentified int `json:"unidentified"`
	Blank        int `json:"blank"`
	Unknown      int `json:"unknown"`
}

// Response is the full result of one grading run.
type Response struct {
	Grades       grade.AssignmentGrades   `json:"grades"`
	Unidentified []grade.UnidentifiedPage `json:"unidentified,omitempty"`
	AnswerKey    []assess.AnswerKeyEntry  `json:"answer_key"`
	Summary      Summary                  `json:"summary"`
	Elapsed      time.Duration            `json:"elapsed_ns"`
}

// Pipeline wires the detection services together. Construct once at process
// start and reuse across runs.
type Pipeline struct {
	resolver *identify.Resolver
	logger   *slog.Logger
	progress chan<- Event
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithProgress attaches a progress channel. Sends never block; size the
// buffer for the burst the consumer tolerates.
func WithProgress(ch chan<- Event) Option {
	return func(p *Pipeline) { p.progress = ch }
}

// New builds a pipeline over the lookup store and OCR engine. engine may be
// nil to disable the OCR name fallback.
func New(store *lookup.Store, engine *ocr.Engine, opts ...Option) *Pipeline {
	p := &Pipeline{
		resolver: identify.NewResolver(store, engine, identify.DefaultParams()),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Resolver exposes the ID resolver, mainly so tests can stub the decoder.
func (p *Pipeline) Resolver() *identify.Resolver { return p.resolver }

// Run grades one batch. Per-page detection failures never abort the run;
// only infrastructure failures (undecodable request, store errors) return a
// top-level error.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	total := len(req.Pages)
	log := p.logger.With("assignment", req.AssignmentID, "pages", total)

	emit(p.progress, Event{Stage: StageExtracting})
	log.Info("grading run started")

	var parsed []grade.ParsedPage
	summary := Summary{TotalPages: total}
	graded := make(map[string]bool)

	for i, data := range req.Pages {
		pageNumber := i + 1
		pageStart := time.Now()
		pp := p.processPage(ctx, pageNumber, data, req, graded)
		log.Debug("page processed", "page", pageNumber, "type", pp.Type, "elapsed", time.Since(pageStart))

		switch pp.Type {
		case grade.PageBlank:
			summary.Blank++
			log.Debug("blank page", "page", pageNumber)
		case grade.PageUnknown:
			summary.Unknown++
			log.Debug("unknown document", "page", pageNumber)
		default:
			if pp.Identity != nil {
				graded[pp.Identity.StudentID] = true
			}
			parsed = append(parsed, pp)
		}

		emit(p.progress, Event{Stage: StageParsing, Page: pageNumber, Total: total})
	}

	emit(p.progress, Event{Stage: StageGrading})

	calc := &grade.Calculator{
		Assessment: req.Assessment,
		Roster:     req.Roster,
		SectionID:  req.SectionID,
	}
	grades, unidentified := calc.Calculate(req.AssignmentID, parsed)

	summary.Identified = len(grades.Records)
	summary.Unidentified = len(unidentified)

	resp := &Response{
		Grades:       grades,
		Unidentified: unidentified,
		AnswerKey:    req.Assessment.AnswerKey(""),
		Summary:      summary,
		Elapsed:      time.Since(start),
	}

	emit(p.progress, Event{Stage: StageComplete})
	log.Info("grading run complete",
		"identified", summary.Identified,
		"unidentified", summary.Unidentified,
		"blank", summary.Blank,
		"unknown", summary.Unknown,
		"elapsed", resp.Elapsed)
	return resp, nil
}

// processPage runs the detection stages for one page. All failures are
// recorded as flags on the result; a bad page must not affect its neighbors.
func (p *Pipeline) processPage(ctx context.Context, pageNumber int, data []byte, req Request, graded map[string]bool) grade.ParsedPage {
	pp := grade.ParsedPage{PageNumber: pageNumber, Type: grade.PageScantron}

	img, err := page.Decode(pageNumber, data)
	if err != nil {
		p.logger.Warn("page decode failed", "page", pageNumber, "err", err)
		pp.Type = grade.PageUnknown
		return pp
	}
	defer img.Close()

	pp.ImageWidth = img.Width
	pp.ImageHeight = img.Height
	if !img.StandardDimensions {
		// Only flatbed-scan geometry is reliably supported; keep going
		// but mark every derived position as lower confidence.
		pp.Flags = append(pp.Flags, grade.FlagNonStandardDimensions)
	}

	baseLayout := sheet.StandardLayout()

	if res := orientation.Detect(img, baseLayout); res.UpsideDown {
		img.Rotate180()
		pp.Flags = append(pp.Flags, grade.FlagRotated180)
	}

	candidates := notYetGraded(req.Roster, graded)
	resolution, err := p.resolver.Resolve(ctx, img, baseLayout, candidates)
	if err != nil {
		// Lookup store failure is infrastructure; surface it on the page
		// rather than abort, the remaining pages may still resolve.
		p.logger.Error("identity resolution failed", "page", pageNumber, "err", err)
		pp.IdentityError = err.Error()
	}

	pp.Identity = resolution.Identity
	pp.OCRName = resolution.OCRName
	pp.Suggestions = resolution.Suggestions
	if resolution.Identity == nil {
		pp.Flags = append(pp.Flags, grade.FlagQRError)
		if pp.IdentityError == "" {
			pp.IdentityError = resolution.DecodeErr
		}
	}

	// The resolved format picks the bubble grid; unresolved pages fall
	// back to the standard grid so their answers survive for manual
	// assignment.
	layout := baseLayout
	questionCount := len(req.Assessment.Questions)
	if resolution.Identity != nil {
		layout = sheet.ForFormat(resolution.Identity.Format)
		questionCount = len(req.Assessment.AnswerKey(resolution.Identity.Variant))
	}

	pp.Questions = bubble.Detect(img, layout, questionCount)
	pp.Confidence = pageConfidence(pp.Questions)
	if !img.StandardDimensions && pp.Confidence > 0.5 {
		pp.Confidence = 0.5
	}

	if resolution.UnknownPayload {
		pp.Type = grade.PageUnknown
	} else if resolution.Identity == nil && resolution.OCRName == "" && filledCount(pp.Questions) == 0 {
		pp.Type = grade.PageBlank
	}
	return pp
}

func notYetGraded(roster assess.Roster, graded map[string]bool) []assess.Student {
	var out []assess.Student
	for _, s := range roster {
		if !graded[s.ID] {
			out = append(out, s)
		}
	}
	return out
}

func pageConfidence(questions []bubble.Question) float64 {
	if len(questions) == 0 {
		return 0
	}
	sum := 0.0
	for _, q := range questions {
		sum += q.Confidence
	}
	return sum / float64(len(questions))
}

func filledCount(questions []bubble.Question) int {
	n := 0
	for _, q := range questions {
		if q.Selected != "" {
			n++
		}
	}
	return n
}
