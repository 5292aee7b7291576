// Command sheetdebug runs the detection pipeline on a single page image and
// prints per-stage results, for tuning layouts and diagnosing bad scans.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"os"

	"markscan/internal/bubble"
	"markscan/internal/identify"
	"markscan/internal/lookup"
	"markscan/internal/ocr"
	"markscan/internal/orientation"
	"markscan/internal/page"
	"markscan/internal/sheet"

	"gocv.io/x/gocv"
)

func main() {
	imagePath := flag.String("f", "", "Path to page image")
	storePath := flag.String("store", "sheetkeys.db", "Path to the short-key lookup store")
	format := flag.String("format", "", "Sheet format tag (empty = standard)")
	questions := flag.Int("q", 25, "Number of questions to sample")
	annotate := flag.String("annotate", "", "Write an annotated overlay image to this path")
	useOCR := flag.Bool("ocr", false, "Run the OCR name fallback")
	flag.Parse()

	if *imagePath == "" {
		fmt.Println("Usage: sheetdebug -f <image> [-store path] [-format f] [-q n] [-annotate out.png] [-ocr]")
		os.Exit(1)
	}

	if err := run(*imagePath, *storePath, *format, *annotate, *questions, *useOCR); err != nil {
		fmt.Fprintf(os.Stderr, "sheetdebug: %v\n", err)
		os.Exit(1)
	}
}

func run(imagePath, storePath, format, annotate string, questions int, useOCR bool) error {
	ctx := context.Background()

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return err
	}

	fmt.Printf("=== Decoding: %s ===\n", imagePath)
	p, err := page.Decode(1, data)
	if err != nil {
		return err
	}
	defer p.Close()
	fmt.Printf("Dimensions: %dx%d (scale %.3f, standard=%v)\n",
		p.Width, p.Height, p.Scale, p.StandardDimensions)

	layout := sheet.ForFormat(format)

	fmt.Printf("\n=== Orientation ===\n")
	res := orientation.Detect(p, layout)
	fmt.Printf("Marks found: %v\n", res.MarksFound)
	fmt.Printf("Square darkness: %.3f  Circle darkness: %.3f\n",
		res.SquareDarkness, res.CircleDarkness)
	if res.UpsideDown {
		fmt.Println("Upside down: rotating 180")
		p.Rotate180()
	}

	fmt.Printf("\n=== Identity ===\n")
	store, err := lookup.Open(ctx, storePath)
	if err != nil {
		return err
	}
	defer store.Close()

	var engine *ocr.Engine
	if useOCR {
		engine, err = ocr.NewEngine()
		if err != nil {
			fmt.Printf("OCR unavailable: %v\n", err)
		} else {
			defer engine.Close()
		}
	}

	resolver := identify.NewResolver(store, engine, identify.DefaultParams())
	resolution, err := resolver.Resolve(ctx, p, layout, nil)
	if err != nil {
		return err
	}
	switch {
	case resolution.Identity != nil:
		id := resolution.Identity
		fmt.Printf("Resolved: student=%s assignment=%s format=%q variant=%q\n",
			id.StudentID, id.AssignmentID, id.Format, id.Variant)
	case resolution.UnknownPayload:
		fmt.Println("Foreign symbol: not an answer-sheet code")
	default:
		fmt.Printf("Unresolved: %s\n", resolution.DecodeErr)
	}
	if resolution.OCRName != "" {
		fmt.Printf("OCR name: %q (confidence %.1f)\n", resolution.OCRName, resolution.OCRConfidence)
	}

	fmt.Printf("\n=== Bubbles (%d questions) ===\n", questions)
	detected := bubble.Detect(p, layout, questions)
	printQuestions(detected)

	if annotate != "" {
		if err := writeOverlay(annotate, p, layout, detected); err != nil {
			return err
		}
		fmt.Printf("\nOverlay written: %s\n", annotate)
	}
	return nil
}

func printQuestions(detected []bubble.Question) {
	filled, multiple := 0, 0
	minSample := 255.0
	for _, q := range detected {
		if q.Selected != "" {
			filled++
		}
		if q.MultipleDetected {
			multiple++
		}
		marks := ""
		for _, s := range q.Samples {
			if s.Filled {
				marks += s.Choice
			}
			if s.Intensity < minSample {
				minSample = s.Intensity
			}
		}
		fmt.Printf("  Q%-3d selected=%-2q filled=%-5s conf=%.2f", q.Number, q.Selected, marks, q.Confidence)
		if q.MultipleDetected {
			fmt.Print("  MULTIPLE")
		}
		fmt.Println()
	}
	fmt.Printf("Answered: %d  Multiple: %d  Darkest sample: %.0f\n", filled, multiple, minSample)
}

// writeOverlay draws each sampling window on a color copy of the page:
// green for the selected choice, red for extra filled bubbles, gray for empty.
func writeOverlay(path string, p *page.PageImage, layout *sheet.Layout, detected []bubble.Question) error {
	overlay := gocv.NewMat()
	defer overlay.Close()
	gocv.CvtColor(p.Gray, &overlay, gocv.ColorGrayToBGR)

	scale := p.Scale
	half := layout.BubbleWindow / 2
	for _, q := range detected {
		for i, s := range q.Samples {
			center := layout.BubbleCenter(q.Number, i).Scale(scale).ToInt()
			w := int(layout.BubbleWindow * scale)
			rect := image.Rect(
				center.X-int(half*scale), center.Y-int(half*scale),
				center.X-int(half*scale)+w, center.Y-int(half*scale)+w)

			c := color.RGBA{R: 160, G: 160, B: 160, A: 255}
			if s.Filled {
				c = color.RGBA{R: 255, A: 255}
			}
			if s.Choice == q.Selected && q.Selected != "" {
				c = color.RGBA{G: 200, A: 255}
			}
			gocv.Rectangle(&overlay, rect, c, 1)
		}
	}

	sq := layout.SquareMarkRegion().Scale(scale).ToInt()
	ci := layout.CircleMarkRegion().Scale(scale).ToInt()
	blue := color.RGBA{B: 255, A: 255}
	gocv.Rectangle(&overlay, image.Rect(sq.X, sq.Y, sq.X+sq.Width, sq.Y+sq.Height), blue, 2)
	gocv.Rectangle(&overlay, image.Rect(ci.X, ci.Y, ci.X+ci.Width, ci.Y+ci.Height), blue, 2)

	if ok := gocv.IMWrite(path, overlay); !ok {
		return fmt.Errorf("failed to write %s", path)
	}
	return nil
}
