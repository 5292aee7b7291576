package bubble

import (
	"markscan/internal/page"
	"markscan/internal/sheet"
	"markscan/pkg/geometry"

	"gocv.io/x/gocv"
)

// Detect samples every bubble position for the layout's question grid and
// classifies selections with the page-adaptive threshold. Positions are
// computed from the printed layout scaled by the page's DPI ratio; the layout
// is fully known, so there is no need for generic shape detection.
func Detect(p *page.PageImage, layout *sheet.Layout, questionCount int) []Question {
	if questionCount <= 0 || questionCount > layout.QuestionCount {
		questionCount = layout.QuestionCount
	}

	window := layout.BubbleWindow * p.Scale
	if window < 3 {
		window = 3
	}

	// Pass 1: sample all intensities
	samples := make([][]Sample, questionCount)
	var all []float64
	for q := 1; q <= questionCount; q++ {
		row := make([]Sample, layout.ChoiceCount)
		for c := 0; c < layout.ChoiceCount; c++ {
			center := layout.BubbleCenter(q, c).Scale(p.Scale).ToInt()
			intensity := meanLuminance(p.Gray, center, int(window))
			row[c] = Sample{
				QuestionNumber: q,
				Choice:         sheet.ChoiceLabels[c],
				Position:       center,
				Intensity:      intensity,
			}
			all = append(all, intensity)
		}
		samples[q-1] = row
	}

	// Pass 2: derive the page threshold assuming one filled bubble per
	// question, then classify
	threshold := DeriveThreshold(all, questionCount)

	questions := make([]Question, questionCount)
	for i := range samples {
		for j := range samples[i] {
			threshold.Classify(&samples[i][j])
		}
		questions[i] = Aggregate(i+1, samples[i])
	}
	return questions
}

// meanLuminance returns the mean gray value of a square window centered at
// the given point, clamped to the image.
func meanLuminance(gray gocv.Mat, center geometry.PointInt, window int) float64 {
	half := window / 2
	r := geometry.RectInt{
		X:      center.X - half,
		Y:      center.Y - half,
		Width:  window,
		Height: window,
	}.Clamp(gray.Cols(), gray.Rows())
	if r.Empty() {
		// Off-page position; read as blank paper
		return 255
	}

	sum := 0
	for y := r.Y; y < r.Y+r.Height; y++ {
		for x := r.X; x < r.X+r.Width; x++ {
			sum += int(gray.GetUCharAt(y, x))
		}
	}
	return float64(sum) / float64(r.Width*r.Height)
}
