package sheet

import "markscan/pkg/geometry"

// Named formats. The generator stamps the format tag into each printed code so
// the scan side can recover the exact grid geometry without guessing.

// StandardLayout returns the single-column 25-question letter layout.
// This is the default when a resolved identity carries no format tag.
func StandardLayout() *Layout {
	return &Layout{
		Name:           "standard",
		CornerInset:    24,
		CornerMarkSize: 14,

		// Symbol printed in the top-right corner, clear of the name header
		CodeRegion: rect(470, 36, 100, 100),
		NameRegion: rect(90, 58, 260, 30),

		QuestionCount:      25,
		ChoiceCount:        4,
		QuestionsPerColumn: 25,
		FirstColumnX:       96,
		FirstRowY:          200,
		ColumnWidth:        250,
		RowHeight:          22,
		ChoiceSpacing:      30,
		BubbleWindow:       10,
	}
}

// ExtendedLayout returns the two-column 50-question letter layout.
func ExtendedLayout() *Layout {
	return &Layout{
		Name:           "extended",
		CornerInset:    24,
		CornerMarkSize: 14,

		CodeRegion: rect(470, 36, 100, 100),
		NameRegion: rect(90, 58, 260, 30),

		QuestionCount:      50,
		ChoiceCount:        4,
		QuestionsPerColumn: 25,
		FirstColumnX:       80,
		FirstRowY:          200,
		ColumnWidth:        264,
		RowHeight:          22,
		ChoiceSpacing:      28,
		BubbleWindow:       10,
	}
}

// ForFormat returns the layout for a format tag, falling back to the standard
// layout for empty or unrecognized tags.
func ForFormat(format string) *Layout {
	switch format {
	case "extended":
		return ExtendedLayout()
	default:
		return StandardLayout()
	}
}

func rect(x, y, w, h float64) geometry.Rect {
	return geometry.Rect{X: x, Y: y, Width: w, Height: h}
}
