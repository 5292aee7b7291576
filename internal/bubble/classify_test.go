package bubble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveThreshold(t *testing.T) {
	tests := []struct {
		name           string
		intensities    []float64
		expectedFilled int
		wantLenient    bool
		wantValue      float64
	}{
		{
			name:           "clear separation",
			intensities:    []float64{40, 50, 60, 70, 200, 210, 220, 230},
			expectedFilled: 4,
			wantValue:      135, // midpoint of 70 and 200
		},
		{
			name:           "narrow gap falls back to lenient",
			intensities:    []float64{100, 105, 110, 115, 120, 125, 130, 135},
			expectedFilled: 4,
			wantLenient:    true,
			wantValue:      lenientThreshold,
		},
		{
			name:           "no samples",
			intensities:    nil,
			expectedFilled: 4,
			wantLenient:    true,
			wantValue:      lenientThreshold,
		},
		{
			name:           "filled count covers all samples",
			intensities:    []float64{40, 50},
			expectedFilled: 2,
			wantLenient:    true,
			wantValue:      lenientThreshold,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveThreshold(tt.intensities, tt.expectedFilled)
			assert.Equal(t, tt.wantLenient, got.Lenient)
			assert.InDelta(t, tt.wantValue, got.Value, 1e-9)
		})
	}
}

func TestClassifyConfidence(t *testing.T) {
	th := Threshold{Value: 170}

	tests := []struct {
		name           string
		intensity      float64
		wantFilled     bool
		wantConfidence float64
	}{
		{"very dark", 40, true, 0.95},
		{"clearly filled", 120, true, 0.90},
		{"ambiguous below threshold", 160, true, 0.5},
		{"ambiguous above threshold", 185, false, 0.5},
		{"clearly empty", 220, false, 0.95},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Sample{Intensity: tt.intensity}
			th.Classify(&s)
			assert.Equal(t, tt.wantFilled, s.Filled)
			assert.InDelta(t, tt.wantConfidence, s.Confidence, 1e-9)
		})
	}
}

// A question with intensities [40, 210, 215, 220] must classify A as filled
// with confidence at least 0.9.
func TestSingleDarkBubble(t *testing.T) {
	intensities := []float64{40, 210, 215, 220}
	th := DeriveThreshold(intensities, 1)
	require.False(t, th.Lenient)

	samples := makeSamples(1, intensities)
	for i := range samples {
		th.Classify(&samples[i])
	}
	q := Aggregate(1, samples)

	assert.Equal(t, "A", q.Selected)
	assert.False(t, q.MultipleDetected)
	require.True(t, samples[0].Filled)
	assert.GreaterOrEqual(t, samples[0].Confidence, 0.9)
}

func TestAggregateSelection(t *testing.T) {
	th := Threshold{Value: 150}

	t.Run("no filled bubble selects nothing", func(t *testing.T) {
		samples := makeSamples(3, []float64{210, 220, 230, 240})
		for i := range samples {
			th.Classify(&samples[i])
		}
		q := Aggregate(3, samples)
		assert.Empty(t, q.Selected)
		assert.False(t, q.MultipleDetected)
	})

	t.Run("two filled picks the darker and flags", func(t *testing.T) {
		samples := makeSamples(7, []float64{90, 40, 230, 240})
		for i := range samples {
			th.Classify(&samples[i])
		}
		q := Aggregate(7, samples)
		assert.Equal(t, "B", q.Selected)
		assert.True(t, q.MultipleDetected)
	})

	t.Run("confidence is the weakest link", func(t *testing.T) {
		samples := makeSamples(2, []float64{40, 160, 230, 240})
		for i := range samples {
			th.Classify(&samples[i])
		}
		q := Aggregate(2, samples)
		assert.InDelta(t, 0.5, q.Confidence, 1e-9) // the ambiguous 160 sample
	})
}

// Classification is a pure function of intensities; rerunning it on the same
// inputs must yield identical selections and flags.
func TestClassificationIdempotent(t *testing.T) {
	intensities := []float64{35, 200, 90, 210, 220, 230, 45, 215}

	run := func() []Question {
		th := DeriveThreshold(intensities, 2)
		var out []Question
		for q := 0; q < 2; q++ {
			samples := makeSamples(q+1, intensities[q*4:q*4+4])
			for i := range samples {
				th.Classify(&samples[i])
			}
			out = append(out, Aggregate(q+1, samples))
		}
		return out
	}

	assert.Equal(t, run(), run())
}

func makeSamples(question int, intensities []float64) []Sample {
	labels := []string{"A", "B", "C", "D"}
	out := make([]Sample, len(intensities))
	for i, v := range intensities {
		out[i] = Sample{QuestionNumber: question, Choice: labels[i], Intensity: v}
	}
	return out
}
