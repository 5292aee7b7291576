package grade

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ComputeStats derives the aggregate summary from the current record set.
// Always recomputed in full; incremental maintenance would drift after
// overrides and manual assignments.
func ComputeStats(records []GradeRecord) GradeStats {
	stats := GradeStats{
		Count:       len(records),
		PerStandard: map[string]StandardStats{},
		PerVariant:  map[string]VariantStats{},
	}
	if len(records) == 0 {
		return stats
	}

	percentages := make([]float64, len(records))
	for i, r := range records {
		percentages[i] = r.Percentage
	}
	sort.Float64s(percentages)

	stats.Mean = stat.Mean(percentages, nil)
	stats.Median = stat.Quantile(0.5, stat.Empirical, percentages, nil)
	stats.Low = percentages[0]
	stats.High = percentages[len(percentages)-1]
	if len(percentages) > 1 {
		stats.StdDev = stat.StdDev(percentages, nil)
	}

	stats.PerQuestion = questionBreakdown(records)
	stats.PerStandard = standardBreakdown(records)
	stats.PerVariant = variantBreakdown(records)
	return stats
}

// questionBreakdown counts correct/incorrect/skipped per question number.
// Variants may use different question sets; numbers are merged positionally,
// which is how teachers compare difficulty across variants.
func questionBreakdown(records []GradeRecord) []QuestionStats {
	byNumber := map[int]*QuestionStats{}
	var numbers []int

	for _, r := range records {
		for _, a := range r.Answers {
			qs, ok := byNumber[a.QuestionNumber]
			if !ok {
				qs = &QuestionStats{QuestionNumber: a.QuestionNumber, QuestionID: a.QuestionID}
				byNumber[a.QuestionNumber] = qs
				numbers = append(numbers, a.QuestionNumber)
			}
			switch {
			case a.Selected == "":
				qs.Skipped++
			case a.Correct:
				qs.Correct++
			default:
				qs.Incorrect++
			}
		}
	}

	sort.Ints(numbers)
	out := make([]QuestionStats, len(numbers))
	for i, n := range numbers {
		qs := byNumber[n]
		attempted := qs.Correct + qs.Incorrect
		if attempted > 0 {
			qs.PctCorrect = float64(qs.Correct) / float64(attempted) * 100
		}
		out[i] = *qs
	}
	return out
}

func standardBreakdown(records []GradeRecord) map[string]StandardStats {
	out := map[string]StandardStats{}
	for _, r := range records {
		for _, a := range r.Answers {
			if a.Standard == "" {
				continue
			}
			s := out[a.Standard]
			s.Total++
			if a.Correct {
				s.Correct++
			}
			out[a.Standard] = s
		}
	}
	for k, s := range out {
		if s.Total > 0 {
			s.Pct = float64(s.Correct) / float64(s.Total) * 100
		}
		out[k] = s
	}
	return out
}

func variantBreakdown(records []GradeRecord) map[string]VariantStats {
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, r := range records {
		variant := r.VariantID
		if variant == "" {
			variant = "base"
		}
		sums[variant] += r.Percentage
		counts[variant]++
	}

	out := map[string]VariantStats{}
	for variant, count := range counts {
		out[variant] = VariantStats{Count: count, Mean: sums[variant] / float64(count)}
	}
	return out
}
