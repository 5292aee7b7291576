package identify

import (
	"testing"

	"markscan/internal/assess"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var matchRoster = []assess.Student{
	{ID: "s1", FirstName: "Maria", LastName: "Gonzalez"},
	{ID: "s2", FirstName: "James", LastName: "Park"},
	{ID: "s3", FirstName: "Amara", LastName: "Okafor"},
	{ID: "s4", FirstName: "Lena", LastName: "Park"},
}

// Characterization tests: the 50/30/20/20 scoring constants are tuned, not
// derived; these pin the observable ranking behavior.
func TestMatchNameExact(t *testing.T) {
	got := MatchName("Maria Gonzalez", matchRoster, 40, 3)
	require.NotEmpty(t, got)
	assert.Equal(t, "s1", got[0].StudentID)
	// last (+50) + first (+30) + cross-containment (+20) + overlap
	assert.GreaterOrEqual(t, got[0].Score, 100)
}

func TestMatchNameLastNameOnly(t *testing.T) {
	got := MatchName("Okafor", matchRoster, 40, 3)
	require.NotEmpty(t, got)
	assert.Equal(t, "s3", got[0].StudentID)
	assert.GreaterOrEqual(t, got[0].Score, 50)
}

func TestMatchNameSharedSurname(t *testing.T) {
	// Both Parks match on surname; the first-name hit ranks James ahead
	got := MatchName("James Park", matchRoster, 40, 3)
	require.NotEmpty(t, got)
	assert.Equal(t, "s2", got[0].StudentID)
	if len(got) > 1 {
		assert.Equal(t, "s4", got[1].StudentID)
		assert.Greater(t, got[0].Score, got[1].Score)
	}
}

func TestMatchNameFloorAndLimit(t *testing.T) {
	assert.Empty(t, MatchName("zzzz", matchRoster, 40, 3))
	assert.Empty(t, MatchName("", matchRoster, 40, 3))

	got := MatchName("Park", matchRoster, 1, 1)
	assert.Len(t, got, 1)
}

func TestMatchNameIgnoresCaseAndPunctuation(t *testing.T) {
	got := MatchName("GONZALEZ, maria.", matchRoster, 40, 3)
	require.NotEmpty(t, got)
	assert.Equal(t, "s1", got[0].StudentID)
}

// OCR output is plain ASCII, so accented roster names must fold to their
// base letters rather than drop them.
func TestMatchNameFoldsDiacritics(t *testing.T) {
	roster := []assess.Student{
		{ID: "s5", FirstName: "José", LastName: "Muñoz"},
	}

	got := MatchName("Jose Munoz", roster, 40, 3)
	require.NotEmpty(t, got)
	assert.Equal(t, "s5", got[0].StudentID)
	// last (+50) + first (+30) + cross-containment (+20), no letters lost
	assert.GreaterOrEqual(t, got[0].Score, 100)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "munoz", normalizeName("Muñoz"))
	assert.Equal(t, "renee", normalizeName("Renée"))
	assert.Equal(t, "okafor", normalizeName(" O'KAFOR. "))
	assert.Equal(t, "", normalizeName("123 !?"))
}

func TestOverlapRatio(t *testing.T) {
	assert.InDelta(t, 1.0, overlapRatio("abc", "abc"), 1e-9)
	assert.InDelta(t, 0.0, overlapRatio("abc", ""), 1e-9)
	// one garbled character out of four, same positions
	assert.InDelta(t, 0.75, overlapRatio("marx", "mara"), 1e-9)
}
