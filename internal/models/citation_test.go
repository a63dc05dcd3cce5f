package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCitationMetadata_IsLowTrust(t *testing.T) {
	assert.True(t, CitationMetadata{Status: "BRONZE"}.IsLowTrust())
	assert.True(t, CitationMetadata{Status: "bronze"}.IsLowTrust())
	assert.False(t, CitationMetadata{Status: "GOLD"}.IsLowTrust())
	assert.False(t, CitationMetadata{}.IsLowTrust())
}

func TestCitationReport_CountsAndFetched(t *testing.T) {
	var r CitationReport
	r.Add(CitationOutcome{Title: "a", Status: StatusFetched, Artifact: &Artifact{Text: "x"}})
	r.Add(CitationOutcome{Title: "b", Status: StatusNoMatch})
	r.Add(CitationOutcome{Title: "c", Status: StatusSkippedLowTrust})
	r.Add(CitationOutcome{Title: "d", Status: StatusFetched, Artifact: &Artifact{Text: "y"}})

	counts := r.Counts()
	assert.Equal(t, 2, counts[StatusFetched])
	assert.Equal(t, 1, counts[StatusNoMatch])
	assert.Equal(t, 1, counts[StatusSkippedLowTrust])
	assert.Zero(t, counts[StatusFetchFailed])

	fetched := r.Fetched()
	if assert.Len(t, fetched, 2) {
		assert.Equal(t, "a", fetched[0].Title)
		assert.Equal(t, "d", fetched[1].Title)
	}
}
