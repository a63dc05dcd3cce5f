package citation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"paper-qa/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver map[string]*models.CitationMetadata

func (f fakeResolver) Lookup(ctx context.Context, title string) (*models.CitationMetadata, error) {
	switch title {
	case "panics":
		panic("resolver exploded")
	case "network":
		return nil, errors.New("connection reset")
	}
	meta, ok := f[title]
	if !ok {
		return nil, ErrNoMatch
	}
	return meta, nil
}

type fakeFetcher struct {
	calls []string
}

func (f *fakeFetcher) Download(ctx context.Context, meta *models.CitationMetadata) (*models.Artifact, error) {
	f.calls = append(f.calls, meta.Title)
	switch {
	case meta.PDFURL == "":
		return nil, ErrNoPDF
	case meta.IsLowTrust():
		return nil, fmt.Errorf("%w: %s", ErrLowTrust, meta.PDFURL)
	case meta.PDFURL == "http://broken":
		return nil, ErrNotPDF
	}
	return &models.Artifact{Content: []byte("%PDF"), Text: "text of " + meta.Title}, nil
}

func TestPipeline_ClassifiesEveryTitle(t *testing.T) {
	resolver := fakeResolver{
		"good":   {Title: "Good Paper", PDFURL: "http://ok", Status: "GREEN"},
		"bronze": {Title: "Bronze Paper", PDFURL: "http://bronze", Status: "BRONZE"},
		"broken": {Title: "Broken Paper", PDFURL: "http://broken", Status: "GOLD"},
		"closed": {Title: "Closed Paper"},
	}
	fetcher := &fakeFetcher{}
	p := NewPipeline(resolver, fetcher)

	report := p.Process(context.Background(), []string{"good", "missing", "panics", "bronze", "network", "broken", "closed"})

	require.Len(t, report.Outcomes, 7)
	statuses := make([]models.CitationStatus, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		statuses = append(statuses, o.Status)
	}
	assert.Equal(t, []models.CitationStatus{
		models.StatusFetched,
		models.StatusNoMatch,
		models.StatusFetchFailed,
		models.StatusSkippedLowTrust,
		models.StatusNoMatch,
		models.StatusFetchFailed,
		models.StatusFetchFailed,
	}, statuses)

	fetched := report.Fetched()
	require.Len(t, fetched, 1)
	assert.Equal(t, "Good Paper", fetched[0].Metadata.Title)
	assert.Equal(t, "text of Good Paper", fetched[0].Artifact.Text)

	assert.Equal(t, "resolver exploded", report.Outcomes[2].Error)
	assert.Equal(t, "connection reset", report.Outcomes[4].Error)
	assert.Empty(t, report.Outcomes[1].Error)
}

func TestPipeline_CancelledContext(t *testing.T) {
	fetcher := &fakeFetcher{}
	p := NewPipeline(fakeResolver{"good": {Title: "Good", PDFURL: "http://ok"}}, fetcher)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := p.Process(ctx, []string{"good"})
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, models.StatusFetchFailed, report.Outcomes[0].Status)
	assert.Equal(t, context.Canceled.Error(), report.Outcomes[0].Error)
	assert.Nil(t, report.Outcomes[0].Metadata)
	assert.Empty(t, fetcher.calls)
}

func TestPipeline_NoTitles(t *testing.T) {
	report := NewPipeline(fakeResolver{}, &fakeFetcher{}).Process(context.Background(), nil)
	assert.Empty(t, report.Outcomes)
}
