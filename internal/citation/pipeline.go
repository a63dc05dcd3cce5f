package citation

import (
	"context"
	"errors"
	"fmt"

	"paper-qa/internal/models"

	"github.com/rs/zerolog/log"
)

type MetadataResolver interface {
	Lookup(ctx context.Context, title string) (*models.CitationMetadata, error)
}

type ArtifactFetcher interface {
	Download(ctx context.Context, meta *models.CitationMetadata) (*models.Artifact, error)
}

// Pipeline resolves and fetches cited titles one after another. A failing
// title never stops the ones after it.
type Pipeline struct {
	resolver MetadataResolver
	fetcher  ArtifactFetcher
}

func NewPipeline(resolver MetadataResolver, fetcher ArtifactFetcher) *Pipeline {
	return &Pipeline{resolver: resolver, fetcher: fetcher}
}

func (p *Pipeline) Process(ctx context.Context, titles []string) models.CitationReport {
	var report models.CitationReport
	for _, title := range titles {
		outcome := p.processOne(ctx, title)
		log.Info().Str("title", title).Str("status", string(outcome.Status)).Msg("Processed citation")
		report.Add(outcome)
	}
	return report
}

func (p *Pipeline) processOne(ctx context.Context, title string) (outcome models.CitationOutcome) {
	outcome = models.CitationOutcome{Title: title}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("title", title).Msg("Error processing citation")
			outcome.Status = models.StatusFetchFailed
			outcome.Artifact = nil
			outcome.Error = fmt.Sprint(r)
		}
	}()

	if err := ctx.Err(); err != nil {
		outcome.Status = models.StatusFetchFailed
		outcome.Error = err.Error()
		return outcome
	}

	meta, err := p.resolver.Lookup(ctx, title)
	if err != nil && ctx.Err() != nil {
		outcome.Status = models.StatusFetchFailed
		outcome.Error = ctx.Err().Error()
		return outcome
	}
	if err != nil || meta == nil {
		outcome.Status = models.StatusNoMatch
		if err != nil && !errors.Is(err, ErrNoMatch) {
			log.Error().Err(err).Str("title", title).Msg("Semantic Scholar API error")
			outcome.Error = err.Error()
		}
		return outcome
	}
	outcome.Metadata = meta

	artifact, err := p.fetcher.Download(ctx, meta)
	switch {
	case errors.Is(err, ErrLowTrust):
		outcome.Status = models.StatusSkippedLowTrust
	case err != nil:
		outcome.Status = models.StatusFetchFailed
		outcome.Error = err.Error()
		if !errors.Is(err, ErrNoPDF) {
			log.Error().Err(err).Str("title", title).Str("url", meta.PDFURL).Msg("Error downloading citation PDF")
		}
	default:
		outcome.Status = models.StatusFetched
		outcome.Artifact = artifact
	}
	return outcome
}
