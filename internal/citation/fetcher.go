package citation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"paper-qa/internal/models"
	"paper-qa/internal/parser"

	"github.com/rs/zerolog/log"
)

const (
	defaultFetchTimeout = 10 * time.Second
	maxRedirects        = 10
	maxPDFBytes         = 64 << 20
)

var (
	ErrNoPDF    = errors.New("no open-access PDF")
	ErrLowTrust = errors.New("low-trust open-access tier")
	ErrNotPDF   = errors.New("response is not a PDF")
	ErrTooLarge = errors.New("PDF too large")
)

// Fetcher downloads open-access PDFs of resolved citations.
type Fetcher struct {
	client    *http.Client
	extractor parser.TextExtractor
	maxBytes  int64
}

func NewFetcher(timeout time.Duration, extractor parser.TextExtractor) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	if extractor == nil {
		extractor = parser.PDFExtractor{}
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		extractor: extractor,
		maxBytes:  maxPDFBytes,
	}
}

// Fetch returns the PDF and its text, or nil when there is nothing to
// download or the download fails.
func (f *Fetcher) Fetch(ctx context.Context, meta *models.CitationMetadata) *models.Artifact {
	artifact, err := f.Download(ctx, meta)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoPDF), errors.Is(err, ErrLowTrust):
			log.Info().Err(err).Msg("Skipping citation PDF")
		default:
			log.Error().Err(err).Msg("Error downloading citation PDF")
		}
		return nil
	}
	return artifact
}

// Download is Fetch with the failure reason kept. Low-trust and URL-less
// metadata are rejected before any request is made.
func (f *Fetcher) Download(ctx context.Context, meta *models.CitationMetadata) (*models.Artifact, error) {
	if meta == nil || meta.PDFURL == "" {
		return nil, ErrNoPDF
	}
	if meta.IsLowTrust() {
		return nil, fmt.Errorf("%w: %s", ErrLowTrust, meta.PDFURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, meta.PDFURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", models.BrowserUserAgent)
	req.Header.Set("Referer", models.FetchReferer)
	req.Header.Set("Accept", "application/pdf")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request error downloading %s: %w", meta.PDFURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, fmt.Errorf("HTTP %d downloading %s: %s", resp.StatusCode, meta.PDFURL, string(body))
	}
	if contentType := resp.Header.Get("Content-Type"); !strings.Contains(contentType, "application/pdf") {
		return nil, fmt.Errorf("%w: %s returned Content-Type %q", ErrNotPDF, meta.PDFURL, contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", meta.PDFURL, err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, meta.PDFURL, f.maxBytes)
	}

	text := f.extractor.ExtractText(data)
	log.Debug().Str("url", meta.PDFURL).Int("bytes", len(data)).Msg("Downloaded citation PDF")
	return &models.Artifact{Content: data, Text: text}, nil
}
