package citation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"paper-qa/internal/config"
	"paper-qa/internal/models"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const matchPath = "/graph/v1/paper/search/match"

var ErrNoMatch = errors.New("no matching paper")

type matchResponse struct {
	Data []struct {
		PaperID       string `json:"paperId"`
		Title         string `json:"title"`
		OpenAccessPdf *struct {
			URL    string `json:"url"`
			Status string `json:"status"`
		} `json:"openAccessPdf"`
	} `json:"data"`
}

// Resolver looks cited titles up on the Semantic Scholar graph API.
type Resolver struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
	limiter *rate.Limiter
}

func NewResolver(cfg *config.CitationConfig) *Resolver {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	return &Resolver{
		baseURL: strings.TrimRight(cfg.SearchURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: cfg.SearchTimeout,
		client:  &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Resolve returns the best open-access match for title, or nil when there
// is none or the lookup fails.
func (r *Resolver) Resolve(ctx context.Context, title string) *models.CitationMetadata {
	meta, err := r.Lookup(ctx, title)
	if err != nil {
		if errors.Is(err, ErrNoMatch) {
			log.Info().Str("title", title).Msg("No open-access match for citation")
		} else {
			log.Error().Err(err).Str("title", title).Msg("Semantic Scholar API error")
		}
		return nil
	}
	return meta
}

// Lookup is Resolve with the failure reason kept.
func (r *Resolver) Lookup(ctx context.Context, title string) (*models.CitationMetadata, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	params := url.Values{}
	params.Set("query", title)
	params.Set("fields", "openAccessPdf,title")
	params.Set("openAccessPdf", "true")
	apiURL := r.baseURL + matchPath + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", models.BrowserUserAgent)
	req.Header.Set("Accept", "application/json")
	if r.apiKey != "" {
		req.Header.Set("x-api-key", r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// the match endpoint answers 404 when nothing matches
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNoMatch
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, fmt.Errorf("search failed: %d, %s", resp.StatusCode, string(body))
	}

	var data matchResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	if len(data.Data) == 0 {
		return nil, ErrNoMatch
	}

	paper := data.Data[0]
	meta := &models.CitationMetadata{Title: paper.Title}
	if paper.OpenAccessPdf != nil {
		meta.PDFURL = paper.OpenAccessPdf.URL
		meta.Status = paper.OpenAccessPdf.Status
	}
	return meta, nil
}
