package models

import "strings"

// Excerpt is the text of a cited paper offered to the context builder.
type Excerpt struct {
	Title   string
	Content string
}

type RankedExcerpt struct {
	Excerpt
	Score int
}

// CitationMetadata is the best search match for a cited title. PDFURL and
// Status are empty when the search API reports no open-access PDF.
type CitationMetadata struct {
	Title  string `json:"title"`
	PDFURL string `json:"pdf_url,omitempty"`
	Status string `json:"status,omitempty"`
}

// IsLowTrust reports whether the access tier is the publisher-hosted bronze tier.
func (m CitationMetadata) IsLowTrust() bool {
	return strings.EqualFold(m.Status, LowTrustTier)
}

// Artifact is a downloaded citation PDF with its extracted text.
type Artifact struct {
	Content []byte
	Text    string
}

type CitationStatus string

const (
	StatusFetched         CitationStatus = "fetched"
	StatusSkippedLowTrust CitationStatus = "skipped-low-trust"
	StatusFetchFailed     CitationStatus = "fetch-failed"
	StatusNoMatch         CitationStatus = "no-match"
)

type CitationOutcome struct {
	Title    string            `json:"title"`
	Status   CitationStatus    `json:"status"`
	Metadata *CitationMetadata `json:"metadata,omitempty"`
	Artifact *Artifact         `json:"-"`
	Error    string            `json:"error,omitempty"`
}

// CitationReport lists one outcome per extracted title, in extraction order.
type CitationReport struct {
	Outcomes []CitationOutcome `json:"outcomes"`
}

func (r *CitationReport) Add(o CitationOutcome) {
	r.Outcomes = append(r.Outcomes, o)
}

func (r CitationReport) Counts() map[CitationStatus]int {
	counts := make(map[CitationStatus]int)
	for _, o := range r.Outcomes {
		counts[o.Status]++
	}
	return counts
}

// Fetched returns the outcomes that carry a downloaded artifact.
func (r CitationReport) Fetched() []CitationOutcome {
	var fetched []CitationOutcome
	for _, o := range r.Outcomes {
		if o.Status == StatusFetched && o.Artifact != nil {
			fetched = append(fetched, o)
		}
	}
	return fetched
}

// ContextBudget describes how the token ceiling was spent for one request.
type ContextBudget struct {
	MaxTokens     int
	Reserved      int
	Usable        int
	PrimaryTokens int
	Remaining     int
}

// PrimaryOverflows reports whether the primary document alone exhausts the budget.
func (b ContextBudget) PrimaryOverflows() bool {
	return b.PrimaryTokens >= b.Usable
}
