package rag

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"paper-qa/internal/config"
	"paper-qa/internal/helper"
	"paper-qa/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/textsplitter"
)

var wordRe = regexp.MustCompile(models.WordRegex)

// EstimateTokens approximates a token count as characters/4 + 1.
func EstimateTokens(s string) int {
	return utf8.RuneCountInString(s)/models.CharsPerToken + 1
}

// ContextBuilder packs a primary document and cited excerpts into a
// context that fits the model's token budget. Build is deterministic.
type ContextBuilder struct {
	maxTokens int
	reserved  int
	splitter  textsplitter.RecursiveCharacter
	chunkSize int
}

func NewContextBuilder(cfg *config.RAGConfig) *ContextBuilder {
	d := config.Default().RAG
	if cfg == nil {
		cfg = &d
	}
	maxTokens, reserved := cfg.MaxTokens, cfg.ReservedTokens
	if maxTokens <= 0 {
		maxTokens = d.MaxTokens
	}
	if reserved < 0 || reserved >= maxTokens {
		reserved = d.ReservedTokens
		if reserved >= maxTokens {
			reserved = 0
		}
	}
	chunkSize, overlap := cfg.ChunkSize, cfg.ChunkOverlap
	if chunkSize <= 0 {
		chunkSize = d.ChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = d.ChunkOverlap
	}
	return &ContextBuilder{
		maxTokens: maxTokens,
		reserved:  reserved,
		chunkSize: chunkSize,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(overlap),
		),
	}
}

func (b *ContextBuilder) Budget(primaryText string) models.ContextBudget {
	usable := b.maxTokens - b.reserved
	primary := EstimateTokens(primaryText)
	return models.ContextBudget{
		MaxTokens:     b.maxTokens,
		Reserved:      b.reserved,
		Usable:        usable,
		PrimaryTokens: primary,
		Remaining:     max(usable-primary, 0),
	}
}

func (b *ContextBuilder) Build(query, primaryText string, excerpts []models.Excerpt) string {
	naive := Format(primaryText, excerpts)
	budget := b.Budget(primaryText)
	tokens := EstimateTokens(naive)
	if tokens <= budget.Usable {
		return naive
	}
	log.Info().Int("tokens", tokens).Int("budget", budget.Usable).Msg("Context exceeds token budget")

	if budget.PrimaryOverflows() {
		log.Info().Msg("Truncated primary document to first chunk")
		return Format(b.FirstChunk(primaryText), nil)
	}

	selected := Select(Rank(query, excerpts), budget.Remaining)
	context := Format(primaryText, selected)
	log.Info().Int("tokens", EstimateTokens(context)).Int("citations", len(selected)).Msg("Final context")
	return context
}

// FirstChunk is the first piece the recursive splitter produces.
func (b *ContextBuilder) FirstChunk(text string) string {
	chunks, err := b.splitter.SplitText(text)
	if err != nil || len(chunks) == 0 {
		if err != nil {
			log.Error().Err(err).Msg("Error splitting primary document")
		}
		return helper.Truncate(text, b.chunkSize)
	}
	return chunks[0]
}

// Format renders the primary block followed by one block per excerpt.
func Format(primaryText string, excerpts []models.Excerpt) string {
	parts := make([]string, 0, len(excerpts)+1)
	parts = append(parts, models.PrimaryHeader+primaryText)
	for _, e := range excerpts {
		parts = append(parts, fmt.Sprintf(models.CitationHeader, e.Title)+e.Content)
	}
	return strings.Join(parts, models.ContextSeparator)
}

// Score sums, over every word of the lowercased query, its occurrences in
// the lowercased content.
func Score(query, content string) int {
	lower := strings.ToLower(content)
	score := 0
	for _, word := range wordRe.FindAllString(strings.ToLower(query), -1) {
		score += strings.Count(lower, word)
	}
	return score
}

// Rank orders excerpts by score, highest first. Ties keep input order.
func Rank(query string, excerpts []models.Excerpt) []models.RankedExcerpt {
	ranked := make([]models.RankedExcerpt, len(excerpts))
	for i, e := range excerpts {
		ranked[i] = models.RankedExcerpt{Excerpt: e, Score: Score(query, e.Content)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// Select takes the longest prefix of ranked whose content fits in remaining
// tokens. It stops at the first excerpt that does not fit.
func Select(ranked []models.RankedExcerpt, remaining int) []models.Excerpt {
	var selected []models.Excerpt
	total := 0
	for _, r := range ranked {
		tokens := EstimateTokens(r.Content)
		if total+tokens > remaining {
			break
		}
		selected = append(selected, r.Excerpt)
		total += tokens
	}
	return selected
}
