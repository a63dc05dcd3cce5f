package citation

import (
	"context"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"paper-qa/internal/models"

	"github.com/rs/zerolog/log"
)

// list numbering at the start of a line, e.g. "1.", "(2)", "[12]" or "3.1:"
var listMarkerRe = regexp.MustCompile(`^\s*[\[(]?\p{Nd}+(?:\.\p{Nd}+)*[.)\]:]*\s*`)

// Summarizer answers an instruction about a document with free text.
type Summarizer interface {
	Summarize(ctx context.Context, instruction, document string) (string, error)
}

// Extractor asks a summarizer for the papers cited by a document.
type Extractor struct {
	summarizer Summarizer
	maxTitles  int
	maxChars   int
}

// NewExtractor returns an extractor keeping at most maxTitles titles (never
// more than 20) and sending at most maxTokens estimated tokens of text.
func NewExtractor(summarizer Summarizer, maxTitles, maxTokens int) *Extractor {
	if maxTitles <= 0 || maxTitles > models.MaxCitationTitles {
		maxTitles = models.MaxCitationTitles
	}
	if maxTokens <= 0 {
		maxTokens = models.MaxContextTokens - models.ReservedTokens
	}
	return &Extractor{
		summarizer: summarizer,
		maxTitles:  maxTitles,
		maxChars:   maxTokens * models.CharsPerToken,
	}
}

// ExtractTitles uses the default limits.
func ExtractTitles(ctx context.Context, documentText string, summarizer Summarizer) []string {
	return NewExtractor(summarizer, 0, 0).ExtractTitles(ctx, documentText)
}

// ExtractTitles never fails: summarizer errors are logged and yield no titles.
func (e *Extractor) ExtractTitles(ctx context.Context, documentText string) []string {
	if e.summarizer == nil {
		log.Warn().Msg("No summarizer configured, skipping citation extraction")
		return []string{}
	}

	reply, err := e.summarizer.Summarize(ctx, models.CitationInstruction, Tail(documentText, e.maxChars))
	if err != nil {
		log.Error().Err(err).Msg("Citation extraction error")
		return []string{}
	}

	titles := ParseTitles(reply, e.maxTitles)
	log.Info().Int("titles", len(titles)).Msg("Extracted citation titles")
	return titles
}

// ParseTitles splits a reply into titles: one per non-blank line, with its list
// numbering and every digit removed. At most limit titles are returned.
func ParseTitles(reply string, limit int) []string {
	titles := []string{}
	for _, line := range strings.Split(reply, "\n") {
		if len(titles) >= limit {
			break
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		title := strings.Map(func(r rune) rune {
			if unicode.IsDigit(r) {
				return -1
			}
			return r
		}, listMarkerRe.ReplaceAllString(line, ""))
		title = strings.TrimSpace(title)
		if title == "" {
			continue
		}
		titles = append(titles, title)
	}
	return titles
}

// Tail keeps the last maxChars bytes of text, starting at a line boundary
// when one is available. References sit at the end of a paper.
func Tail(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	start := len(text) - maxChars
	for start < len(text) && !utf8.RuneStart(text[start]) {
		start++
	}
	tail := text[start:]
	if i := strings.IndexByte(tail, '\n'); i >= 0 && i < len(tail)-1 {
		tail = tail[i+1:]
	}
	return tail
}
