package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"paper-qa/internal/helper"
	"paper-qa/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
)

// AnswerGenerator answers a question from an assembled context. Answer never
// fails: without a model, or when the model call fails, it falls back to
// sentence matching.
type AnswerGenerator struct {
	chain   chains.Chain
	timeout time.Duration
}

func NewAnswerGenerator(llm llms.Model, timeout time.Duration) *AnswerGenerator {
	g := &AnswerGenerator{timeout: timeout}
	if llm != nil {
		prompt := prompts.NewPromptTemplate(models.AnswerPromptTemplate, []string{"context", "query"})
		g.chain = chains.NewLLMChain(llm, prompt)
	}
	return g
}

func (g *AnswerGenerator) Answer(ctx context.Context, query, contextText string) (answer string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Error generating answer")
			answer = models.AnswerErrorPrefix + fmt.Sprint(r)
		}
	}()

	if g.chain == nil {
		log.Warn().Msg("Falling back to simple response, LLM not available")
		return Fallback(query, contextText)
	}

	text, err := g.generate(ctx, query, contextText)
	if err != nil {
		log.Error().Err(err).Msg("LLM answer failed, falling back to simple response")
		return Fallback(query, contextText)
	}
	log.Info().Msg("Generated response from LLM")
	return text
}

func (g *AnswerGenerator) generate(ctx context.Context, query, contextText string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	out, err := chains.Call(ctx, g.chain, map[string]any{
		"context": contextText,
		"query":   query,
	})
	if err != nil {
		return "", err
	}
	text, ok := out["text"].(string)
	if !ok {
		return "", errors.New("unexpected chain output")
	}
	return text, nil
}

// Fallback returns the context sentences that contain the query, or the
// start of the context when none do.
func Fallback(query, contextText string) string {
	q := strings.ToLower(query)
	var matches []string
	for _, sentence := range strings.Split(contextText, ".") {
		if strings.Contains(strings.ToLower(sentence), q) {
			matches = append(matches, strings.TrimSpace(sentence))
		}
	}
	if len(matches) > 0 {
		return models.FallbackMatchPreamble + strings.Join(matches, ". ") + "."
	}
	return models.FallbackContextPreamble + helper.Truncate(contextText, models.FallbackContextChars) + "..."
}
