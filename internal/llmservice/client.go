package llmservice

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"paper-qa/internal/config"
	"paper-qa/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

var ErrNoModel = errors.New("no language model configured")

var thinkTagRe = regexp.MustCompile(models.ThinkTag)

// NewModel builds the chat model described by llmConfig. It returns a nil
// model and no error when the openai provider has no key, which callers
// treat as "run without a model".
func NewModel(llmConfig *config.LLMConfig) (llms.Model, error) {
	log.Debug().Str("provider", llmConfig.Provider).Str("base_url", llmConfig.BaseURL).Str("model", llmConfig.Model).Msg("Initializing LLM")

	switch llmConfig.Provider {
	case "ollama":
		llm, err := ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
		)
		if err != nil {
			return nil, err
		}
		return llm, nil
	case "openai", "":
		key := strings.TrimPrefix(llmConfig.Key, "Bearer ")
		if key == "" {
			log.Warn().Msg("LLM key not configured, answers will use the fallback responder")
			return nil, nil
		}
		llm, err := openai.New(
			openai.WithBaseURL(llmConfig.BaseURL),
			openai.WithToken(key),
			openai.WithModel(llmConfig.Model),
		)
		if err != nil {
			return nil, err
		}
		return llm, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", llmConfig.Provider)
	}
}

// call llm
func GenerateContent(ctx context.Context, llm llms.Model, tools []llms.Tool, messages []llms.MessageContent) (*llms.ContentResponse, error) {
	if llm == nil {
		return nil, ErrNoModel
	}
	if len(tools) > 0 {
		return llm.GenerateContent(ctx, messages, llms.WithTools(tools))
	}
	return llm.GenerateContent(ctx, messages)
}

// Summarizer sends a document with an instruction to the model and returns
// its free-text reply.
type Summarizer struct {
	llm     llms.Model
	timeout time.Duration
}

func NewSummarizer(llm llms.Model, timeout time.Duration) *Summarizer {
	return &Summarizer{llm: llm, timeout: timeout}
}

func (s *Summarizer) Summarize(ctx context.Context, instruction, document string) (string, error) {
	if s == nil || s.llm == nil {
		return "", ErrNoModel
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	prompt := fmt.Sprintf(models.CitationPromptTemplate, document, instruction)
	msgContent := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	res, err := GenerateContent(ctx, s.llm, nil, msgContent)
	if err != nil {
		return "", err
	}
	if len(res.Choices) == 0 {
		return "", errors.New("empty response from LLM")
	}
	return strings.TrimSpace(thinkTagRe.ReplaceAllString(res.Choices[0].Content, "")), nil
}
