package rag

import (
	"context"

	"paper-qa/internal/config"
	"paper-qa/internal/db"
	"paper-qa/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
)

// TextSource returns the extracted text stored for a blob.
type TextSource interface {
	FetchText(ctx context.Context, locator string) (string, error)
}

type Answerer interface {
	Answer(ctx context.Context, query, contextText string) string
}

// RAG answers questions about one document using its text and the text of
// the citations fetched for it.
type RAG struct {
	db           *bun.DB
	texts        TextSource
	builder      *ContextBuilder
	answerer     Answerer
	maxCitations int
}

func NewRAG(db *bun.DB, texts TextSource, builder *ContextBuilder, answerer Answerer, cfg *config.Config) *RAG {
	maxCitations := cfg.RAG.MaxCitations
	if maxCitations <= 0 {
		maxCitations = config.Default().RAG.MaxCitations
	}
	return &RAG{db: db, texts: texts, builder: builder, answerer: answerer, maxCitations: maxCitations}
}

// Query never fails; problems become a user-facing answer.
func (r *RAG) Query(ctx context.Context, userID string, documentID int64, query string) string {
	primary, excerpts, found, err := r.retrieve(ctx, userID, documentID)
	if err != nil {
		log.Error().Err(err).Int64("document_id", documentID).Str("user_id", userID).Msg("Error retrieving document text")
		return models.AnswerErrorPrefix + err.Error()
	}
	if !found {
		return models.NoContentAnswer
	}

	contextText := r.builder.Build(query, primary, excerpts)
	return r.answerer.Answer(ctx, query, contextText)
}

func (r *RAG) retrieve(ctx context.Context, userID string, documentID int64) (string, []models.Excerpt, bool, error) {
	doc, err := db.GetDocument(ctx, r.db, documentID)
	if err != nil {
		if db.IsNotFound(err) {
			return "", nil, false, nil
		}
		return "", nil, false, err
	}
	if doc.UserID != userID {
		return "", nil, false, nil
	}

	found := false
	primary, err := r.texts.FetchText(ctx, doc.BlobName)
	if err != nil {
		log.Error().Err(err).Str("blob", doc.BlobName).Msg("Error downloading primary text")
	} else {
		found = true
	}

	citations, err := db.ListCitations(ctx, r.db, doc.ID, userID, r.maxCitations)
	if err != nil {
		return "", nil, false, err
	}
	var excerpts []models.Excerpt
	for _, c := range citations {
		text, err := r.texts.FetchText(ctx, c.BlobName)
		if err != nil {
			log.Error().Err(err).Str("blob", c.BlobName).Msg("Error downloading cited text")
			continue
		}
		excerpts = append(excerpts, models.Excerpt{Title: c.Title, Content: text})
		found = true
	}

	log.Info().Int64("document_id", documentID).Int("citations", len(excerpts)).Msg("Retrieved document text")
	return primary, excerpts, found, nil
}
