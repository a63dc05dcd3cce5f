package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"paper-qa/internal/config"
	"paper-qa/internal/db"
	"paper-qa/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type mapTexts map[string]string

func (m mapTexts) FetchText(ctx context.Context, locator string) (string, error) {
	text, ok := m[locator]
	if !ok {
		return "", errors.New("blob not found")
	}
	return text, nil
}

type recordingAnswerer struct {
	contexts []string
}

func (r *recordingAnswerer) Answer(ctx context.Context, query, contextText string) string {
	r.contexts = append(r.contexts, contextText)
	return "answer to " + query
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	bunDB, err := db.Open(&config.DatabaseConfig{
		Driver: db.DriverSQLite,
		URL:    fmt.Sprintf("file:rag_%s?mode=memory&cache=shared", name),
	})
	require.NoError(t, err)
	t.Cleanup(func() { bunDB.Close() })
	require.NoError(t, db.InitDB(context.Background(), bunDB))
	return bunDB
}

func seed(t *testing.T, bunDB *bun.DB, userID string, citations int) *db.Document {
	t.Helper()
	now := time.Now().UTC()
	doc := &db.Document{Title: "Primary", Filename: "p.pdf", BlobName: userID + "/p.pdf", UserID: userID, UploadedAt: now}
	var children []*db.Document
	for i := 0; i < citations; i++ {
		children = append(children, &db.Document{
			Title:      fmt.Sprintf("Cited %d", i),
			Filename:   fmt.Sprintf("c%d.pdf", i),
			BlobName:   fmt.Sprintf("%s/citations/c%d.pdf", userID, i),
			UploadedAt: now,
		})
	}
	require.NoError(t, db.CreateDocumentWithCitations(context.Background(), bunDB, doc, children))
	return doc
}

func TestQuery_BuildsContextFromPrimaryAndTopCitations(t *testing.T) {
	bunDB := newTestDB(t)
	doc := seed(t, bunDB, "u1", 4)
	texts := mapTexts{
		"u1/p.pdf":            "Primary text.",
		"u1/citations/c0.pdf": "zero",
		"u1/citations/c1.pdf": "one",
		"u1/citations/c2.pdf": "two",
		"u1/citations/c3.pdf": "three",
	}
	answerer := &recordingAnswerer{}
	r := NewRAG(bunDB, texts, NewContextBuilder(nil), answerer, config.Default())

	got := r.Query(context.Background(), "u1", doc.ID, "what?")

	assert.Equal(t, "answer to what?", got)
	require.Len(t, answerer.contexts, 1)
	want := Format("Primary text.", []models.Excerpt{
		{Title: "Cited 0", Content: "zero"},
		{Title: "Cited 1", Content: "one"},
		{Title: "Cited 2", Content: "two"},
	})
	assert.Equal(t, want, answerer.contexts[0])
}

func TestQuery_MissingCitationTextIsSkipped(t *testing.T) {
	bunDB := newTestDB(t)
	doc := seed(t, bunDB, "u1", 2)
	texts := mapTexts{"u1/p.pdf": "Primary text.", "u1/citations/c1.pdf": "one"}
	answerer := &recordingAnswerer{}
	r := NewRAG(bunDB, texts, NewContextBuilder(nil), answerer, config.Default())

	r.Query(context.Background(), "u1", doc.ID, "q")

	require.Len(t, answerer.contexts, 1)
	assert.Equal(t, Format("Primary text.", []models.Excerpt{{Title: "Cited 1", Content: "one"}}), answerer.contexts[0])
}

func TestQuery_NothingRetrievable(t *testing.T) {
	bunDB := newTestDB(t)
	doc := seed(t, bunDB, "u1", 1)
	answerer := &recordingAnswerer{}
	r := NewRAG(bunDB, mapTexts{}, NewContextBuilder(nil), answerer, config.Default())

	assert.Equal(t, models.NoContentAnswer, r.Query(context.Background(), "u1", doc.ID, "q"))
	assert.Equal(t, models.NoContentAnswer, r.Query(context.Background(), "u1", doc.ID+100, "q"))
	// other users see nothing
	r = NewRAG(bunDB, mapTexts{"u1/p.pdf": "secret"}, NewContextBuilder(nil), answerer, config.Default())
	assert.Equal(t, models.NoContentAnswer, r.Query(context.Background(), "u2", doc.ID, "q"))
	assert.Empty(t, answerer.contexts)
}

func TestQuery_FallbackEndToEnd(t *testing.T) {
	bunDB := newTestDB(t)
	doc := seed(t, bunDB, "u1", 0)
	r := NewRAG(bunDB, mapTexts{"u1/p.pdf": "The sky is blue. Grass is green."}, NewContextBuilder(nil), NewAnswerGenerator(nil, 0), config.Default())

	got := r.Query(context.Background(), "u1", doc.ID, "sky")
	assert.Equal(t, "Here's what I found in your document:\n\nPrimary Document:\nThe sky is blue.", got)
}
