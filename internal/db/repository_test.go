package db

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"paper-qa/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	cfg := &config.DatabaseConfig{
		Driver: DriverSQLite,
		URL:    fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	}
	db, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, InitDB(context.Background(), db))
	return db
}

func newDocument(userID, title string, at time.Time) *Document {
	return &Document{
		Title:      title,
		Filename:   title + ".pdf",
		BlobName:   userID + "/" + title + ".pdf",
		UserID:     userID,
		UploadedAt: at,
	}
}

func TestCreateDocumentWithCitations_AssignsParent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	now := time.Now().UTC()

	doc := newDocument("u1", "primary", now)
	citations := []*Document{
		newDocument("", "cited-a", now),
		newDocument("", "cited-b", now),
	}
	require.NoError(t, CreateDocumentWithCitations(ctx, db, doc, citations))
	require.NotZero(t, doc.ID)

	children, err := ListCitations(ctx, db, doc.ID, "u1", 0)
	require.NoError(t, err)
	require.Len(t, children, 2)
	for _, c := range children {
		require.NotNil(t, c.ParentID)
		assert.Equal(t, doc.ID, *c.ParentID)
		assert.Equal(t, "u1", c.UserID)
		assert.True(t, c.IsCitation())
	}
	assert.Equal(t, "cited-a", children[0].Title)

	limited, err := ListCitations(ctx, db, doc.ID, "u1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	other, err := ListCitations(ctx, db, doc.ID, "u2", 0)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestListDocuments_PrimaryOnlyNewestFirst(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	older := newDocument("u1", "older", base)
	newer := newDocument("u1", "newer", base.Add(time.Hour))
	require.NoError(t, CreateDocumentWithCitations(ctx, db, older, []*Document{newDocument("", "cited", base)}))
	require.NoError(t, CreateDocumentWithCitations(ctx, db, newer, nil))
	require.NoError(t, CreateDocumentWithCitations(ctx, db, newDocument("u2", "foreign", base), nil))

	docs, err := ListDocuments(ctx, db, "u1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "newer", docs[0].Title)
	assert.Equal(t, "older", docs[1].Title)
}

func TestGetDocument_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := GetDocument(context.Background(), db, 42)
	assert.True(t, IsNotFound(err))
}

func TestDeleteDocuments_CascadesSessionsAndMessages(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	now := time.Now().UTC()

	doc := newDocument("u1", "primary", now)
	require.NoError(t, CreateDocumentWithCitations(ctx, db, doc, []*Document{newDocument("", "cited", now)}))
	keep := newDocument("u1", "keep", now)
	require.NoError(t, CreateDocumentWithCitations(ctx, db, keep, nil))

	session := &ChatSession{Title: "Chat about primary", UserID: "u1", DocumentID: doc.ID, CreatedAt: now}
	require.NoError(t, CreateSession(ctx, db, session))
	require.NoError(t, CreateMessage(ctx, db, &ChatMessage{Content: "hi", IsUser: true, SessionID: session.ID, Timestamp: now}))

	children, err := ListCitations(ctx, db, doc.ID, "u1", 0)
	require.NoError(t, err)
	ids := []int64{doc.ID}
	for _, c := range children {
		ids = append(ids, c.ID)
	}
	require.NoError(t, DeleteDocuments(ctx, db, ids))

	_, err = GetDocument(ctx, db, doc.ID)
	assert.True(t, IsNotFound(err))
	_, err = GetSession(ctx, db, session.ID)
	assert.True(t, IsNotFound(err))
	msgs, err := ListMessages(ctx, db, session.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	remaining, err := ListDocuments(ctx, db, "u1")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, keep.ID, remaining[0].ID)
}

func TestSessionsAndMessages(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	now := time.Now().UTC()

	first := &ChatSession{Title: "first", UserID: "u1", DocumentID: 1, CreatedAt: now}
	second := &ChatSession{Title: "second", UserID: "u1", DocumentID: 1, CreatedAt: now.Add(time.Minute)}
	require.NoError(t, CreateSession(ctx, db, first))
	require.NoError(t, CreateSession(ctx, db, second))

	sessions, err := ListSessions(ctx, db, "u1")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "second", sessions[0].Title)

	require.NoError(t, CreateMessage(ctx, db, &ChatMessage{Content: "question", IsUser: true, SessionID: first.ID, Timestamp: now}))
	require.NoError(t, CreateMessage(ctx, db, &ChatMessage{Content: "answer", SessionID: first.ID, Timestamp: now.Add(time.Second)}))

	msgs, err := ListMessages(ctx, db, first.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].IsUser)
	assert.Equal(t, "answer", msgs[1].Content)

	require.NoError(t, DeleteSession(ctx, db, first.ID))
	msgs, err = ListMessages(ctx, db, first.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	sessions, err = ListSessions(ctx, db, "u1")
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestConnectDB_UnknownDriver(t *testing.T) {
	_, err := ConnectDB(&config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	assert.Equal(t, "postgres://h/db?sslmode=disable", postgresDSN("postgres://h/db"))
	assert.Equal(t, "postgres://h/db?x=1&sslmode=disable", postgresDSN("postgres://h/db?x=1"))
	assert.Equal(t, "postgres://h/db?sslmode=require", postgresDSN("postgres://h/db?sslmode=require"))
}
