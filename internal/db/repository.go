package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
)

// CreateDocumentWithCitations stores a primary document and the citation
// documents discovered from it in one transaction. Each child's ParentID is
// assigned from the primary row's generated id.
func CreateDocumentWithCitations(ctx context.Context, db *bun.DB, doc *Document, citations []*Document) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(doc).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert document: %w", err)
		}
		if len(citations) == 0 {
			return nil
		}
		for _, c := range citations {
			parentID := doc.ID
			c.ParentID = &parentID
			c.UserID = doc.UserID
		}
		if _, err := tx.NewInsert().Model(&citations).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert citations: %w", err)
		}
		return nil
	})
}

func GetDocument(ctx context.Context, db bun.IDB, id int64) (*Document, error) {
	doc := new(Document)
	err := db.NewSelect().Model(doc).Where("d.id = ?", id).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocuments returns the user's primary documents, newest first.
func ListDocuments(ctx context.Context, db bun.IDB, userID string) ([]Document, error) {
	var docs []Document
	err := db.NewSelect().
		Model(&docs).
		Where("d.user_id = ?", userID).
		Where("d.parent_document_id IS NULL").
		OrderExpr("d.uploaded_at DESC, d.id DESC").
		Scan(ctx)
	return docs, err
}

// ListCitations returns the citation children of a document in insertion
// order. A limit of zero returns all of them.
func ListCitations(ctx context.Context, db bun.IDB, parentID int64, userID string, limit int) ([]Document, error) {
	var docs []Document
	q := db.NewSelect().
		Model(&docs).
		Where("d.parent_document_id = ?", parentID).
		Where("d.user_id = ?", userID).
		OrderExpr("d.id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Scan(ctx)
	return docs, err
}

// DeleteDocuments removes the given documents together with their chat
// sessions and messages in one transaction.
func DeleteDocuments(ctx context.Context, db *bun.DB, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var sessionIDs []int64
		err := tx.NewSelect().
			Model((*ChatSession)(nil)).
			Column("id").
			Where("document_id IN (?)", bun.In(ids)).
			Scan(ctx, &sessionIDs)
		if err != nil {
			return fmt.Errorf("failed to list chat sessions: %w", err)
		}
		if err := deleteSessions(ctx, tx, sessionIDs); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*Document)(nil)).Where("id IN (?)", bun.In(ids)).Exec(ctx); err != nil {
			return fmt.Errorf("failed to delete documents: %w", err)
		}
		return nil
	})
}

func CreateSession(ctx context.Context, db bun.IDB, session *ChatSession) error {
	_, err := db.NewInsert().Model(session).Exec(ctx)
	return err
}

func GetSession(ctx context.Context, db bun.IDB, id int64) (*ChatSession, error) {
	session := new(ChatSession)
	err := db.NewSelect().Model(session).Where("cs.id = ?", id).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func ListSessions(ctx context.Context, db bun.IDB, userID string) ([]ChatSession, error) {
	var sessions []ChatSession
	err := db.NewSelect().
		Model(&sessions).
		Where("cs.user_id = ?", userID).
		OrderExpr("cs.created_at DESC, cs.id DESC").
		Scan(ctx)
	return sessions, err
}

func DeleteSession(ctx context.Context, db *bun.DB, id int64) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return deleteSessions(ctx, tx, []int64{id})
	})
}

func deleteSessions(ctx context.Context, tx bun.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := tx.NewDelete().Model((*ChatMessage)(nil)).Where("session_id IN (?)", bun.In(ids)).Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete chat messages: %w", err)
	}
	if _, err := tx.NewDelete().Model((*ChatSession)(nil)).Where("id IN (?)", bun.In(ids)).Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete chat sessions: %w", err)
	}
	return nil
}

func CreateMessage(ctx context.Context, db bun.IDB, msg *ChatMessage) error {
	_, err := db.NewInsert().Model(msg).Exec(ctx)
	return err
}

// ListMessages returns a session's messages in the order they were written.
func ListMessages(ctx context.Context, db bun.IDB, sessionID int64) ([]ChatMessage, error) {
	var msgs []ChatMessage
	err := db.NewSelect().
		Model(&msgs).
		Where("cm.session_id = ?", sessionID).
		OrderExpr("cm.created_at ASC, cm.id ASC").
		Scan(ctx)
	return msgs, err
}

// IsNotFound reports whether err is the no-rows error returned by Get*.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
