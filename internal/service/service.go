package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"paper-qa/internal/config"
	"paper-qa/internal/db"
	"paper-qa/internal/helper"
	"paper-qa/internal/models"
	"paper-qa/internal/parser"
	"paper-qa/internal/storage"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("permission denied")
	ErrInvalidInput = errors.New("invalid input")
)

const (
	pdfContentType = "application/pdf"
	maxTitleLength = 100
)

type TitleExtractor interface {
	ExtractTitles(ctx context.Context, documentText string) []string
}

type CitationProcessor interface {
	Process(ctx context.Context, titles []string) models.CitationReport
}

// Querier answers a question about one of the user's documents.
type Querier interface {
	Query(ctx context.Context, userID string, documentID int64, query string) string
}

// Service owns the document and chat workflows. Every operation checks that
// the caller owns the rows it touches before any side effect.
type Service struct {
	db        *bun.DB
	store     storage.Store
	titles    TitleExtractor
	citations CitationProcessor
	answers   Querier
	extract   func([]byte) string
	enabled   bool
	now       func() time.Time
}

func New(db *bun.DB, store storage.Store, titles TitleExtractor, citations CitationProcessor, answers Querier, cfg *config.Config) *Service {
	return &Service{
		db:        db,
		store:     store,
		titles:    titles,
		citations: citations,
		answers:   answers,
		extract:   parser.ExtractText,
		enabled:   cfg.Citations.Enabled && titles != nil && citations != nil,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Upload stores a PDF and the open-access citations found in it. Input is
// validated before anything is written.
func (s *Service) Upload(ctx context.Context, userID, title, filename, contentType string, data []byte) (*db.Document, models.CitationReport, error) {
	var report models.CitationReport
	if err := validateUpload(userID, filename, data); err != nil {
		return nil, report, err
	}
	if contentType == "" {
		contentType = pdfContentType
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}

	now := s.now()
	blobName, err := helper.BlobName(userID, filename, now)
	if err != nil {
		return nil, report, err
	}
	text := s.extract(data)
	if err := s.storeBlob(ctx, blobName, data, contentType, text); err != nil {
		return nil, report, fmt.Errorf("failed to store document: %w", err)
	}
	stored := []string{blobName}

	switch {
	case !s.enabled:
	case strings.TrimSpace(text) == "":
		log.Warn().Str("blob", blobName).Str("user_id", userID).Msg("No text extracted, skipping citation extraction")
	default:
		report = s.citations.Process(ctx, s.titles.ExtractTitles(ctx, text))
	}

	var children []*db.Document
	for _, outcome := range report.Fetched() {
		child, err := s.storeCitation(ctx, userID, outcome, now)
		if err != nil {
			log.Error().Err(err).Str("title", outcome.Title).Msg("Error storing citation")
			continue
		}
		stored = append(stored, child.BlobName)
		children = append(children, child)
	}

	doc := &db.Document{
		Title:      helper.Truncate(title, maxTitleLength),
		Filename:   filepath.Base(filename),
		BlobName:   blobName,
		UserID:     userID,
		UploadedAt: now,
	}
	if err := db.CreateDocumentWithCitations(ctx, s.db, doc, children); err != nil {
		s.deleteBlobs(ctx, stored)
		return nil, report, fmt.Errorf("failed to save document: %w", err)
	}

	counts := report.Counts()
	log.Info().
		Int64("document_id", doc.ID).
		Str("user_id", userID).
		Int("citations", len(children)).
		Int("no_match", counts[models.StatusNoMatch]).
		Int("skipped", counts[models.StatusSkippedLowTrust]).
		Int("failed", counts[models.StatusFetchFailed]).
		Msg("Document uploaded")
	return doc, report, nil
}

func validateUpload(userID, filename string, data []byte) error {
	if userID == "" {
		return fmt.Errorf("%w: missing user", ErrInvalidInput)
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: no file uploaded", ErrInvalidInput)
	}
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return fmt.Errorf("%w: only PDF files are allowed", ErrInvalidInput)
	}
	if _, err := parser.ValidatePDF(data); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func (s *Service) storeBlob(ctx context.Context, blobName string, data []byte, contentType, text string) error {
	if err := s.store.Store(ctx, blobName, data, contentType); err != nil {
		return err
	}
	if err := s.store.StoreText(ctx, blobName, text); err != nil {
		s.deleteBlobs(ctx, []string{blobName})
		return err
	}
	return nil
}

func (s *Service) storeCitation(ctx context.Context, userID string, outcome models.CitationOutcome, now time.Time) (*db.Document, error) {
	title := outcome.Title
	if outcome.Metadata != nil && outcome.Metadata.Title != "" {
		title = outcome.Metadata.Title
	}
	blobName, err := helper.CitationBlobName(userID, title, now)
	if err != nil {
		return nil, err
	}
	if err := s.storeBlob(ctx, blobName, outcome.Artifact.Content, pdfContentType, outcome.Artifact.Text); err != nil {
		return nil, err
	}
	return &db.Document{
		Title:      helper.Truncate(title, maxTitleLength),
		Filename:   filepath.Base(blobName),
		BlobName:   blobName,
		UploadedAt: now,
	}, nil
}

func (s *Service) deleteBlobs(ctx context.Context, blobNames []string) {
	for _, name := range blobNames {
		if err := s.store.Delete(ctx, name); err != nil {
			log.Error().Err(err).Str("blob", name).Msg("Error deleting blob")
		}
	}
}

// ownedDocument loads a document and checks it belongs to userID.
func (s *Service) ownedDocument(ctx context.Context, userID string, documentID int64) (*db.Document, error) {
	doc, err := db.GetDocument(ctx, s.db, documentID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if doc.UserID != userID {
		return nil, ErrForbidden
	}
	return doc, nil
}

// Delete removes a document, its citation documents and their chats.
func (s *Service) Delete(ctx context.Context, userID string, documentID int64) error {
	doc, err := s.ownedDocument(ctx, userID, documentID)
	if err != nil {
		return err
	}
	children, err := db.ListCitations(ctx, s.db, doc.ID, userID, 0)
	if err != nil {
		return err
	}

	ids := []int64{doc.ID}
	blobs := []string{doc.BlobName}
	for _, c := range children {
		ids = append(ids, c.ID)
		blobs = append(blobs, c.BlobName)
	}
	s.deleteBlobs(ctx, blobs)

	if err := db.DeleteDocuments(ctx, s.db, ids); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	log.Info().Int64("document_id", doc.ID).Str("user_id", userID).Int("citations", len(children)).Msg("Document deleted")
	return nil
}

func (s *Service) ListDocuments(ctx context.Context, userID string) ([]db.Document, error) {
	return db.ListDocuments(ctx, s.db, userID)
}

func (s *Service) ListCitations(ctx context.Context, userID string, documentID int64) ([]db.Document, error) {
	doc, err := s.ownedDocument(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}
	return db.ListCitations(ctx, s.db, doc.ID, userID, 0)
}

// NewSession starts a chat about a document. An empty title becomes
// "Chat about {document title}".
func (s *Service) NewSession(ctx context.Context, userID string, documentID int64, title string) (*db.ChatSession, error) {
	doc, err := s.ownedDocument(ctx, userID, documentID)
	if err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = fmt.Sprintf(models.DefaultSessionTitle, doc.Title)
	}
	session := &db.ChatSession{
		Title:      helper.Truncate(title, maxTitleLength),
		UserID:     userID,
		DocumentID: doc.ID,
		CreatedAt:  s.now(),
	}
	if err := db.CreateSession(ctx, s.db, session); err != nil {
		return nil, fmt.Errorf("failed to create chat session: %w", err)
	}
	return session, nil
}

func (s *Service) ListSessions(ctx context.Context, userID string) ([]db.ChatSession, error) {
	return db.ListSessions(ctx, s.db, userID)
}

func (s *Service) ownedSession(ctx context.Context, userID string, sessionID int64) (*db.ChatSession, error) {
	session, err := db.GetSession(ctx, s.db, sessionID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if session.UserID != userID {
		return nil, ErrForbidden
	}
	return session, nil
}

func (s *Service) Messages(ctx context.Context, userID string, sessionID int64) ([]db.ChatMessage, error) {
	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return db.ListMessages(ctx, s.db, session.ID)
}

// Send stores the user's message, answers it and stores the answer. The
// answer message is returned.
func (s *Service) Send(ctx context.Context, userID string, sessionID int64, message string) (*db.ChatMessage, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("%w: empty message", ErrInvalidInput)
	}
	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	question := &db.ChatMessage{Content: message, IsUser: true, SessionID: session.ID, Timestamp: s.now()}
	if err := db.CreateMessage(ctx, s.db, question); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	answer := s.answers.Query(ctx, userID, session.DocumentID, message)
	reply := &db.ChatMessage{Content: answer, SessionID: session.ID, Timestamp: s.now()}
	if err := db.CreateMessage(ctx, s.db, reply); err != nil {
		return nil, fmt.Errorf("failed to save answer: %w", err)
	}
	return reply, nil
}

func (s *Service) DeleteSession(ctx context.Context, userID string, sessionID int64) error {
	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	return db.DeleteSession(ctx, s.db, session.ID)
}
