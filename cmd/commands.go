package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"paper-qa/internal/citation"
	"paper-qa/internal/db"
	"paper-qa/internal/helper"
	"paper-qa/internal/llmservice"
	"paper-qa/internal/parser"
	"paper-qa/internal/rag"
	"paper-qa/internal/server"
	"paper-qa/internal/service"
	"paper-qa/internal/storage"
)

var (
	resetDB    bool
	userFlag   string
	fileFlag   string
	titleFlag  string
	queryFlag  string
	documentID int64
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create the database tables",
	RunE:  runInitDB,
}

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload a PDF and fetch the papers it cites",
	RunE:  runUpload,
}

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Ask a question about an uploaded document",
	RunE:  runAsk,
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a document with its citations and chats",
	RunE:  runDelete,
}

func init() {
	initDBCmd.Flags().BoolVar(&resetDB, "reset", false, "drop existing tables first")

	for _, cmd := range []*cobra.Command{uploadCmd, askCmd, deleteCmd} {
		cmd.Flags().StringVar(&userFlag, "user", "", "owning user id")
		_ = cmd.MarkFlagRequired("user")
	}
	uploadCmd.Flags().StringVarP(&fileFlag, "file", "f", "", "path to the PDF")
	uploadCmd.Flags().StringVar(&titleFlag, "title", "", "document title, defaults to the file name")
	_ = uploadCmd.MarkFlagRequired("file")

	for _, cmd := range []*cobra.Command{askCmd, deleteCmd} {
		cmd.Flags().Int64Var(&documentID, "document", 0, "document id")
		_ = cmd.MarkFlagRequired("document")
	}
	askCmd.Flags().StringVarP(&queryFlag, "query", "q", "", "question to answer")
	_ = askCmd.MarkFlagRequired("query")

	rootCmd.AddCommand(serveCmd, initDBCmd, uploadCmd, askCmd, deleteCmd)
}

type app struct {
	db  *bun.DB
	svc *service.Service
	rag *rag.RAG
}

func newApp(ctx context.Context) (*app, error) {
	dbInstance, err := db.Open(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	if err := db.InitDB(ctx, dbInstance); err != nil {
		dbInstance.Close()
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	store, err := storage.NewFileStore(cfg.Storage.Root)
	if err != nil {
		dbInstance.Close()
		return nil, err
	}

	llm, err := llmservice.NewModel(&cfg.LLM)
	if err != nil {
		dbInstance.Close()
		return nil, fmt.Errorf("error initializing LLM: %w", err)
	}

	extractor := citation.NewExtractor(
		llmservice.NewSummarizer(llm, cfg.LLM.Timeout),
		cfg.Citations.MaxTitles,
		cfg.RAG.MaxTokens-cfg.RAG.ReservedTokens,
	)
	pipeline := citation.NewPipeline(
		citation.NewResolver(&cfg.Citations),
		citation.NewFetcher(cfg.Citations.FetchTimeout, parser.PDFExtractor{}),
	)

	answers := rag.NewRAG(
		dbInstance,
		store,
		rag.NewContextBuilder(&cfg.RAG),
		rag.NewAnswerGenerator(llm, cfg.LLM.Timeout),
		cfg,
	)

	return &app{
		db:  dbInstance,
		svc: service.New(dbInstance, store, extractor, pipeline, answers, cfg),
		rag: answers,
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing database")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	e := server.New(a.svc, &cfg.Server)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("Starting server")
		if err := e.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func runInitDB(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dbInstance, err := db.Open(&cfg.Database)
	if err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}
	defer dbInstance.Close()

	if resetDB {
		if err := db.DropTables(ctx, dbInstance); err != nil {
			return fmt.Errorf("error dropping tables: %w", err)
		}
	}
	if err := db.InitDB(ctx, dbInstance); err != nil {
		return fmt.Errorf("error initializing database: %w", err)
	}
	log.Info().Bool("reset", resetDB).Msg("Database initialized")
	return nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	data, err := os.ReadFile(fileFlag)
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	doc, report, err := a.svc.Upload(ctx, userFlag, titleFlag, filepath.Base(fileFlag), "application/pdf", data)
	if err != nil {
		return err
	}

	log.Info().Int64("document_id", doc.ID).Str("blob", doc.BlobName).Msg("Uploaded document")
	helper.PrettyPrint(report)
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	answer := a.rag.Query(ctx, userFlag, documentID, queryFlag)

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", queryFlag)

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", answer)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.svc.Delete(ctx, userFlag, documentID); err != nil {
		return err
	}
	log.Info().Int64("document_id", documentID).Msg("Deleted document")
	return nil
}
