package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"paper-qa/internal/config"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverPQ       = "pq"
	DriverSQLite   = "sqlite"
)

// Document is an uploaded paper or a citation fetched on its behalf.
// ParentID is set only on citation documents.
type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	Title         string    `bun:"title,notnull" json:"title"`
	Filename      string    `bun:"filename,notnull" json:"filename"`
	BlobName      string    `bun:"blob_name,notnull" json:"blob_name"`
	UserID        string    `bun:"user_id,notnull" json:"user_id"`
	ParentID      *int64    `bun:"parent_document_id" json:"parent_document_id,omitempty"`
	UploadedAt    time.Time `bun:"uploaded_at,notnull" json:"uploaded_at"`
}

func (d *Document) IsCitation() bool {
	return d.ParentID != nil
}

type ChatSession struct {
	bun.BaseModel `bun:"table:chat_sessions,alias:cs"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	Title         string    `bun:"title,notnull" json:"title"`
	UserID        string    `bun:"user_id,notnull" json:"user_id"`
	DocumentID    int64     `bun:"document_id,notnull" json:"document_id"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
}

type ChatMessage struct {
	bun.BaseModel `bun:"table:chat_messages,alias:cm"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	Content       string    `bun:"content,notnull" json:"content"`
	IsUser        bool      `bun:"is_user,notnull" json:"is_user"`
	SessionID     int64     `bun:"session_id,notnull" json:"session_id"`
	Timestamp     time.Time `bun:"created_at,notnull" json:"timestamp"`
}

var tables = []interface{}{
	(*Document)(nil),
	(*ChatSession)(nil),
	(*ChatMessage)(nil),
}

func NewDB(sqldb *sql.DB, cfg *config.DatabaseConfig) *bun.DB {
	var db *bun.DB
	if cfg.Driver == DriverSQLite {
		db = bun.NewDB(sqldb, sqlitedialect.New())
	} else {
		db = bun.NewDB(sqldb, pgdialect.New())
	}
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case DriverSQLite:
		sqldb, err := sql.Open("sqlite", cfg.URL)
		if err != nil {
			return nil, err
		}
		// sqlite allows a single writer
		sqldb.SetMaxOpenConns(1)
		return sqldb, nil
	case DriverPQ:
		return sql.Open("postgres", postgresDSN(cfg.URL))
	case DriverPostgres, "":
		return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(postgresDSN(cfg.URL)), pgdriver.WithPassword(cfg.Password))), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// Open connects and wraps the connection in a bun.DB.
func Open(cfg *config.DatabaseConfig) (*bun.DB, error) {
	sqldb, err := ConnectDB(cfg)
	if err != nil {
		return nil, err
	}
	return NewDB(sqldb, cfg), nil
}

func postgresDSN(url string) string {
	if strings.Contains(url, "sslmode=") {
		return url
	}
	if strings.Contains(url, "?") {
		return url + "&sslmode=disable"
	}
	return url + "?sslmode=disable"
}

func InitDB(ctx context.Context, db *bun.DB) error {
	for _, model := range tables {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func DropTables(ctx context.Context, db *bun.DB) error {
	for _, model := range tables {
		if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
