package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Document is one JSON document of a remote collection. Every document is
// tagged with its owning user so a collection can be filtered per user.
type Document struct {
	ID        string
	UserID    string
	Data      []byte
	UpdatedAt time.Time
}

type BatchOpKind int

const (
	BatchSet BatchOpKind = iota
	BatchDelete
)

type BatchOp struct {
	Kind       BatchOpKind
	Collection string
	Document   Document
}

type DocumentStore interface {
	// Returns document by id or errorvalues.ErrDocumentNotFound
	Get(ctx context.Context, collection, id string) (*Document, error)
	// Upserts document. Returns the timestamp assigned by the store
	Set(ctx context.Context, collection string, doc Document) (time.Time, error)
	// Lists documents of collection owned by userID, in no particular order
	Query(ctx context.Context, collection, userID string) ([]Document, error)
	// Applies all ops atomically: either every op is committed or none
	Batch(ctx context.Context, ops []BatchOp) error
	// Deletes document by id. Deleting an absent document is not an error
	Delete(ctx context.Context, collection, id string) error
}

// BlobStore is a small local key-value store. Keys live under a namespace,
// one per user, so several identities can share a single database file.
type BlobStore interface {
	// Returns stored value or errorvalues.ErrBlobNotFound
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	Set(ctx context.Context, namespace, key string, value []byte) error
	// Deleting an absent key is not an error
	Delete(ctx context.Context, namespace, key string) error
}

type DBConfig interface {
	ConnString() string
}

type PgConnection interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PGCfg struct {
	Address  string
	Username string
	Password string
	DB       string
}

func (pgcfg *PGCfg) ConnString() string {
	return fmt.Sprintf("postgresql://%s:%s@%s/%s", pgcfg.Username, pgcfg.Password, pgcfg.Address, pgcfg.DB)
}
