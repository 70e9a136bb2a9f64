package repository

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	errorvalues "github.com/limbo/plankup/internal/error_values"
	"github.com/limbo/plankup/pkg/cleanup"
)

const (
	upsertDocumentQuery = `INSERT INTO documents (collection, id, user_id, data) VALUES ($1, $2, $3, $4)
		ON CONFLICT (collection, id) DO UPDATE SET user_id = EXCLUDED.user_id, data = EXCLUDED.data, updated_at = NOW()
		RETURNING updated_at;`
	getDocumentQuery    = `SELECT user_id, data, updated_at FROM documents WHERE collection = $1 AND id = $2;`
	queryDocumentsQuery = `SELECT id, user_id, data, updated_at FROM documents WHERE collection = $1 AND user_id = $2;`
	deleteDocumentQuery = `DELETE FROM documents WHERE collection = $1 AND id = $2;`
)

// PgDocumentStore keeps JSON documents in a single Postgres table keyed by (collection, id).
type PgDocumentStore struct {
	conn PgConnection
}

// NewPgDocumentStore builds the pool without connecting. The database may be
// down at startup; reachability is the connectivity prober's concern.
func NewPgDocumentStore(cfg DBConfig) (*PgDocumentStore, error) {
	pool, err := pgxpool.New(context.Background(), cfg.ConnString())
	if err != nil {
		return nil, errors.New("creating connection for documentStore error: " + err.Error())
	}
	cleanup.Register(&cleanup.Job{
		Name: "closing pgxpool",
		F: func() error {
			pool.Close()
			return nil
		},
	})
	return &PgDocumentStore{
		conn: pool,
	}, nil
}

func NewPgDocumentStoreWithConn(conn PgConnection) *PgDocumentStore {
	return &PgDocumentStore{
		conn: conn,
	}
}

// Ping lets the store act as a connectivity probe target.
func (ds *PgDocumentStore) Ping(ctx context.Context) error {
	return ds.conn.Ping(ctx)
}

func (ds *PgDocumentStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	doc := Document{ID: id}
	row := ds.conn.QueryRow(ctx, getDocumentQuery, collection, id)
	if err := row.Scan(&doc.UserID, &doc.Data, &doc.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorvalues.ErrDocumentNotFound
		}
		return nil, errors.New("getting document error: " + err.Error())
	}
	return &doc, nil
}

func (ds *PgDocumentStore) Set(ctx context.Context, collection string, doc Document) (time.Time, error) {
	var updatedAt time.Time
	row := ds.conn.QueryRow(ctx, upsertDocumentQuery, collection, doc.ID, doc.UserID, string(doc.Data))
	if err := row.Scan(&updatedAt); err != nil {
		return time.Time{}, errors.New("upserting document error: " + err.Error())
	}
	return updatedAt, nil
}

func (ds *PgDocumentStore) Query(ctx context.Context, collection, userID string) ([]Document, error) {
	rows, err := ds.conn.Query(ctx, queryDocumentsQuery, collection, userID)
	if err != nil {
		return nil, errors.New("querying documents error: " + err.Error())
	}
	defer rows.Close()
	docs := make([]Document, 0)
	for rows.Next() {
		doc := Document{}
		err = rows.Scan(&doc.ID, &doc.UserID, &doc.Data, &doc.UpdatedAt)
		if err != nil {
			return nil, errors.New("document row parsing error: " + err.Error())
		}
		docs = append(docs, doc)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.New("unexpected document rows error: " + err.Error())
	}
	return docs, nil
}

func (ds *PgDocumentStore) Batch(ctx context.Context, ops []BatchOp) error {
	tx, err := ds.conn.Begin(ctx)
	if err != nil {
		return errors.New("starting batch error: " + err.Error())
	}
	for _, op := range ops {
		switch op.Kind {
		case BatchSet:
			_, err = tx.Exec(ctx, upsertDocumentQuery, op.Collection, op.Document.ID, op.Document.UserID, string(op.Document.Data))
		case BatchDelete:
			_, err = tx.Exec(ctx, deleteDocumentQuery, op.Collection, op.Document.ID)
		default:
			err = errors.New("unknown batch op")
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Println("batch rollback error: " + rbErr.Error())
			}
			return errors.New("batch write error: " + err.Error())
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return errors.New("committing batch error: " + err.Error())
	}
	return nil
}

func (ds *PgDocumentStore) Delete(ctx context.Context, collection, id string) error {
	_, err := ds.conn.Exec(ctx, deleteDocumentQuery, collection, id)
	if err != nil {
		return errors.New("deleting document error: " + err.Error())
	}
	return nil
}
