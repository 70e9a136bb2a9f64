package repository

import (
	"context"
	"time"

	errorvalues "github.com/limbo/plankup/internal/error_values"
)

// DetachedDocumentStore stands in for the remote store when a process runs
// offline on purpose. Every call fails with errorvalues.ErrRemoteUnavailable.
type DetachedDocumentStore struct{}

func (DetachedDocumentStore) Ping(ctx context.Context) error {
	return errorvalues.ErrRemoteUnavailable
}

func (DetachedDocumentStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	return nil, errorvalues.ErrRemoteUnavailable
}

func (DetachedDocumentStore) Set(ctx context.Context, collection string, doc Document) (time.Time, error) {
	return time.Time{}, errorvalues.ErrRemoteUnavailable
}

func (DetachedDocumentStore) Query(ctx context.Context, collection, userID string) ([]Document, error) {
	return nil, errorvalues.ErrRemoteUnavailable
}

func (DetachedDocumentStore) Batch(ctx context.Context, ops []BatchOp) error {
	return errorvalues.ErrRemoteUnavailable
}

func (DetachedDocumentStore) Delete(ctx context.Context, collection, id string) error {
	return errorvalues.ErrRemoteUnavailable
}
