package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	errorvalues "github.com/limbo/plankup/internal/error_values"
)

// MemoryDocumentStore is a process-local DocumentStore for development runs
// without Postgres.
type MemoryDocumentStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]Document
	now  func() time.Time
}

func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{
		docs: make(map[string]map[string]Document),
		now:  time.Now,
	}
}

func (ms *MemoryDocumentStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	doc, ok := ms.docs[collection][id]
	if !ok {
		return nil, errorvalues.ErrDocumentNotFound
	}
	doc.Data = cloneBytes(doc.Data)
	return &doc, nil
}

func (ms *MemoryDocumentStore) Set(ctx context.Context, collection string, doc Document) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.setLocked(collection, doc), nil
}

func (ms *MemoryDocumentStore) Query(ctx context.Context, collection, userID string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	docs := make([]Document, 0)
	for _, doc := range ms.docs[collection] {
		if doc.UserID == userID {
			doc.Data = cloneBytes(doc.Data)
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (ms *MemoryDocumentStore) Batch(ctx context.Context, ops []BatchOp) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, op := range ops {
		if op.Kind != BatchSet && op.Kind != BatchDelete {
			return errors.New("batch write error: unknown batch op")
		}
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for _, op := range ops {
		switch op.Kind {
		case BatchSet:
			ms.setLocked(op.Collection, op.Document)
		case BatchDelete:
			delete(ms.docs[op.Collection], op.Document.ID)
		}
	}
	return nil
}

func (ms *MemoryDocumentStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.docs[collection], id)
	return nil
}

func (ms *MemoryDocumentStore) setLocked(collection string, doc Document) time.Time {
	if ms.docs[collection] == nil {
		ms.docs[collection] = make(map[string]Document)
	}
	doc.Data = cloneBytes(doc.Data)
	doc.UpdatedAt = ms.now()
	ms.docs[collection][doc.ID] = doc
	return doc.UpdatedAt
}

// MemoryBlobStore is a BlobStore that forgets everything on exit.
type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

func (mb *MemoryBlobStore) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	value, ok := mb.blobs[namespace+"/"+key]
	if !ok {
		return nil, errorvalues.ErrBlobNotFound
	}
	return cloneBytes(value), nil
}

func (mb *MemoryBlobStore) Set(ctx context.Context, namespace, key string, value []byte) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.blobs[namespace+"/"+key] = cloneBytes(value)
	return nil
}

func (mb *MemoryBlobStore) Delete(ctx context.Context, namespace, key string) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	delete(mb.blobs, namespace+"/"+key)
	return nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
