// Package blobstore keeps the original bytes of uploaded documents.
package blobstore

import (
	"context"
	"errors"
	"path"

	"document-qa/internal/helper"
)

var ErrNotFound = errors.New("blob not found")

type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// Key is where an uploaded file lives: one directory per document ID.
func Key(docID, name string) string {
	return path.Join(docID, helper.SafeFilename(name))
}
