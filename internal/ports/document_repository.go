package ports

import (
	"context"
	"errors"
)

var ErrDocumentNotFound = errors.New("document not found")

// Document is one stored record of the local development backend.
type Document struct {
	Collection string
	DocumentID string
	OwnerID    string
	Payload    string
	CreatedAt  string
	UpdatedAt  string
}

type DocumentFilter struct {
	Collection string
	OwnerID    string
}

type DocumentRepository interface {
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]Document, error)
	GetDocument(ctx context.Context, collection string, documentID string) (Document, error)
	CreateDocument(ctx context.Context, doc Document) (Document, error)
	UpdateDocument(ctx context.Context, doc Document) (Document, error)
	DeleteDocument(ctx context.Context, collection string, documentID string) error
	MaxNumericID(ctx context.Context, collection string) (int64, error)
}
