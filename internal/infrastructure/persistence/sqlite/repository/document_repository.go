package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"helpdesk/internal/errs"
	"helpdesk/internal/infrastructure/persistence/sqlite/model"
	"helpdesk/internal/ports"
)

type DocumentRepository struct {
	db *gorm.DB
}

var _ ports.DocumentRepository = (*DocumentRepository)(nil)

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return r.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

func (r *DocumentRepository) ListDocuments(ctx context.Context, filter ports.DocumentFilter) ([]ports.Document, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	collection := strings.TrimSpace(filter.Collection)
	if collection == "" {
		return nil, errors.New("collection is required")
	}

	query := db.Model(&model.Document{}).Where("collection = ?", collection)
	if owner := strings.TrimSpace(filter.OwnerID); owner != "" {
		query = query.Where("owner_id = ?", owner)
	}

	var rows []model.Document
	if err := query.Order("id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query documents")
	}

	items := make([]ports.Document, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapDocument(row))
	}
	return items, nil
}

func (r *DocumentRepository) GetDocument(ctx context.Context, collection string, documentID string) (ports.Document, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Document{}, err
	}

	// Find instead of Take: a miss is routine here and must not be logged
	// as a gorm error.
	var rows []model.Document
	result := db.Where("collection = ? AND document_id = ?", collection, documentID).Limit(1).Find(&rows)
	if result.Error != nil {
		return ports.Document{}, errs.Wrap(result.Error, "query document")
	}
	if result.RowsAffected == 0 || len(rows) == 0 {
		return ports.Document{}, ports.ErrDocumentNotFound
	}
	return mapDocument(rows[0]), nil
}

func (r *DocumentRepository) CreateDocument(ctx context.Context, doc ports.Document) (ports.Document, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Document{}, err
	}
	if strings.TrimSpace(doc.Collection) == "" || strings.TrimSpace(doc.DocumentID) == "" {
		return ports.Document{}, errors.New("collection and document id are required")
	}

	row := model.Document{
		Collection: doc.Collection,
		DocumentID: doc.DocumentID,
		OwnerID:    doc.OwnerID,
		Payload:    doc.Payload,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.Document{}, errs.Wrap(err, "insert document")
	}
	return mapDocument(row), nil
}

func (r *DocumentRepository) UpdateDocument(ctx context.Context, doc ports.Document) (ports.Document, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Document{}, err
	}

	result := db.Model(&model.Document{}).
		Where("collection = ? AND document_id = ?", doc.Collection, doc.DocumentID).
		Updates(map[string]any{
			"owner_id":   doc.OwnerID,
			"payload":    doc.Payload,
			"updated_at": doc.UpdatedAt,
		})
	if result.Error != nil {
		return ports.Document{}, errs.Wrap(result.Error, "update document")
	}
	if result.RowsAffected == 0 {
		return ports.Document{}, ports.ErrDocumentNotFound
	}

	var row model.Document
	if err := db.Where("collection = ? AND document_id = ?", doc.Collection, doc.DocumentID).Take(&row).Error; err != nil {
		return ports.Document{}, errs.Wrap(err, "reload document")
	}
	return mapDocument(row), nil
}

func (r *DocumentRepository) DeleteDocument(ctx context.Context, collection string, documentID string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Where("collection = ? AND document_id = ?", collection, documentID).Delete(&model.Document{})
	if result.Error != nil {
		return errs.Wrap(result.Error, "delete document")
	}
	if result.RowsAffected == 0 {
		return ports.ErrDocumentNotFound
	}
	return nil
}

// MaxNumericID returns the largest "id" stored in the collection's
// payloads, or 0 when it is empty.
func (r *DocumentRepository) MaxNumericID(ctx context.Context, collection string) (int64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var maxID int64
	if err := db.Model(&model.Document{}).
		Where("collection = ?", collection).
		Select("COALESCE(MAX(CAST(json_extract(payload, '$.id') AS INTEGER)), 0)").
		Scan(&maxID).Error; err != nil {
		return 0, errs.Wrap(err, "query max id")
	}
	return maxID, nil
}

func mapDocument(row model.Document) ports.Document {
	return ports.Document{
		Collection: row.Collection,
		DocumentID: row.DocumentID,
		OwnerID:    row.OwnerID,
		Payload:    row.Payload,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
}
