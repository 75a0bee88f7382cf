package model

// Document stores one backend record as JSON. The pair
// (collection, document_id) is unique.
type Document struct {
	ID         uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	Collection string `gorm:"column:collection;type:text;not null;uniqueIndex:idx_documents_collection_document"`
	DocumentID string `gorm:"column:document_id;type:text;not null;uniqueIndex:idx_documents_collection_document"`
	OwnerID    string `gorm:"column:owner_id;type:text;not null;default:'';index"`
	Payload    string `gorm:"column:payload;type:text;not null"`
	CreatedAt  string `gorm:"column:created_at;type:text;not null"`
	UpdatedAt  string `gorm:"column:updated_at;type:text;not null"`
}

func (Document) TableName() string {
	return "documents"
}
