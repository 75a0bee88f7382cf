package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"helpdesk/internal/infrastructure/persistence/sqlite/model"
	sqliteuow "helpdesk/internal/infrastructure/persistence/sqlite/uow"
	"helpdesk/internal/ports"
)

func setupDocumentRepository(t *testing.T) (*DocumentRepository, *gorm.DB) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "documents.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(&model.Document{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return NewDocumentRepository(db), db
}

func newDoc(collection string, id string, owner string) ports.Document {
	return ports.Document{
		Collection: collection,
		DocumentID: id,
		OwnerID:    owner,
		Payload:    `{"documentId":"` + id + `"}`,
		CreatedAt:  "2026-01-01T00:00:00Z",
		UpdatedAt:  "2026-01-01T00:00:00Z",
	}
}

func TestListDocumentsScopesByCollectionAndOwner(t *testing.T) {
	repo, _ := setupDocumentRepository(t)
	ctx := context.Background()

	for _, doc := range []ports.Document{
		newDoc("tickets", "t1", "u1"),
		newDoc("tickets", "t2", "u2"),
		newDoc("tickets", "t3", "u1"),
		newDoc("notifications", "n1", "u1"),
	} {
		if _, err := repo.CreateDocument(ctx, doc); err != nil {
			t.Fatalf("CreateDocument(%s) error = %v", doc.DocumentID, err)
		}
	}

	items, err := repo.ListDocuments(ctx, ports.DocumentFilter{Collection: "tickets", OwnerID: "u1"})
	if err != nil {
		t.Fatalf("ListDocuments() error = %v", err)
	}
	if len(items) != 2 || items[0].DocumentID != "t1" || items[1].DocumentID != "t3" {
		t.Fatalf("ListDocuments() = %+v", items)
	}
}

func TestMaxNumericIDSurvivesDeletes(t *testing.T) {
	repo, _ := setupDocumentRepository(t)
	ctx := context.Background()

	maxID, err := repo.MaxNumericID(ctx, "tickets")
	if err != nil || maxID != 0 {
		t.Fatalf("MaxNumericID(empty) = %d, %v, want 0", maxID, err)
	}

	for i, id := range []string{"t1", "t2", "t3"} {
		doc := newDoc("tickets", id, "")
		doc.Payload = fmt.Sprintf(`{"id":%d,"documentId":%q}`, i+1, id)
		if _, err := repo.CreateDocument(ctx, doc); err != nil {
			t.Fatalf("CreateDocument(%s) error = %v", id, err)
		}
	}
	other := newDoc("comments", "c1", "")
	other.Payload = `{"id":40,"documentId":"c1"}`
	if _, err := repo.CreateDocument(ctx, other); err != nil {
		t.Fatalf("CreateDocument(comment) error = %v", err)
	}
	if err := repo.DeleteDocument(ctx, "tickets", "t1"); err != nil {
		t.Fatalf("DeleteDocument() error = %v", err)
	}

	maxID, err = repo.MaxNumericID(ctx, "tickets")
	if err != nil || maxID != 3 {
		t.Fatalf("MaxNumericID() = %d, %v, want 3", maxID, err)
	}
}

type traceRecorder struct {
	logger.Interface
	errs []error
}

func (r *traceRecorder) Trace(_ context.Context, _ time.Time, _ func() (string, int64), err error) {
	if err != nil {
		r.errs = append(r.errs, err)
	}
}

func TestGetDocumentMissIsNotLoggedAsError(t *testing.T) {
	repo, db := setupDocumentRepository(t)
	recorder := &traceRecorder{Interface: logger.Discard}
	repo = NewDocumentRepository(db.Session(&gorm.Session{Logger: recorder}))
	ctx := context.Background()

	if _, err := repo.GetDocument(ctx, "users", "nobody"); !errors.Is(err, ports.ErrDocumentNotFound) {
		t.Fatalf("GetDocument(missing) error = %v, want ErrDocumentNotFound", err)
	}
	if len(recorder.errs) != 0 {
		t.Fatalf("GetDocument(missing) traced errors = %v, want none", recorder.errs)
	}

	if _, err := repo.CreateDocument(ctx, newDoc("users", "u1", "u1")); err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}
	got, err := repo.GetDocument(ctx, "users", "u1")
	if err != nil || got.OwnerID != "u1" {
		t.Fatalf("GetDocument() = %+v, %v", got, err)
	}
}

func TestDuplicateDocumentIDRejected(t *testing.T) {
	repo, _ := setupDocumentRepository(t)
	ctx := context.Background()

	if _, err := repo.CreateDocument(ctx, newDoc("tickets", "t1", "")); err != nil {
		t.Fatalf("CreateDocument(first) error = %v", err)
	}
	if _, err := repo.CreateDocument(ctx, newDoc("tickets", "t1", "")); err == nil {
		t.Fatalf("CreateDocument(duplicate) expected error")
	}
	if _, err := repo.CreateDocument(ctx, newDoc("comments", "t1", "")); err != nil {
		t.Fatalf("same id in another collection should be allowed: %v", err)
	}
}

func TestUpdateAndDeleteMissingDocument(t *testing.T) {
	repo, _ := setupDocumentRepository(t)
	ctx := context.Background()

	if _, err := repo.UpdateDocument(ctx, newDoc("tickets", "missing", "")); !errors.Is(err, ports.ErrDocumentNotFound) {
		t.Fatalf("UpdateDocument(missing) error = %v", err)
	}
	if err := repo.DeleteDocument(ctx, "tickets", "missing"); !errors.Is(err, ports.ErrDocumentNotFound) {
		t.Fatalf("DeleteDocument(missing) error = %v", err)
	}

	if _, err := repo.CreateDocument(ctx, newDoc("tickets", "t1", "")); err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}
	updated := newDoc("tickets", "t1", "u9")
	updated.Payload = `{"title":"changed"}`
	updated.UpdatedAt = "2026-01-02T00:00:00Z"
	got, err := repo.UpdateDocument(ctx, updated)
	if err != nil {
		t.Fatalf("UpdateDocument() error = %v", err)
	}
	if got.Payload != `{"title":"changed"}` || got.OwnerID != "u9" || got.CreatedAt != "2026-01-01T00:00:00Z" {
		t.Fatalf("UpdateDocument() = %+v", got)
	}

	if err := repo.DeleteDocument(ctx, "tickets", "t1"); err != nil {
		t.Fatalf("DeleteDocument() error = %v", err)
	}
	if _, err := repo.GetDocument(ctx, "tickets", "t1"); !errors.Is(err, ports.ErrDocumentNotFound) {
		t.Fatalf("GetDocument(after delete) error = %v", err)
	}
}

func TestUnitOfWorkRollsBack(t *testing.T) {
	repo, db := setupDocumentRepository(t)
	uow := sqliteuow.NewUnitOfWork(db)
	ctx := context.Background()

	boom := errors.New("boom")
	err := uow.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := repo.CreateDocument(txCtx, newDoc("tickets", "t1", "")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}

	if _, err := repo.GetDocument(ctx, "tickets", "t1"); !errors.Is(err, ports.ErrDocumentNotFound) {
		t.Fatalf("document should be rolled back, err = %v", err)
	}
}
