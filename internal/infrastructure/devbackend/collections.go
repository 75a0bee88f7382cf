package devbackend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"helpdesk/internal/bootstrap/logging"
	"helpdesk/internal/errs"
	"helpdesk/internal/infrastructure/strapi"
	"helpdesk/internal/ports"
)

// Fields owned by the server; client values are ignored.
var systemFields = map[string]struct{}{
	"id":         {},
	"documentId": {},
	"createdAt":  {},
	"updatedAt":  {},
}

func jsonBytes(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errs.Wrap(err, "encode document")
	}
	if !gjson.ParseBytes(raw).IsObject() {
		return nil, errors.New("document must be a JSON object")
	}
	return raw, nil
}

// escapeKey quotes the characters gjson and sjson treat as path syntax.
func escapeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// normalizeRelation turns the shorthand forms Strapi accepts ("id" and
// ["id", ...]) into {"documentId": ...} references.
func normalizeRelation(value gjson.Result) []byte {
	refOf := func(v gjson.Result) []byte {
		if v.Type == gjson.String {
			out, _ := sjson.SetBytes([]byte(`{}`), "documentId", v.String())
			return out
		}
		return []byte(v.Raw)
	}
	if value.IsArray() {
		out := []byte(`[]`)
		for _, item := range value.Array() {
			out, _ = sjson.SetRawBytes(out, "-1", refOf(item))
		}
		return out
	}
	return refOf(value)
}

// mergeFields copies the top level fields of data onto doc.
func mergeFields(doc []byte, data gjson.Result) ([]byte, error) {
	var err error
	data.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if _, skip := systemFields[name]; skip {
			return true
		}
		raw := []byte(value.Raw)
		if _, ok := relationTargets[name]; ok {
			raw = normalizeRelation(value)
		}
		doc, err = sjson.SetRawBytes(doc, escapeKey(name), raw)
		return err == nil
	})
	if err != nil {
		return nil, errs.Wrap(err, "merge fields")
	}
	return doc, nil
}

// insert stamps the system fields on raw and stores it. Numeric ids grow
// past the largest stored one, so they stay unique after deletes.
func (s *Server) insert(ctx context.Context, collection, documentID, ownerID string, raw []byte) ([]byte, error) {
	maxID, err := s.repo.MaxNumericID(ctx, collection)
	if err != nil {
		return nil, err
	}
	now := s.timestamp()

	doc, err := mergeFields([]byte(`{}`), gjson.ParseBytes(raw))
	if err != nil {
		return nil, err
	}
	doc, _ = sjson.SetBytes(doc, "id", maxID+1)
	doc, _ = sjson.SetBytes(doc, "documentId", documentID)
	doc, _ = sjson.SetBytes(doc, "createdAt", now)
	doc, _ = sjson.SetBytes(doc, "updatedAt", now)

	if _, err := s.repo.CreateDocument(ctx, ports.Document{
		Collection: collection,
		DocumentID: documentID,
		OwnerID:    ownerID,
		Payload:    string(doc),
		CreatedAt:  now,
		UpdatedAt:  now,
	}); err != nil {
		return nil, errs.Wrapf(err, "insert %s", collection)
	}
	return doc, nil
}

// readData extracts the "data" object of a write request.
func readData(r *http.Request) (gjson.Result, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil || !gjson.ValidBytes(body) {
		return gjson.Result{}, false
	}
	data := gjson.GetBytes(body, "data")
	return data, data.IsObject()
}

func collectionContext(r *http.Request) (context.Context, string) {
	collection := chi.URLParam(r, "collection")
	ctx := logging.WithAttrs(logging.WithComponent(r.Context(), "devbackend"),
		slog.String("collection", collection),
	)
	return ctx, collection
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ctx, collection := collectionContext(r)
	query, err := strapi.DecodeQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", err.Error())
		return
	}

	docs, err := s.repo.ListDocuments(ctx, ports.DocumentFilter{Collection: collection})
	if err != nil {
		logging.Error(ctx, "list documents failed", slog.Any("err", errs.Loggable(err)))
		writeError(w, http.StatusInternalServerError, "ApplicationError", "could not list documents")
		return
	}

	res := newResolver(ctx, s.repo)
	items := make([]gjson.Result, 0, len(docs))
	for _, doc := range docs {
		items = append(items, gjson.Parse(doc.Payload))
	}
	items, err = res.filter(items, query)
	if err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", err.Error())
		return
	}
	sortItems(items, query.Sort)
	items, page := paginate(items, query.Page, query.PageSize)

	out := make([][]byte, 0, len(items))
	for _, item := range items {
		out = append(out, res.populate(item, query.Populate))
	}
	writeList(w, out, page)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx, collection := collectionContext(r)
	query, err := strapi.DecodeQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", err.Error())
		return
	}
	doc, ok := s.loadDocument(ctx, w, collection, chi.URLParam(r, "documentID"))
	if !ok {
		return
	}
	writeData(w, http.StatusOK, newResolver(ctx, s.repo).populate(gjson.Parse(doc.Payload), query.Populate))
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx, collection := collectionContext(r)
	query, err := strapi.DecodeQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", err.Error())
		return
	}
	data, ok := readData(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "ValidationError", "Missing \"data\" payload in the request body")
		return
	}

	var created []byte
	err = s.withTx(ctx, func(txCtx context.Context) error {
		var err error
		created, err = s.insert(txCtx, collection, s.newID(), userIDFromContext(ctx), []byte(data.Raw))
		return err
	})
	if err != nil {
		logging.Error(ctx, "create document failed", slog.Any("err", errs.Loggable(err)))
		writeError(w, http.StatusInternalServerError, "ApplicationError", "could not create document")
		return
	}
	logging.Info(ctx, "document created", slog.String("document_id", gjson.GetBytes(created, "documentId").String()))
	writeData(w, http.StatusCreated, newResolver(ctx, s.repo).populate(gjson.ParseBytes(created), query.Populate))
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, collection := collectionContext(r)
	documentID := chi.URLParam(r, "documentID")
	query, err := strapi.DecodeQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", err.Error())
		return
	}
	data, ok := readData(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "ValidationError", "Missing \"data\" payload in the request body")
		return
	}

	var updated []byte
	err = s.withTx(ctx, func(txCtx context.Context) error {
		doc, err := s.repo.GetDocument(txCtx, collection, documentID)
		if err != nil {
			return err
		}
		merged, err := mergeFields([]byte(doc.Payload), data)
		if err != nil {
			return err
		}
		now := s.timestamp()
		merged, _ = sjson.SetBytes(merged, "updatedAt", now)
		doc.Payload = string(merged)
		doc.UpdatedAt = now
		if _, err := s.repo.UpdateDocument(txCtx, doc); err != nil {
			return err
		}
		updated = merged
		return nil
	})
	if errors.Is(err, ports.ErrDocumentNotFound) {
		writeError(w, http.StatusNotFound, "NotFoundError", "Not Found")
		return
	}
	if err != nil {
		logging.Error(ctx, "update document failed", slog.Any("err", errs.Loggable(err)))
		writeError(w, http.StatusInternalServerError, "ApplicationError", "could not update document")
		return
	}
	writeData(w, http.StatusOK, newResolver(ctx, s.repo).populate(gjson.ParseBytes(updated), query.Populate))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, collection := collectionContext(r)
	err := s.repo.DeleteDocument(ctx, collection, chi.URLParam(r, "documentID"))
	if errors.Is(err, ports.ErrDocumentNotFound) {
		writeError(w, http.StatusNotFound, "NotFoundError", "Not Found")
		return
	}
	if err != nil {
		logging.Error(ctx, "delete document failed", slog.Any("err", errs.Loggable(err)))
		writeError(w, http.StatusInternalServerError, "ApplicationError", "could not delete document")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) loadDocument(ctx context.Context, w http.ResponseWriter, collection, documentID string) (ports.Document, bool) {
	doc, err := s.repo.GetDocument(ctx, collection, documentID)
	if errors.Is(err, ports.ErrDocumentNotFound) {
		writeError(w, http.StatusNotFound, "NotFoundError", "Not Found")
		return ports.Document{}, false
	}
	if err != nil {
		logging.Error(ctx, "load document failed", slog.Any("err", errs.Loggable(err)))
		writeError(w, http.StatusInternalServerError, "ApplicationError", "could not load document")
		return ports.Document{}, false
	}
	return doc, true
}
