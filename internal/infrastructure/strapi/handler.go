package strapi

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"helpdesk/internal/errs"
	"helpdesk/internal/ports"
)

// Collection paths under /api.
const (
	PathTickets        = "tickets"
	PathConversations  = "conversations"
	PathKnowledgeBases = "knowledge-bases"
	PathNotifications  = "notifications"
	PathComments       = "comments"
	PathAgents         = "agents"
	PathOrganisations  = "organisations"
	PathUsers          = "users"
	PathActivities     = "activities"
	PathOtps           = "otps"
	PathSms            = "sms"
)

// Handler is the REST implementation of ports.RemoteHandler for one
// collection.
type Handler[T any] struct {
	client     *Client
	collection string
}

var _ ports.RemoteHandler[struct{}] = (*Handler[struct{}])(nil)

func NewHandler[T any](client *Client, collection string) *Handler[T] {
	return &Handler[T]{
		client:     client,
		collection: strings.Trim(collection, "/"),
	}
}

func (h *Handler[T]) Collection() string { return h.collection }

func (h *Handler[T]) FindAll(ctx context.Context, query ports.Query) ([]T, error) {
	body, err := h.client.Do(ctx, http.MethodGet, h.collection, EncodeQuery(query), nil)
	if err != nil {
		return nil, errs.Wrapf(err, "list %s", h.collection)
	}
	items, _, err := DecodeList[T](body)
	if err != nil {
		return nil, errs.Wrapf(err, "list %s", h.collection)
	}
	return items, nil
}

func (h *Handler[T]) FindByID(ctx context.Context, documentID string, query ports.Query) (T, error) {
	var zero T
	body, err := h.client.Do(ctx, http.MethodGet, h.itemPath(documentID), EncodeQuery(query), nil)
	if err != nil {
		return zero, errs.Wrapf(err, "get %s %s", h.collection, documentID)
	}
	item, err := DecodeOne[T](body)
	if err != nil {
		return zero, errs.Wrapf(err, "get %s %s", h.collection, documentID)
	}
	return item, nil
}

func (h *Handler[T]) Create(ctx context.Context, input any, query ports.Query) (T, error) {
	var zero T
	payload, err := WrapData(input)
	if err != nil {
		return zero, errs.Wrapf(err, "create %s", h.collection)
	}
	body, err := h.client.Do(ctx, http.MethodPost, h.collection, EncodeQuery(query), payload)
	if err != nil {
		return zero, errs.Wrapf(err, "create %s", h.collection)
	}
	item, err := DecodeOne[T](body)
	if err != nil {
		return zero, errs.Wrapf(err, "create %s", h.collection)
	}
	return item, nil
}

func (h *Handler[T]) Update(ctx context.Context, documentID string, patch any, query ports.Query) (T, error) {
	var zero T
	payload, err := WrapData(patch)
	if err != nil {
		return zero, errs.Wrapf(err, "update %s %s", h.collection, documentID)
	}
	body, err := h.client.Do(ctx, http.MethodPut, h.itemPath(documentID), EncodeQuery(query), payload)
	if err != nil {
		return zero, errs.Wrapf(err, "update %s %s", h.collection, documentID)
	}
	item, err := DecodeOne[T](body)
	if err != nil {
		return zero, errs.Wrapf(err, "update %s %s", h.collection, documentID)
	}
	return item, nil
}

func (h *Handler[T]) Delete(ctx context.Context, documentID string) error {
	if _, err := h.client.Do(ctx, http.MethodDelete, h.itemPath(documentID), nil, nil); err != nil {
		return errs.Wrapf(err, "delete %s %s", h.collection, documentID)
	}
	return nil
}

func (h *Handler[T]) itemPath(documentID string) string {
	return h.collection + "/" + url.PathEscape(documentID)
}
