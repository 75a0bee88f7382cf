package strapi

import (
	"encoding/json"
	"errors"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"helpdesk/internal/errs"
)

var (
	errInvalidJSON   = errors.New("response is not valid json")
	errUnexpectedDoc = errors.New("unexpected response shape")
	errEmptyData     = errors.New("response has no data")
)

// Pagination mirrors meta.pagination of a list response.
type Pagination struct {
	Page      int `json:"page"`
	PageSize  int `json:"pageSize"`
	PageCount int `json:"pageCount"`
	Total     int `json:"total"`
}

// DecodeList accepts {data:[...]}, {data:{data:[...]}} and a bare array.
// A null or missing data yields an empty list.
func DecodeList[T any](body []byte) ([]T, Pagination, error) {
	root, err := parseRoot(body)
	if err != nil {
		return nil, Pagination{}, err
	}

	var page Pagination
	if meta := root.Get("meta.pagination"); meta.IsObject() {
		page = Pagination{
			Page:      int(meta.Get("page").Int()),
			PageSize:  int(meta.Get("pageSize").Int()),
			PageCount: int(meta.Get("pageCount").Int()),
			Total:     int(meta.Get("total").Int()),
		}
	}

	items, ok := listPayload(root)
	if !ok {
		return nil, page, errs.WithKind(errUnexpectedDoc, errs.KindRemote)
	}

	out := make([]T, 0, len(items))
	for i, item := range items {
		var decoded T
		if err := json.Unmarshal([]byte(item.Raw), &decoded); err != nil {
			return nil, page, errs.WithKind(errs.Wrapf(err, "decode item %d", i), errs.KindRemote)
		}
		out = append(out, decoded)
	}
	return out, page, nil
}

// DecodeOne accepts {data:{...}}, {data:{data:{...}}} and a bare object.
func DecodeOne[T any](body []byte) (T, error) {
	var zero T
	root, err := parseRoot(body)
	if err != nil {
		return zero, err
	}

	payload, ok := objectPayload(root)
	if !ok {
		return zero, errs.WithKind(errEmptyData, errs.KindNotFound)
	}

	var decoded T
	if err := json.Unmarshal([]byte(payload.Raw), &decoded); err != nil {
		return zero, errs.WithKind(errs.Wrap(err, "decode item"), errs.KindRemote)
	}
	return decoded, nil
}

// WrapData encodes input as {"data": input}. Raw JSON input is embedded as is.
func WrapData(input any) ([]byte, error) {
	switch v := input.(type) {
	case json.RawMessage:
		return sjson.SetRawBytes([]byte(`{}`), "data", v)
	case []byte:
		if !gjson.ValidBytes(v) {
			return nil, errs.WithKind(errInvalidJSON, errs.KindValidation)
		}
		return sjson.SetRawBytes([]byte(`{}`), "data", v)
	}
	encoded, err := json.Marshal(input)
	if err != nil {
		return nil, errs.WithKind(errs.Wrap(err, "encode request data"), errs.KindValidation)
	}
	return sjson.SetRawBytes([]byte(`{}`), "data", encoded)
}

func parseRoot(body []byte) (gjson.Result, error) {
	if len(body) == 0 {
		return gjson.Result{}, errs.WithKind(errEmptyData, errs.KindRemote)
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, errs.WithKind(errInvalidJSON, errs.KindRemote)
	}
	root := gjson.ParseBytes(body)
	if remote := envelopeError(root); remote != nil {
		return gjson.Result{}, errs.WithKind(remote, KindForStatus(remote.Status))
	}
	return root, nil
}

func listPayload(root gjson.Result) ([]gjson.Result, bool) {
	if root.IsArray() {
		return root.Array(), true
	}
	if !root.IsObject() {
		return nil, false
	}
	data := root.Get("data")
	switch {
	case !data.Exists() || data.Type == gjson.Null:
		return nil, true
	case data.IsArray():
		return data.Array(), true
	case data.IsObject():
		inner := data.Get("data")
		if inner.IsArray() {
			return inner.Array(), true
		}
		if !inner.Exists() || inner.Type == gjson.Null {
			return nil, true
		}
	}
	return nil, false
}

func objectPayload(root gjson.Result) (gjson.Result, bool) {
	if !root.IsObject() {
		return gjson.Result{}, false
	}
	data := root.Get("data")
	if !data.Exists() {
		// users-permissions endpoints answer with the bare entity.
		return root, true
	}
	if !data.IsObject() {
		return gjson.Result{}, false
	}
	if inner := data.Get("data"); inner.IsObject() && !data.Get("documentId").Exists() {
		return inner, true
	}
	return data, true
}

func envelopeError(root gjson.Result) *RemoteError {
	if !root.IsObject() {
		return nil
	}
	errNode := root.Get("error")
	if !errNode.IsObject() {
		return nil
	}
	details := errNode.Get("details")
	remote := &RemoteError{
		Status:  int(errNode.Get("status").Int()),
		Name:    errNode.Get("name").String(),
		Message: errNode.Get("message").String(),
	}
	if details.Exists() && details.Raw != "{}" && details.Type != gjson.Null {
		remote.Details = details.Raw
	}
	return remote
}

func parseErrorEnvelope(raw []byte) *RemoteError {
	if !gjson.ValidBytes(raw) {
		return nil
	}
	return envelopeError(gjson.ParseBytes(raw))
}

// ErrorBody renders a Strapi error envelope.
func ErrorBody(status int, name string, message string) []byte {
	out := []byte(`{"data":null,"error":{}}`)
	out, _ = sjson.SetBytes(out, "error.status", status)
	out, _ = sjson.SetBytes(out, "error.name", name)
	out, _ = sjson.SetBytes(out, "error.message", message)
	out, _ = sjson.SetRawBytes(out, "error.details", []byte(`{}`))
	return out
}
