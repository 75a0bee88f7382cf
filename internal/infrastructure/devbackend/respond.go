package devbackend

import (
	"encoding/json"
	"net/http"

	"github.com/tidwall/sjson"

	"helpdesk/internal/infrastructure/strapi"
)

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, name string, message string) {
	writeJSON(w, status, strapi.ErrorBody(status, name, message))
}

// writeData wraps a raw JSON document as {"data": doc}.
func writeData(w http.ResponseWriter, status int, doc []byte) {
	body, err := sjson.SetRawBytes([]byte(`{}`), "data", doc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "ApplicationError", "encode response")
		return
	}
	writeJSON(w, status, body)
}

// writeList renders {"data": [...], "meta": {"pagination": ...}}.
func writeList(w http.ResponseWriter, docs [][]byte, page strapi.Pagination) {
	body := []byte(`{"data":[]}`)
	var err error
	for _, doc := range docs {
		if body, err = sjson.SetRawBytes(body, "data.-1", doc); err != nil {
			writeError(w, http.StatusInternalServerError, "ApplicationError", "encode response")
			return
		}
	}
	meta, err := json.Marshal(page)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "ApplicationError", "encode response")
		return
	}
	if body, err = sjson.SetRawBytes(body, "meta.pagination", meta); err != nil {
		writeError(w, http.StatusInternalServerError, "ApplicationError", "encode response")
		return
	}
	writeJSON(w, http.StatusOK, body)
}
