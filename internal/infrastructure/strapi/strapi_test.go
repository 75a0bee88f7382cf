package strapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"helpdesk/internal/errs"
	"helpdesk/internal/ports"
)

type article struct {
	DocumentID string `json:"documentId"`
	Title      string `json:"title"`
}

type fixedPrincipal struct{ token string }

func (p fixedPrincipal) Token() string  { return p.token }
func (p fixedPrincipal) UserID() string { return "u1" }

func (p fixedPrincipal) Username() string { return "alice" }

func TestDecodeListShapes(t *testing.T) {
	testCases := []struct {
		name string
		body string
		want []string
	}{
		{name: "data array", body: `{"data":[{"documentId":"a"},{"documentId":"b"}],"meta":{}}`, want: []string{"a", "b"}},
		{name: "nested data", body: `{"data":{"data":[{"documentId":"c"}]}}`, want: []string{"c"}},
		{name: "bare array", body: `[{"documentId":"d"}]`, want: []string{"d"}},
		{name: "null data", body: `{"data":null}`, want: []string{}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			items, _, err := DecodeList[article]([]byte(testCase.body))
			require.NoError(t, err)
			ids := make([]string, 0, len(items))
			for _, item := range items {
				ids = append(ids, item.DocumentID)
			}
			assert.Equal(t, testCase.want, ids)
		})
	}
}

func TestDecodeListPagination(t *testing.T) {
	body := `{"data":[],"meta":{"pagination":{"page":2,"pageSize":10,"pageCount":3,"total":25}}}`
	_, page, err := DecodeList[article]([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, Pagination{Page: 2, PageSize: 10, PageCount: 3, Total: 25}, page)
}

func TestDecodeErrorEnvelope(t *testing.T) {
	body := `{"data":null,"error":{"status":404,"name":"NotFoundError","message":"Not Found","details":{}}}`

	_, err := DecodeOne[article]([]byte(body))
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "NotFoundError", remote.Name)
	assert.Empty(t, remote.Details)
}

func TestDecodeOneShapes(t *testing.T) {
	for _, body := range []string{
		`{"data":{"documentId":"x","title":"T"}}`,
		`{"data":{"data":{"documentId":"x","title":"T"}}}`,
		`{"documentId":"x","title":"T"}`,
	} {
		item, err := DecodeOne[article]([]byte(body))
		require.NoError(t, err, body)
		assert.Equal(t, article{DocumentID: "x", Title: "T"}, item, body)
	}

	_, err := DecodeOne[article]([]byte(`{"data":null}`))
	assert.True(t, errs.IsNotFound(err))
}

func TestWrapData(t *testing.T) {
	out, err := WrapData(map[string]string{"title": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", gjson.GetBytes(out, "data.title").String())

	out, err = WrapData([]byte(`{"read":true}`))
	require.NoError(t, err)
	assert.True(t, gjson.GetBytes(out, "data.read").Bool())

	_, err = WrapData([]byte(`{broken`))
	assert.True(t, errs.IsValidation(err))
}

func TestEncodeDecodeQuery(t *testing.T) {
	q := ports.Query{
		Filters:  []ports.Filter{ports.Eq("recipient.documentId", "u1")},
		AnyOf:    [][]ports.Filter{{ports.Containsi("title", "react"), ports.Containsi("content", "react")}},
		Sort:     []string{"createdAt:desc"},
		Populate: []string{"role"},
		Page:     1,
		PageSize: 25,
	}

	values := EncodeQuery(q)
	assert.Equal(t, "u1", values.Get("filters[recipient][documentId][$eq]"))
	assert.Equal(t, "react", values.Get("filters[$or][1][content][$containsi]"))
	assert.Equal(t, "createdAt:desc", values.Get("sort[0]"))
	assert.Equal(t, "25", values.Get("pagination[pageSize]"))

	parsed, err := url.ParseQuery(values.Encode())
	require.NoError(t, err)
	decoded, err := DecodeQuery(parsed)
	require.NoError(t, err)
	assert.Equal(t, q, decoded)
}

func TestEncodeDecodeNestedGroups(t *testing.T) {
	q := ports.Query{}.
		WithAnyOf(ports.Eq("client.documentId", "u1"), ports.Eq("assignee.user.documentId", "u1")).
		WithAnyOf(ports.Containsi("title", "vpn"), ports.Containsi("description", "vpn"))

	values := EncodeQuery(q)
	assert.Equal(t, "u1", values.Get("filters[$and][0][$or][1][assignee][user][documentId][$eq]"))
	assert.Equal(t, "vpn", values.Get("filters[$and][1][$or][0][title][$containsi]"))

	decoded, err := DecodeQuery(values)
	require.NoError(t, err)
	assert.Equal(t, q.AnyOf, decoded.AnyOf)
}

func TestDecodeQueryCommaForms(t *testing.T) {
	decoded, err := DecodeQuery(url.Values{"sort": {"title:asc,createdAt:desc"}, "populate": {"*"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"title:asc", "createdAt:desc"}, decoded.Sort)
	assert.Equal(t, []string{"*"}, decoded.Populate)

	_, err = DecodeQuery(url.Values{"filters[title]": {"x"}})
	assert.Error(t, err)
	_, err = DecodeQuery(url.Values{"pagination[page]": {"zero"}})
	assert.Error(t, err)
}

func TestHandlerRoundTrip(t *testing.T) {
	var gotAuth, gotMethod, gotPath, gotBody string
	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)

		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"data":[{"documentId":"k1","title":"React"}]}`))
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			_, _ = w.Write([]byte(`{"data":{"documentId":"k2","title":"Server title"}}`))
		}
	}))
	defer server.Close()

	client, err := NewClient(server.URL, 0, WithPrincipal(fixedPrincipal{token: "jwt-1"}))
	require.NoError(t, err)
	handler := NewHandler[article](client, "/knowledge-bases/")
	ctx := context.Background()

	items, err := handler.FindAll(ctx, ports.Query{Sort: []string{"createdAt:asc"}})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Bearer jwt-1", gotAuth)
	assert.Equal(t, "/api/knowledge-bases", gotPath)
	assert.Equal(t, "createdAt:asc", gotQuery.Get("sort[0]"))

	created, err := handler.Create(ctx, map[string]string{"title": "Local title"}, ports.Query{Populate: []string{"author"}})
	require.NoError(t, err)
	assert.Equal(t, "Server title", created.Title)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "Local title", gjson.Get(gotBody, "data.title").String())
	assert.Equal(t, "author", gotQuery.Get("populate[0]"))

	_, err = handler.Update(ctx, "k2", map[string]string{"title": "x"}, ports.Query{Populate: []string{"author", "tags"}})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/api/knowledge-bases/k2", gotPath)
	assert.Equal(t, "author", gotQuery.Get("populate[0]"))
	assert.Equal(t, "tags", gotQuery.Get("populate[1]"))

	_, err = handler.Update(ctx, "k2", map[string]string{"title": "y"}, ports.Query{})
	require.NoError(t, err)
	assert.Empty(t, gotQuery)

	require.NoError(t, handler.Delete(ctx, "k2"))
	assert.Equal(t, http.MethodDelete, gotMethod)
}

func TestHandlerErrorKinds(t *testing.T) {
	status := http.StatusUnauthorized
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write(ErrorBody(status, "ApplicationError", "nope"))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, 0)
	require.NoError(t, err)
	handler := NewHandler[article](client, PathTickets)

	_, err = handler.FindAll(context.Background(), ports.Query{})
	assert.True(t, errs.IsUnauthorized(err))

	status = http.StatusNotFound
	_, err = handler.FindByID(context.Background(), "missing", ports.Query{})
	assert.True(t, errs.IsNotFound(err))

	status = http.StatusInternalServerError
	err = handler.Delete(context.Background(), "x")
	assert.Equal(t, errs.KindRemote, errs.KindOf(err))
	assert.Contains(t, err.Error(), "nope")
}

func TestTransportErrorKind(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := server.URL
	server.Close()

	client, err := NewClient(addr, 0)
	require.NoError(t, err)
	_, err = NewHandler[article](client, PathTickets).FindAll(context.Background(), ports.Query{})
	assert.True(t, errs.IsTransport(err))

	var stacked *errs.StackError
	require.ErrorAs(t, err, &stacked)
	assert.Contains(t, string(stacked.Stack()), "strapi.(*Client).Do")
	assert.Contains(t, stacked.Error(), "GET tickets")
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient("  ", 0)
	assert.True(t, errs.IsValidation(err))
	_, err = NewClient("localhost", 0)
	assert.True(t, errs.IsValidation(err))
}

func TestLoginAndMe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/local":
			_, _ = w.Write([]byte(`{"jwt":"tok","user":{"id":1,"documentId":"u1","username":"alice"}}`))
		case "/api/users/me":
			if r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"id":1,"documentId":"u1","username":"alice","role":{"name":"Agent","type":"agent"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client, err := NewClient(server.URL, 0)
	require.NoError(t, err)

	jwt, user, err := client.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok", jwt)
	assert.Equal(t, "u1", user.DocumentID)

	me, err := client.Me(context.Background(), jwt)
	require.NoError(t, err)
	assert.Equal(t, "agent", me.RoleName())
}
