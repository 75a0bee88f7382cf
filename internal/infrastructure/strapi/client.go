package strapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"helpdesk/internal/bootstrap/logging"
	"helpdesk/internal/errs"
	"helpdesk/internal/ports"
)

var errBaseURLRequired = errors.New("base url is required")

// Client talks to a Strapi-style REST backend rooted at BaseURL + "/api".
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	principal ports.Principal
}

type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithPrincipal attaches the bearer token source. Without it requests are
// anonymous.
func WithPrincipal(p ports.Principal) ClientOption {
	return func(c *Client) {
		c.principal = p
	}
}

// NewClient builds a client. timeout <= 0 means no client-side timeout.
func NewClient(baseURL string, timeout time.Duration, opts ...ClientOption) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errs.WithKind(errBaseURLRequired, errs.KindValidation)
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, errs.WithKind(errs.Wrapf(err, "parse base url %q", baseURL), errs.KindValidation)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, errs.WithKind(fmt.Errorf("base url %q must be absolute", baseURL), errs.KindValidation)
	}

	c := &Client{
		baseURL: parsed,
		http:    &http.Client{},
	}
	if timeout > 0 {
		c.http.Timeout = timeout
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Do sends one request to /api/<path> and returns the raw 2xx body. Non-2xx
// responses are decoded as error envelopes and tagged with an errs.Kind.
func (c *Client) Do(ctx context.Context, method string, path string, params url.Values, body []byte) ([]byte, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	endpoint := c.endpoint(path, params)
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, errs.WithKind(errs.Wrap(err, "build request"), errs.KindTransport)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.principal != nil {
		if token := strings.TrimSpace(c.principal.Token()); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	startedAt := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		// Transport failures are the root cause callers log, so the stack
		// is captured here.
		err = errs.WithStack(errs.Wrapf(err, "%s %s", method, path))
		logging.Debug(ctx, "strapi request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Any("err", errs.Loggable(err)),
		)
		return nil, errs.WithKind(err, errs.KindTransport)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.WithKind(errs.WithStack(errs.Wrapf(err, "read %s %s response", method, path)), errs.KindTransport)
	}

	logging.Debug(ctx, "strapi request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(startedAt)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeError(resp.StatusCode, raw)
	}
	return raw, nil
}

func (c *Client) endpoint(path string, params url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/api/" + strings.TrimLeft(path, "/")
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	return u.String()
}

// RemoteError is the decoded Strapi error envelope.
type RemoteError struct {
	Status  int
	Name    string
	Message string
	Details string
}

func (e *RemoteError) Error() string {
	name := e.Name
	if name == "" {
		name = http.StatusText(e.Status)
	}
	if e.Message == "" {
		return fmt.Sprintf("remote %d %s", e.Status, name)
	}
	return fmt.Sprintf("remote %d %s: %s", e.Status, name, e.Message)
}

// KindForStatus maps an HTTP status to the error taxonomy.
func KindForStatus(status int) errs.Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errs.KindUnauthorized
	case status == http.StatusNotFound:
		return errs.KindNotFound
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return errs.KindValidation
	default:
		return errs.KindRemote
	}
}

func decodeError(status int, raw []byte) error {
	remote := parseErrorEnvelope(raw)
	if remote == nil {
		remote = &RemoteError{Message: strings.TrimSpace(string(raw))}
	}
	if remote.Status == 0 {
		remote.Status = status
	}
	return errs.WithKind(remote, KindForStatus(status))
}
