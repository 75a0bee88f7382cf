package strapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tidwall/gjson"

	"helpdesk/internal/domain/helpdesk"
	"helpdesk/internal/errs"
	"helpdesk/internal/ports"
)

var errMissingJWT = errors.New("auth response has no jwt")

// Login exchanges credentials for a JWT via the users-permissions endpoint.
// The auth body is not wrapped in a data envelope.
func (c *Client) Login(ctx context.Context, identifier string, password string) (string, helpdesk.User, error) {
	payload, err := json.Marshal(map[string]string{
		"identifier": identifier,
		"password":   password,
	})
	if err != nil {
		return "", helpdesk.User{}, errs.Wrap(err, "encode credentials")
	}
	body, err := c.Do(ctx, http.MethodPost, "auth/local", nil, payload)
	if err != nil {
		return "", helpdesk.User{}, errs.Wrap(err, "login")
	}

	jwt := gjson.GetBytes(body, "jwt").String()
	if jwt == "" {
		return "", helpdesk.User{}, errs.WithKind(errMissingJWT, errs.KindRemote)
	}
	var user helpdesk.User
	if raw := gjson.GetBytes(body, "user"); raw.IsObject() {
		if err := json.Unmarshal([]byte(raw.Raw), &user); err != nil {
			return "", helpdesk.User{}, errs.WithKind(errs.Wrap(err, "decode login user"), errs.KindRemote)
		}
	}
	return jwt, user, nil
}

// Me fetches the current user with its role populated. token overrides the
// principal, which matters right after Login before the session is saved.
func (c *Client) Me(ctx context.Context, token string) (helpdesk.User, error) {
	client := c
	if token != "" {
		copied := *c
		copied.principal = staticPrincipal(token)
		client = &copied
	}
	params := EncodeQuery(ports.Query{Populate: []string{"role"}})
	body, err := client.Do(ctx, http.MethodGet, "users/me", params, nil)
	if err != nil {
		return helpdesk.User{}, errs.Wrap(err, "load current user")
	}
	user, err := DecodeOne[helpdesk.User](body)
	if err != nil {
		return helpdesk.User{}, errs.Wrap(err, "load current user")
	}
	return user, nil
}

type staticPrincipal string

func (p staticPrincipal) Token() string    { return string(p) }
func (p staticPrincipal) UserID() string   { return "" }
func (p staticPrincipal) Username() string { return "" }
