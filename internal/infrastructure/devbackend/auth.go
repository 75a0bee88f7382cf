package devbackend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/crypto/bcrypt"

	"helpdesk/internal/bootstrap/logging"
	"helpdesk/internal/errs"
	"helpdesk/internal/infrastructure/strapi"
	"helpdesk/internal/ports"
)

type userIDKey struct{}

func withUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

func userIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(userIDKey{}).(string)
	return v
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errs.Wrap(err, "hash password")
	}
	return string(hash), nil
}

func credentialID(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// RegisterUser stores a user and its credentials. The login identifier is
// the username; the email is accepted as a second identifier when set.
func (s *Server) RegisterUser(ctx context.Context, user map[string]any, password string) (string, error) {
	raw, err := jsonBytes(user)
	if err != nil {
		return "", err
	}
	username := strings.TrimSpace(gjson.GetBytes(raw, "username").String())
	if username == "" {
		return "", errors.New("username is required")
	}
	if password == "" {
		return "", errors.New("password is required")
	}

	hash, err := hashPassword(password)
	if err != nil {
		return "", err
	}

	documentID := strings.TrimSpace(gjson.GetBytes(raw, "documentId").String())
	if documentID == "" {
		documentID = s.newID()
	}

	err = s.withTx(ctx, func(txCtx context.Context) error {
		created, err := s.insert(txCtx, strapi.PathUsers, documentID, documentID, raw)
		if err != nil {
			return err
		}
		identifiers := []string{username}
		if email := strings.TrimSpace(gjson.GetBytes(created, "email").String()); email != "" {
			identifiers = append(identifiers, email)
		}
		for _, identifier := range identifiers {
			cred := []byte(`{}`)
			cred, _ = sjson.SetBytes(cred, "userId", documentID)
			cred, _ = sjson.SetBytes(cred, "passwordHash", hash)
			if _, err := s.repo.CreateDocument(txCtx, ports.Document{
				Collection: collectionCredentials,
				DocumentID: credentialID(identifier),
				OwnerID:    documentID,
				Payload:    string(cred),
				CreatedAt:  s.timestamp(),
				UpdatedAt:  s.timestamp(),
			}); err != nil {
				return errs.Wrapf(err, "store credentials for %s", identifier)
			}
		}
		return nil
	})
	if err != nil {
		return "", errs.Wrap(err, "register user")
	}
	return documentID, nil
}

// IssueToken creates a bearer token for userID.
func (s *Server) IssueToken(ctx context.Context, userID string) (string, error) {
	token := uuid.NewString()
	if _, err := s.repo.CreateDocument(ctx, ports.Document{
		Collection: collectionSessions,
		DocumentID: token,
		OwnerID:    userID,
		Payload:    `{}`,
		CreatedAt:  s.timestamp(),
		UpdatedAt:  s.timestamp(),
	}); err != nil {
		return "", errs.Wrap(err, "store session token")
	}
	return token, nil
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil || !gjson.ValidBytes(body) {
		writeError(w, http.StatusBadRequest, "ValidationError", "invalid request body")
		return
	}
	identifier := credentialID(gjson.GetBytes(body, "identifier").String())
	password := gjson.GetBytes(body, "password").String()
	if identifier == "" || password == "" {
		writeError(w, http.StatusBadRequest, "ValidationError", "identifier and password are required")
		return
	}

	ctx := logging.WithAttrs(logging.WithComponent(r.Context(), "devbackend"), slog.String("identifier", identifier))
	cred, err := s.repo.GetDocument(ctx, collectionCredentials, identifier)
	if err != nil {
		if !errors.Is(err, ports.ErrDocumentNotFound) {
			logging.Error(ctx, "load credentials failed", slog.Any("err", errs.Loggable(err)))
		}
		writeError(w, http.StatusBadRequest, "ValidationError", "Invalid identifier or password")
		return
	}
	hash := gjson.Get(cred.Payload, "passwordHash").String()
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "Invalid identifier or password")
		return
	}

	userID := gjson.Get(cred.Payload, "userId").String()
	user, err := s.repo.GetDocument(ctx, strapi.PathUsers, userID)
	if err != nil {
		logging.Error(ctx, "load user failed", slog.Any("err", errs.Loggable(err)))
		writeError(w, http.StatusInternalServerError, "ApplicationError", "user record is missing")
		return
	}
	token, err := s.IssueToken(ctx, userID)
	if err != nil {
		logging.Error(ctx, "issue token failed", slog.Any("err", errs.Loggable(err)))
		writeError(w, http.StatusInternalServerError, "ApplicationError", "could not issue token")
		return
	}

	out := []byte(`{}`)
	out, _ = sjson.SetBytes(out, "jwt", token)
	out, _ = sjson.SetRawBytes(out, "user", []byte(user.Payload))
	logging.Info(ctx, "user logged in", slog.String("user_id", userID))
	writeJSON(w, http.StatusOK, out)
}

// handleMe answers with the bare user; users-permissions does not wrap it.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	user, err := s.repo.GetDocument(r.Context(), strapi.PathUsers, userID)
	if err != nil {
		writeError(w, http.StatusNotFound, "NotFoundError", "Not Found")
		return
	}
	writeJSON(w, http.StatusOK, []byte(user.Payload))
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		const prefix = "bearer "
		if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
			writeError(w, http.StatusUnauthorized, "UnauthorizedError", "Missing or invalid credentials")
			return
		}
		token := strings.TrimSpace(header[len(prefix):])
		session, err := s.repo.GetDocument(r.Context(), collectionSessions, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UnauthorizedError", "Missing or invalid credentials")
			return
		}
		next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), session.OwnerID)))
	})
}
