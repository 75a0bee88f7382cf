package devbackend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"helpdesk/internal/bootstrap/logging"
	"helpdesk/internal/errs"
	"helpdesk/internal/infrastructure/strapi"
	"helpdesk/internal/ports"
)

type SeedUser struct {
	DocumentID string `yaml:"document_id" toml:"document_id"`
	Username   string `yaml:"username" toml:"username"`
	Email      string `yaml:"email" toml:"email"`
	Password   string `yaml:"password" toml:"password"`
	Role       string `yaml:"role" toml:"role"`
}

// Seed is the fixture format of the dev backend. Collection records should
// carry a documentId so repeated seeding skips them.
type Seed struct {
	Users       []SeedUser                  `yaml:"users" toml:"users"`
	Collections map[string][]map[string]any `yaml:"collections" toml:"collections"`
}

// LoadSeedFile reads a .yaml, .yml or .toml seed file.
func LoadSeedFile(path string) (Seed, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Seed{}, errors.New("seed file is required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, errs.Wrap(err, "read seed file")
	}

	var seed Seed
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &seed)
	case ".toml":
		err = toml.Unmarshal(raw, &seed)
	default:
		return Seed{}, fmt.Errorf("unsupported seed file extension %q", filepath.Ext(path))
	}
	if err != nil {
		return Seed{}, errs.Wrapf(err, "decode seed file %s", path)
	}
	for name := range seed.Collections {
		if _, ok := publicCollections[name]; !ok || name == strapi.PathUsers {
			return Seed{}, fmt.Errorf("seed collection %q is not supported", name)
		}
	}
	return seed, nil
}

// ApplySeed stores the users and records of seed that do not exist yet and
// returns how many were created.
func (s *Server) ApplySeed(ctx context.Context, seed Seed) (int, error) {
	if ctx == nil {
		return 0, errors.New("context is required")
	}
	ctx = logging.WithComponent(ctx, "devbackend")

	created := 0
	for _, user := range seed.Users {
		ok, err := s.seedUser(ctx, user)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}

	names := make([]string, 0, len(seed.Collections))
	for name := range seed.Collections {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		err := s.withTx(ctx, func(txCtx context.Context) error {
			for _, record := range seed.Collections[name] {
				ok, err := s.seedRecord(txCtx, name, record)
				if err != nil {
					return err
				}
				if ok {
					created++
				}
			}
			return nil
		})
		if err != nil {
			return created, errs.Wrapf(err, "seed %s", name)
		}
	}
	logging.Info(ctx, "seed applied", slog.Int("created", created))
	return created, nil
}

func (s *Server) seedUser(ctx context.Context, user SeedUser) (bool, error) {
	username := strings.TrimSpace(user.Username)
	if username == "" {
		return false, errors.New("seed user requires a username")
	}
	if _, err := s.repo.GetDocument(ctx, collectionCredentials, credentialID(username)); err == nil {
		return false, nil
	} else if !errors.Is(err, ports.ErrDocumentNotFound) {
		return false, errs.Wrapf(err, "check seed user %s", username)
	}

	record := map[string]any{
		"documentId": strings.TrimSpace(user.DocumentID),
		"username":   username,
		"email":      strings.TrimSpace(user.Email),
	}
	if role := strings.TrimSpace(user.Role); role != "" {
		record["role"] = map[string]any{"name": role, "type": strings.ToLower(role)}
	}
	if _, err := s.RegisterUser(ctx, record, user.Password); err != nil {
		return false, errs.Wrapf(err, "seed user %s", username)
	}
	return true, nil
}

func (s *Server) seedRecord(ctx context.Context, collection string, record map[string]any) (bool, error) {
	raw, err := jsonBytes(record)
	if err != nil {
		return false, err
	}
	documentID, _ := record["documentId"].(string)
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		documentID = s.newID()
	} else if _, err := s.repo.GetDocument(ctx, collection, documentID); err == nil {
		return false, nil
	} else if !errors.Is(err, ports.ErrDocumentNotFound) {
		return false, errs.Wrapf(err, "check %s/%s", collection, documentID)
	}

	if _, err := s.insert(ctx, collection, documentID, "", raw); err != nil {
		return false, err
	}
	return true, nil
}
