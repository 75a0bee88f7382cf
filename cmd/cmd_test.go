package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helpdesk/internal/bootstrap"
	"helpdesk/internal/bootstrap/config"
)

const testSeed = `
users:
  - document_id: u-alice
    username: alice
    email: alice@example.com
    password: secret
    role: Agent
collections:
  tickets:
    - documentId: t-1
      title: Printer jam
      description: Paper stuck
      priority: high
      status: open
      client: u-alice
    - documentId: t-2
      title: VPN down
      description: No tunnel
      priority: low
      status: resolved
      client: u-alice
`

func writeTestConfig(t *testing.T, dir string, baseURL string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`log:
  level: error
database:
  driver: sqlite
  dsn: %s
backend:
  base_url: %s
  timeout: 5s
devbackend:
  dsn: %s
`, filepath.Join(dir, "state.sqlite"), baseURL, filepath.Join(dir, "dev.sqlite"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSeedLoginAndListTickets(t *testing.T) {
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(seedPath, []byte(testSeed), 0o600))

	// Seed through the CLI, then serve the same store over HTTP.
	bootstrapCfg := writeTestConfig(t, dir, "http://127.0.0.1:1")
	out, err := execute(t, "--config", bootstrapCfg, "backend", "seed", seedPath)
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 3 records")

	cfg, err := config.Load(context.Background(), bootstrapCfg)
	require.NoError(t, err)
	backend, err := bootstrap.OpenDevBackend(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	server := httptest.NewServer(backend.Server.Handler())
	t.Cleanup(server.Close)

	cfgPath := writeTestConfig(t, dir, server.URL)

	out, err = execute(t, "--config", cfgPath, "whoami")
	require.NoError(t, err)
	assert.Equal(t, "not logged in\n", out)

	out, err = execute(t, "--config", cfgPath, "login", "-u", "alice", "-p", "secret")
	require.NoError(t, err)
	assert.Equal(t, "logged in: alice role=agent\n", out)

	out, err = execute(t, "--config", cfgPath, "tickets", "list", "--status", "open")
	require.NoError(t, err)
	assert.Contains(t, out, "t-1 status=open priority=high")
	assert.NotContains(t, out, "t-2")

	out, err = execute(t, "--config", cfgPath, "tickets", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "total=2 active=1 resolved=1 unassigned=2")

	out, err = execute(t, "--config", cfgPath, "logout")
	require.NoError(t, err)
	assert.Equal(t, "logged out\n", out)

	_, err = execute(t, "--config", cfgPath, "agents")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "helpdesk login")
}

func TestResolveBody(t *testing.T) {
	newCmd := func() *cobra.Command {
		c := &cobra.Command{Use: "x"}
		c.Flags().String("body", "", "")
		c.Flags().String("body-file", "", "")
		return c
	}

	c := newCmd()
	_, err := resolveBody(c, true)
	require.Error(t, err)

	body, err := resolveBody(c, false)
	require.NoError(t, err)
	assert.Empty(t, body)

	path := filepath.Join(t.TempDir(), "body.txt")
	require.NoError(t, os.WriteFile(path, []byte("from file"), 0o600))
	c = newCmd()
	require.NoError(t, c.Flags().Set("body-file", path))
	body, err = resolveBody(c, true)
	require.NoError(t, err)
	assert.Equal(t, "from file", body)

	require.NoError(t, c.Flags().Set("body", "inline"))
	_, err = resolveBody(c, true)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "mutually exclusive"))
}

func TestOptionalString(t *testing.T) {
	c := &cobra.Command{Use: "x"}
	c.Flags().String("title", "", "")
	assert.Nil(t, optionalString(c, "title"))

	require.NoError(t, c.Flags().Set("title", ""))
	got := optionalString(c, "title")
	require.NotNil(t, got)
	assert.Equal(t, "", *got)
}
