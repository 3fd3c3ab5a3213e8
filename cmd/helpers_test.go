package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/calm-cli/calm/internal/calendar"
	"github.com/calm-cli/calm/internal/calendar/calendartest"
	"github.com/calm-cli/calm/internal/config"
	"github.com/calm-cli/calm/internal/llm"
	"github.com/calm-cli/calm/internal/tools/executor"
)

const testCredentials = `{"installed":{"client_id":"id.apps.googleusercontent.com","client_secret":"secret",` +
	`"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token",` +
	`"redirect_uris":["http://localhost"]}}`

// cli runs the real command tree against a fake calendar in a temporary
// config directory.
type cli struct {
	dir string
	cal *calendartest.Server
	now time.Time
	loc *time.Location

	// engine, when set, is returned by engineFactory
	engine  llm.Engine
	apiKeys []string
}

func newCLI(t *testing.T) *cli {
	t.Helper()

	loc, err := time.LoadLocation("Asia/Taipei")
	require.NoError(t, err)

	c := &cli{
		dir: t.TempDir(),
		cal: calendartest.NewServer(t),
		now: time.Date(2025, 8, 14, 9, 0, 0, 0, loc),
		loc: loc,
	}
	t.Setenv("CALM_CONFIG_DIR", c.dir)
	t.Setenv("CALM_AGENT_API_KEY", "")
	t.Setenv(config.APIKeyEnv, "")

	prevStore, prevEngine, prevNow := storeFactory, engineFactory, now
	t.Cleanup(func() {
		storeFactory, engineFactory, now = prevStore, prevEngine, prevNow
	})

	storeFactory = func(ctx context.Context, _ *cobra.Command, rt *runtime, _ bool) (executor.Store, error) {
		return calendar.NewClientWithOptions(ctx, rt.cfg, c.cal.ClientOptions())
	}
	engineFactory = func(_ *runtime, apiKey, _ string) (llm.Engine, error) {
		c.apiKeys = append(c.apiKeys, apiKey)
		return c.engine, nil
	}
	now = func() time.Time { return c.now }
	return c
}

// withCredentials imports an OAuth client so commands skip onboarding.
func (c *cli) withCredentials(t *testing.T) *cli {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(c.dir, "credentials.json"), []byte(testCredentials), 0600))
	return c
}

type result struct {
	stdout string
	stderr string
	err    error
}

func (c *cli) run(stdin string, args ...string) result {
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	if args == nil {
		// nil would make cobra read os.Args
		args = []string{}
	}
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.ExecuteContext(context.Background())
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func (r result) code() int {
	return exitCode(context.Background(), r.err, &bytes.Buffer{})
}
