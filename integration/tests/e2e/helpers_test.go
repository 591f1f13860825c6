//go:build integration

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	httpPkg "github.com/bascanada/forklift-ops/pkg/http"
	"github.com/bascanada/forklift-ops/pkg/ty"
)

type TestContext struct {
	BinaryPath  string
	IndexPrefix string
}

var tCtx TestContext

func (c *TestContext) env() []string {
	return append(os.Environ(),
		"HOME="+os.TempDir(),
		"NO_COLOR=1",
		"FORKLIFT_OPS_CONFIG=",
		"FORKLIFT_GUI_INDEX_PREFIX="+c.IndexPrefix,
		"FORKLIFT_GUI_ES_HOST=localhost",
		"FORKLIFT_GUI_STOMP_HOST=localhost",
		"FORKLIFT_GUI_STOMP_RETRIES=3",
		"FORKLIFT_GUI_STOMP_RETRY_DELAY=1s",
		"FORKLIFT_GUI_KAFKA_BROKERS="+kafkaBroker,
	)
}

func (c *TestContext) Run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Logf("Running command: %s %s", c.BinaryPath, strings.Join(args, " "))

	cmd := exec.Command(c.BinaryPath, args...)
	cmd.Env = c.env()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func (c *TestContext) RunAndExpectSuccess(t *testing.T, args ...string) string {
	t.Helper()
	stdout, stderr, err := c.Run(t, args...)
	require.NoError(t, err, "Command failed. Stderr: %s", stderr)
	return stdout
}

func (c *TestContext) RunJSON(t *testing.T, out interface{}, args ...string) {
	t.Helper()
	stdout := c.RunAndExpectSuccess(t, args...)
	require.NoError(t, json.Unmarshal([]byte(stdout), out), "stdout: %s", stdout)
}

func (c *TestContext) Start(t *testing.T, args ...string) *exec.Cmd {
	t.Helper()
	cmd := exec.Command(c.BinaryPath, args...)
	cmd.Env = c.env()
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	require.NoError(t, cmd.Start())
	t.Cleanup(func() {
		_ = cmd.Process.Signal(os.Interrupt)
		_ = cmd.Wait()
	})
	return cmd
}

func (c *TestContext) RetryIndex() string  { return c.IndexPrefix + "-retry-2024.05.01" }
func (c *TestContext) ReplayIndex() string { return c.IndexPrefix + "-replay-2024.05.01" }

type seedDoc struct {
	Index  string
	ID     string
	Source ty.MI
}

func fixtures(prefix string) []seedDoc {
	retry := prefix + "-retry-2024.05.01"
	replay := prefix + "-replay-2024.05.01"
	return []seedDoc{
		{retry, "r1", ty.MI{"step": "Error", "role": "A", "time": "2024-05-01T10:00:00Z"}},
		{retry, "r2", ty.MI{"step": "Error", "queue": "A", "time": "2024-05-01T11:00:00Z"}},
		{retry, "r3", ty.MI{"step": "Error", "role": "B", "time": "2024-05-01T12:00:00Z"}},
		{retry, "r4", ty.MI{"step": "Resolved", "role": "A", "time": "2024-05-01T13:00:00Z"}},
		{replay, "p1", ty.MI{"step": "Error", "role": "A", "time": "2024-05-01T10:00:00Z"}},
		{replay, "p2", ty.MI{"step": "Error", "role": "A", "time": "2024-05-01T11:00:00Z"}},
		{replay, "p3", ty.MI{"step": "Pending", "role": "C", "time": "2024-05-01T12:00:00Z"}},
	}
}

// Seed indexes the fixtures and refreshes so they are searchable at once.
func Seed(ctx context.Context, prefix string) error {
	client := httpPkg.GetClient(searchURL)
	for _, doc := range fixtures(prefix) {
		path := fmt.Sprintf("/%s/_doc/%s?refresh=true", doc.Index, doc.ID)
		if err := client.PostJson(ctx, path, ty.MS{}, doc.Source, nil); err != nil {
			return fmt.Errorf("seed %s/%s: %w", doc.Index, doc.ID, err)
		}
	}
	return nil
}

func Cleanup(ctx context.Context, prefix string) error {
	indices := prefix + "-retry-2024.05.01," + prefix + "-replay-2024.05.01"
	return httpPkg.GetClient(searchURL).Delete(ctx, "/"+indices)
}

// Eventually retries fn until it returns nil or the timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, fn func() error) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var err error
	for time.Now().Before(deadline) {
		if err = fn(); err == nil {
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("condition not met after %v: %v", timeout, err)
}
