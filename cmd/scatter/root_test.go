package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/scatter"
	"github.com/viant/scatter/service/messaging"
	"github.com/viant/scatter/service/process"
	"github.com/viant/scatter/service/worker"
)

func TestEvaluateCommand(t *testing.T) {
	dir, err := os.MkdirTemp("", "scatter-cli")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	ctx := context.Background()
	queueDir := path.Join(dir, "queue")

	queue, err := scatter.NewQueue(ctx, messaging.Config{Vendor: messaging.VendorFS, URL: queueDir}, nil)
	require.NoError(t, err)
	seedExpr := regexp.MustCompile(`(\d{4})\.txt`)
	runner := process.RunnerFunc(func(ctx context.Context, command string) (*process.Result, error) {
		match := seedExpr.FindStringSubmatch(command)
		if match == nil {
			return nil, fmt.Errorf("unexpected command: %v", command)
		}
		seed, _ := strconv.Atoi(match[1])
		return &process.Result{Output: strconv.FormatFloat(float64(seed)/10, 'f', -1, 64)}, nil
	})
	srv, err := worker.New(worker.Config{Command: "./heuristic", InstanceURL: "/in", ScoreScale: 1}, runner, queue)
	require.NoError(t, err)
	handler := worker.NewHandler(srv)
	server := httptest.NewServer(handler)
	defer server.Close()

	configFile := path.Join(dir, "config.yaml")
	config := fmt.Sprintf(`backend: remote
samples: 3
remote:
  backoff: 5ms
  timeout: 5s
  settleDelay: 0s
  invoker:
    url: %v
  queue:
    vendor: fs
    url: %v
`, server.URL, queueDir)
	require.NoError(t, os.WriteFile(configFile, []byte(config), 0644))

	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetArgs([]string{"evaluate", "--config", configFile, "--log", "error", "--params", `{"temp0":0.5}`})
	require.NoError(t, rootCmd.Execute())
	fitness, err := strconv.ParseFloat(strings.TrimSpace(out.String()), 64)
	require.NoError(t, err)
	// seeds 0..2 score 0, 0.1 and 0.2
	assert.InDelta(t, 0.9, fitness, 1e-9)

	out.Reset()
	rootCmd.SetArgs([]string{"evaluate", "--config", configFile, "--log", "error", "--seeds", "4,2", "--scores"})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "2 0.2\n4 0.4\n", out.String())
	handler.Wait()
}

func TestLoadConfigOverrides(t *testing.T) {
	configURL, samples = "", 25
	defer func() { samples = 0 }()
	config, err := loadConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25, config.Samples)
	assert.Len(t, config.SeedList(), 25)
}
