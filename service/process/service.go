package process

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/viant/afs/url"
	"github.com/viant/gosh"
	"github.com/viant/gosh/runner"
	"github.com/viant/gosh/runner/local"
	rssh "github.com/viant/gosh/runner/ssh"
	"github.com/viant/scatter/internal/idgen"
	"github.com/viant/scy/cred/secret"
	"golang.org/x/crypto/ssh"
)

// Host identifies where commands run
type Host struct {
	URL         string `json:"url,omitempty" yaml:"url,omitempty"`
	Credentials string `json:"credentials,omitempty" yaml:"credentials,omitempty"`
}

// IsLocal reports whether commands run on this machine
func (h *Host) IsLocal() bool {
	if h == nil || h.URL == "" {
		return true
	}
	host := url.Host(h.URL)
	return host == "localhost" || strings.HasPrefix(host, "localhost:") || strings.HasPrefix(host, "127.0.0.1")
}

// Config configures a process service
type Config struct {
	Host    *Host             `json:"host,omitempty" yaml:"host,omitempty"`
	Env     map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	Timeout time.Duration     `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// DefaultTimeout bounds a single command; heuristic runs can take a long time
const DefaultTimeout = 24 * time.Hour

// Service runs every command in its own shell session so that commands can
// run concurrently.
type Service struct {
	config Config
}

// Run runs command and waits for it to finish
func (s *Service) Run(ctx context.Context, command string) (*Result, error) {
	session, err := s.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	defer session.Close()
	timeout := s.config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	errPath := stderrPath(idgen.New())
	started := time.Now()
	output, status, err := session.Run(ctx, redirectStderr(command, errPath), runner.WithTimeout(int(timeout.Milliseconds())))
	result := &Result{Command: command, Output: output, Status: status}
	if elapsed := time.Since(started); elapsed > timeout && err == nil {
		err = fmt.Errorf("command %v timed out after: %s", command, elapsed)
	}
	if err != nil && result.Status == 0 {
		result.Status = -1
	}
	if stderr, _, readErr := session.Run(ctx, readAndRemove(errPath), runner.WithTimeout(int(stderrReadTimeout.Milliseconds()))); readErr == nil {
		result.Stderr = strings.TrimSpace(stderr)
	}
	return result, err
}

const stderrReadTimeout = 30 * time.Second

// stderrPath names the file collecting stderr of one command on the host
func stderrPath(id string) string {
	return "/tmp/scatter-" + id + ".err"
}

// redirectStderr keeps stdout the only captured stream, so the last stdout
// line is the score even when the command prints diagnostics
func redirectStderr(command, errPath string) string {
	return "{ " + command + "; } 2> " + ShellQuote(errPath)
}

func readAndRemove(errPath string) string {
	quoted := ShellQuote(errPath)
	return "cat " + quoted + " 2>/dev/null; rm -f " + quoted
}

func (s *Service) open(ctx context.Context) (*gosh.Service, error) {
	var options []runner.Option
	if len(s.config.Env) > 0 {
		options = append(options, runner.WithEnvironment(s.config.Env))
	}
	if s.config.Host.IsLocal() {
		return gosh.New(ctx, local.New(options...))
	}
	config, err := sshConfig(ctx, s.config.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to get SSH config: %w", err)
	}
	sshHost := url.Host(s.config.Host.URL)
	if !strings.Contains(sshHost, ":") {
		sshHost += ":22"
	}
	return gosh.New(ctx, rssh.New(sshHost, config, options...))
}

func sshConfig(ctx context.Context, host *Host) (*ssh.ClientConfig, error) {
	credentials := host.Credentials
	if credentials == "" {
		credentials = "localhost"
	}
	generic, err := secret.New().GetCredentials(ctx, credentials)
	if err != nil {
		return nil, err
	}
	return generic.SSH.Config(ctx)
}

// New creates a process service
func New(config Config) *Service {
	return &Service{config: config}
}

var _ Runner = (*Service)(nil)
