// Package process runs shell commands on the local host or over ssh.
package process

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Result captures one finished command. Output holds stdout only.
type Result struct {
	Command string
	Output  string
	Stderr  string
	Status  int
}

// Succeeded reports a zero exit status
func (r *Result) Succeeded() bool {
	return r != nil && r.Status == 0
}

// Runner runs one shell command to completion
type Runner interface {
	Run(ctx context.Context, command string) (*Result, error)
}

// RunnerFunc adapts a function to Runner
type RunnerFunc func(ctx context.Context, command string) (*Result, error)

// Run calls f
func (f RunnerFunc) Run(ctx context.Context, command string) (*Result, error) {
	return f(ctx, command)
}

// ParseScore reads the last non-empty line of output as a float
func ParseScore(output string) (float64, error) {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		score, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid score %q: %w", line, err)
		}
		return score, nil
	}
	return 0, fmt.Errorf("no score in output")
}

// ShellQuote wraps s in single quotes for a POSIX shell
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
