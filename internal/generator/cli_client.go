package generator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/quizsets/backend/internal/logger"
)

const (
	defaultCLIPath    = "claude"
	defaultCLITimeout = 3 * time.Minute
	maxStderrExcerpt  = 512
)

var errEmptyCLIOutput = errors.New("claude CLI returned empty response")

// CLIClient generates sets through a locally installed claude CLI. It
// needs no API key, and the CLI does not report token usage.
type CLIClient struct {
	path    string
	timeout time.Duration
	log     *logger.Logger
}

func NewCLIClient(path string, log *logger.Logger) *CLIClient {
	if path == "" {
		path = defaultCLIPath
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CLIClient{path: path, timeout: defaultCLITimeout, log: log}
}

func (c *CLIClient) Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.path, cliArgs(systemPrompt)...)
	cmd.Stdin = strings.NewReader(userPrompt)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	if err := cmd.Run(); err != nil {
		excerpt := tail(stderr.String(), maxStderrExcerpt)
		c.log.Warn("claude CLI failed", "error", err, "stderr", excerpt)
		return nil, fmt.Errorf("run %s: %w: %s", c.path, err, excerpt)
	}

	text := strings.TrimSpace(stdout.String())
	if text == "" {
		return nil, errEmptyCLIOutput
	}
	c.log.Debug("claude CLI replied", "bytes", len(text), "took", time.Since(started))
	return &LLMResponse{Content: text}, nil
}

func cliArgs(systemPrompt string) []string {
	return []string{
		"--print",
		"--output-format", "text",
		"--max-turns", "1",
		"--system-prompt", systemPrompt,
	}
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
