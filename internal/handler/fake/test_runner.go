package fake

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/slok/stagegate/internal/handler"
	"github.com/slok/stagegate/internal/log"
)

// TestRunnerConfig is the configuration for the fake test runner.
type TestRunnerConfig struct {
	// LogDir is where suite logs are written.
	LogDir string
	// Passed and Failed script the reported counts. Zero values report a
	// single passing test.
	Passed int
	Failed int
	Logger log.Logger
}

func (c *TestRunnerConfig) defaults() error {
	if c.LogDir == "" {
		return fmt.Errorf("log dir is required")
	}
	if c.Passed == 0 && c.Failed == 0 {
		c.Passed = 1
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "handler.FakeTestRunner"})
	return nil
}

// TestRunner is a fake implementation of handler.TestRunner with scripted
// counts. It writes a suite log so the report's artifact actually exists.
type TestRunner struct {
	logDir string
	passed int
	failed int
	logger log.Logger
}

// NewTestRunner creates a new fake test runner.
func NewTestRunner(cfg TestRunnerConfig) (*TestRunner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &TestRunner{
		logDir: cfg.LogDir,
		passed: cfg.Passed,
		failed: cfg.Failed,
		logger: cfg.Logger,
	}, nil
}

// Run reports the scripted outcome for the selected suite.
func (r *TestRunner) Run(ctx context.Context, suiteSelector string) (*handler.RunReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logPath := filepath.Join(r.logDir, suiteSelector+".log")
	content := fmt.Sprintf("suite %s ran at %s\npassed=%d failed=%d\n",
		suiteSelector, time.Now().UTC().Format(time.RFC3339), r.passed, r.failed)
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("could not create log directory: %w", err)
	}
	if err := os.WriteFile(logPath, []byte(content), 0644); err != nil {
		return nil, fmt.Errorf("could not write suite log: %w", err)
	}

	r.logger.Debugf("Ran suite %s: %d passed, %d failed", suiteSelector, r.passed, r.failed)

	return &handler.RunReport{
		Passed:  r.passed,
		Failed:  r.failed,
		LogPath: logPath,
	}, nil
}
