package llm

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/parley/domain/repositories"
)

const defaultContinueFlag = "--continue"

// CommandConfig describes a command-line generator. The prompt is passed as the last
// argument and the reply is read from stdout.
type CommandConfig struct {
	Command      string
	Args         []string
	ContinueFlag string
	Dir          string
}

// NewCommandConfigFromEnv reads COMMAND_GENERATOR, a whitespace separated command line
func NewCommandConfigFromEnv() CommandConfig {
	fields := strings.Fields(os.Getenv("COMMAND_GENERATOR"))
	config := CommandConfig{
		ContinueFlag: os.Getenv("COMMAND_GENERATOR_CONTINUE_FLAG"),
		Dir:          os.Getenv("COMMAND_GENERATOR_DIR"),
	}
	if len(fields) > 0 {
		config.Command = fields[0]
		config.Args = fields[1:]
	}
	return config
}

// ValidateCommandConfig checks the command can be found
func ValidateCommandConfig(config CommandConfig) error {
	if config.Command == "" {
		return fmt.Errorf("generator command is required")
	}
	if _, err := exec.LookPath(config.Command); err != nil {
		return fmt.Errorf("generator command %q not found: %w", config.Command, err)
	}
	return nil
}

// CommandGenerator implements TextGenerator by running a subprocess per turn
type CommandGenerator struct {
	config CommandConfig
	policy RetryPolicy
	logger *zap.Logger
}

var _ repositories.TextGenerator = (*CommandGenerator)(nil)

// NewCommandGenerator validates config and applies defaults
func NewCommandGenerator(config CommandConfig, policy RetryPolicy, logger *zap.Logger) (*CommandGenerator, error) {
	if err := ValidateCommandConfig(config); err != nil {
		return nil, err
	}
	if config.ContinueFlag == "" {
		config.ContinueFlag = defaultContinueFlag
		logger.Info("Using default continue flag", zap.String("continueFlag", config.ContinueFlag))
	}
	return &CommandGenerator{config: config, policy: policy, logger: logger}, nil
}

// Generate implements TextGenerator
func (c *CommandGenerator) Generate(ctx context.Context, prompt string, continuation bool) (string, error) {
	args := c.args(prompt, continuation)
	start := time.Now()

	reply, err := c.policy.run(ctx, c.logger, "command", func(ctx context.Context) (string, error) {
		cmd := exec.CommandContext(ctx, c.config.Command, args...)
		cmd.Dir = c.config.Dir
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			return "", fmt.Errorf("%s exited: %w: %s", c.config.Command, err, strings.TrimSpace(stderr.String()))
		}
		return strings.TrimSpace(stdout.String()), nil
	})
	if err != nil {
		return "", err
	}

	c.logger.Info("Command reply generated",
		zap.Bool("continuation", continuation),
		zap.Duration("took", time.Since(start)))
	return reply, nil
}

func (c *CommandGenerator) args(prompt string, continuation bool) []string {
	args := make([]string, 0, len(c.config.Args)+2)
	args = append(args, c.config.Args...)
	if continuation {
		args = append(args, c.config.ContinueFlag)
	}
	return append(args, prompt)
}
