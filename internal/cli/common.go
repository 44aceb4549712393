package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/vacatrack/internal/agent"
	"github.com/roach88/vacatrack/internal/config"
	"github.com/roach88/vacatrack/internal/ir"
	"github.com/roach88/vacatrack/internal/vacation"
)

// Error codes for CLI responses.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeConfig      = "E002" // Config file missing or invalid
	ErrCodeStore       = "E003" // Database could not be opened
	ErrCodeInvalidArgs = "E004" // Bad command input (e.g. invalid dates)
	ErrCodePersistence = "E101" // Store write or read failed
	ErrCodeNetwork     = "E102" // Origin or acceptor unreachable
	ErrCodeRejected    = "E103" // Acceptor refused the delivery
)

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// loadConfig reads --config (or the defaults) and applies --db.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		var err error
		if cfg, err = config.Load(opts.Config); err != nil {
			return nil, err
		}
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	return cfg, nil
}

// openAgent loads config and opens the agent, reporting failures through f.
func openAgent(opts *RootOptions, f *OutputFormatter) (*agent.Agent, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, outputError(f, ErrCodeConfig, "invalid configuration", err, ExitCommandError)
	}
	f.VerboseLog("Opening database %s", cfg.Database)
	a, err := agent.New(cfg, opts.AgentOptions...)
	if err != nil {
		return nil, outputError(f, ErrCodeStore, "failed to open agent", err, ExitCommandError)
	}
	return a, nil
}

// outputError writes the error through f and returns the matching ExitError.
func outputError(f *OutputFormatter, code, message string, err error, exit int) error {
	text := message
	if err != nil {
		text = fmt.Sprintf("%s: %v", message, err)
	}
	_ = f.Error(code, text, nil)
	return WrapExitError(exit, message, err)
}

// classify maps core errors onto CLI error codes.
func classify(err error) string {
	switch {
	case errors.Is(err, vacation.ErrInvalidDates):
		return ErrCodeInvalidArgs
	case ir.IsPersistenceError(err):
		return ErrCodePersistence
	case ir.IsNetworkError(err):
		return ErrCodeNetwork
	case ir.IsRejected(err):
		return ErrCodeRejected
	default:
		return ErrCodeGeneric
	}
}
