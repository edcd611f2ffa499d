package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/getmockd/expectd/pkg/logging"
)

var (
	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// ErrVerificationFailed is returned by serve when the received requests
// did not match the expectations. The report has already been printed.
var ErrVerificationFailed = errors.New("verification failed")

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	logLevel   string
	logFormat  string
	jsonOutput bool
}

func (g *globalFlags) logger(w io.Writer) *slog.Logger {
	cfg := logging.FromEnv()
	cfg.Output = w
	if g.logLevel != "" {
		cfg.Level = logging.ParseLevel(g.logLevel)
	}
	if g.logFormat != "" {
		cfg.Format = logging.ParseFormat(g.logFormat)
	}
	return logging.New(cfg)
}

// NewRootCommand builds the expectd command tree.
func NewRootCommand() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "expectd",
		Short: "expectd serves expected HTTP requests and verifies them",
		Long: `expectd is a programmable stand-in for an HTTP server in tests.

Load request/response expectations from YAML or JSON files, point the code
under test at the server, and stop it when done: expectd then reports every
expected request that never arrived and every request that was not expected,
and exits non-zero if there were any.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error (env "+logging.EnvLevel+")")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "Log format: text or json (env "+logging.EnvFormat+")")
	root.PersistentFlags().BoolVar(&g.jsonOutput, "json", false, "Output command results in JSON format")

	root.AddCommand(
		newServeCmd(g),
		newValidateCmd(g),
		newVersionCmd(g),
	)
	return root
}

// Main runs the CLI with os.Args and returns the process exit code.
func Main() int {
	if err := NewRootCommand().Execute(); err != nil {
		if !errors.Is(err, ErrVerificationFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return 1
	}
	return 0
}

// Execute runs the CLI and exits with status 1 on error.
func Execute() {
	os.Exit(Main())
}
