package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmockd/expectd/pkg/config"
	"github.com/getmockd/expectd/pkg/expect"
	"github.com/getmockd/expectd/pkg/report"
	"github.com/getmockd/expectd/pkg/requestlog"
	"github.com/getmockd/expectd/pkg/server"
)

// serveOptions holds the serve command's flags.
type serveOptions struct {
	files           []string
	addr            string
	matchHeaders    []string
	noMatchStatus   int
	disableAdmin    bool
	historySize     int
	shutdownTimeout time.Duration
}

func newServeCmd(g *globalFlags) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve expectations until interrupted, then verify them",
		Long: `Serve the expectations from one or more files. On SIGINT or SIGTERM the
server stops, waits for in-flight requests, verifies that exactly the
expected requests were received, prints a report and exits non-zero on
failure.

While running, the admin endpoints are available under /__expectd:
  GET /__expectd/health     liveness and provider state
  GET /__expectd/verify     verification report (200 pass, 409 fail)
  GET /__expectd/requests   request history (?method=, ?path= prefix)

Examples:
  expectd serve -f expectations.yaml --addr :8080
  expectd serve -f 'testdata/**/*.yaml' --match-header Content-Type --match-header Authorization`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, g, opts, cmd.OutOrStdout(), cmd.ErrOrStderr(), nil)
		},
	}

	f := cmd.Flags()
	f.StringArrayVarP(&opts.files, "file", "f", nil, "Expectation file or glob (repeatable, supports **)")
	f.StringVar(&opts.addr, "addr", envOr("EXPECTD_ADDR", "127.0.0.1:4380"), "Listen address")
	f.StringArrayVar(&opts.matchHeaders, "match-header", nil, "Request header included in matching (repeatable, default Content-Type)")
	f.IntVar(&opts.noMatchStatus, "no-match-status", server.DefaultNoMatchStatus, "Status code for requests with no expectation")
	f.BoolVar(&opts.disableAdmin, "disable-admin", false, "Do not mount the /__expectd admin endpoints")
	f.IntVar(&opts.historySize, "history-size", requestlog.DefaultMaxEntries, "Number of requests kept in the request history")
	f.DurationVar(&opts.shutdownTimeout, "shutdown-timeout", 10*time.Second, "Time to wait for in-flight requests on shutdown")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// runServe serves until ctx is done, then verifies. ready, when set, is
// called with the base URL once the server is listening.
func runServe(ctx context.Context, g *globalFlags, opts *serveOptions, stdout, stderr io.Writer, ready func(url string)) error {
	logger := g.logger(stderr)

	f, err := config.LoadGlob(opts.files...)
	if err != nil {
		return err
	}

	store := requestlog.NewMemoryStore(opts.historySize)
	p := expect.NewProvider(expect.WithLogger(logger), expect.WithRequestLog(store))
	if err := f.Apply(p); err != nil {
		return fmt.Errorf("invalid expectations: %w", err)
	}

	srv := server.New(p, server.Config{
		Addr:          opts.addr,
		MatchHeaders:  opts.matchHeaders,
		NoMatchStatus: opts.noMatchStatus,
		DisableAdmin:  opts.disableAdmin,
		Logger:        logger,
		RequestLog:    store,
	})
	if err := srv.Start(); err != nil {
		return err
	}
	logger.Info("serving expectations", "url", srv.URL(), "expectations", p.Len())
	if ready != nil {
		ready(srv.URL())
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown did not complete", "error", err)
	}

	rep := report.Build(p.Verify())
	if g.jsonOutput {
		err = report.WriteJSON(stdout, rep)
	} else {
		err = report.WriteText(stdout, rep)
	}
	if err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if !rep.Passed {
		return ErrVerificationFailed
	}
	return nil
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
