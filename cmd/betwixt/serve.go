package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/praetorian-inc/betwixt/pkg/scanner"
	"github.com/praetorian-inc/betwixt/pkg/serve"
	"github.com/spf13/cobra"
)

var serveRulesPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as a streaming NDJSON server",
	Long: `Run Betwixt as a long-lived streaming server that accepts scan and
extract requests via stdin and writes responses to stdout using NDJSON.

The process loads rules once at startup and processes requests until
stdin closes, a "close" request arrives, or SIGTERM is received.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveRulesPath, "rules", "", "Path to a rules file (default: builtin rules)")
}

// stderrLogger writes core diagnostics to stderr when --verbose is set.
type stderrLogger struct {
	out io.Writer
}

func (l stderrLogger) Log(format string, args ...interface{}) {
	fmt.Fprintf(l.out, "[debug] "+format+"\n", args...)
}

func runServe(cmd *cobra.Command, args []string) error {
	rulesDoc := "builtin"
	if serveRulesPath != "" {
		data, err := os.ReadFile(serveRulesPath)
		if err != nil {
			return fmt.Errorf("reading rules: %w", err)
		}
		rulesDoc = string(data)
	}

	var logger scanner.DebugLogger = scanner.NoopLogger{}
	if verbose {
		logger = stderrLogger{out: cmd.ErrOrStderr()}
	}

	core, err := scanner.NewCore(rulesDoc, logger)
	if err != nil {
		return err
	}
	defer core.Close()

	// Set up signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	srv := serve.NewServer(core, cmd.InOrStdin(), cmd.OutOrStdout())
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
