// Package cli provides the ledger command tree.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bitlabstudio/account-keeping/internal/app"
)

// ExitError ends the process with Code without printing anything further.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return "exit status " + strconv.Itoa(e.Code)
}

type rootOptions struct {
	envFile string
	jsonOut bool
}

// NewRootCommand builds the ledger command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Multi-currency bookkeeping reports and maintenance",
		Long: `ledger reports balances, income and expenses across accounts in
different currencies, converted into the configured base currency.

Example:
  ledger report month 2024-03
  ledger report year 2024 --json
  ledger fx validate --period 2024-03`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "env file to load (default is .env when present)")
	cmd.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "print JSON instead of tables")

	cmd.AddCommand(
		newReportCmd(opts),
		newFXCmd(opts),
		newAuditCmd(opts),
		newInvoiceCmd(opts),
		newMigrateCmd(opts),
		newJobsCmd(opts),
	)
	return cmd
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	if err := NewRootCommand().Execute(); err != nil {
		var exit *ExitError
		if errors.As(err, &exit) {
			return exit.Code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func (o *rootOptions) config() (*app.Config, error) {
	return app.LoadConfig(o.envFile)
}

// open loads configuration and wires the engine. Logs go to stderr.
func (o *rootOptions) open(cmd *cobra.Command) (*app.Engine, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	return app.Open(cmd.Context(), cfg, app.EngineOptions{Logger: o.logger(cmd, cfg)})
}

func (o *rootOptions) logger(cmd *cobra.Command, cfg *app.Config) *slog.Logger {
	return app.NewLoggerTo(cfg, cmd.ErrOrStderr())
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseDate(raw string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", raw)
	}
	return t, nil
}

func parseID(raw, what string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, raw)
	}
	return id, nil
}
