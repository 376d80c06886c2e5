// Package cli is the stockpipe command line: a full run by default, plus
// extract, load and serve subcommands
package cli

import (
	"context"
	"encoding/json"
	stderrs "errors"
	"fmt"
	"io"

	"stockpipe/internal/core/version"
	"stockpipe/internal/platform/config"
	perr "stockpipe/internal/platform/errors"
	"stockpipe/internal/platform/logger"
	"stockpipe/internal/services/orchestrator/domain"

	"github.com/spf13/cobra"
)

// errReported marks a failure already written to stderr
var errReported = stderrs.New("reported")

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "stockpipe",
		Short: "Scrape daily stock prices and load them into the warehouse",
		Long: `stockpipe extracts historical stock prices from investing.com into a local
NDJSON sink, then loads the sink into the warehouse in idempotent batches.
Without a subcommand it runs both stages once and exits 0 on success, 1 on failure.`,
		Version:       version.Info().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
	}
	root.SetVersionTemplate("{{.Version}}\n")
	flags := bindFlags(root, persistentFlags)
	conf := func() config.Conf { return config.New().WithOverrides(flags.overrides()) }

	root.RunE = func(cmd *cobra.Command, _ []string) error { return runPipeline(cmd, conf()) }
	root.AddCommand(
		newExtractCmd(conf),
		newLoadCmd(conf),
		newServeCmd(conf),
	)
	return root
}

// Execute runs the command tree and returns the process exit code
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !stderrs.Is(err, errReported) {
			fmt.Fprintln(stderr, "stockpipe:", err)
		}
		return 1
	}
	return 0
}

func runPipeline(cmd *cobra.Command, cfg config.Conf) error {
	ctx := cmd.Context()
	a, err := bootstrap(ctx, cfg, "run")
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	run, err := a.orch.Service().Run(ctx, domain.TriggerCLI)
	if err != nil {
		return fail(cmd, run, err)
	}
	return printJSON(cmd.OutOrStdout(), run)
}

// fail writes the verbatim reason to stderr and logs it
func fail(cmd *cobra.Command, run domain.Run, err error) error {
	logger.C(logger.WithRun(cmd.Context(), run.ID)).Error().
		Str("code", perr.CodeOf(err).String()).Err(err).Msg("run failed")
	if run.ID != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "run %s failed: %s\n", run.ID, err.Error())
	} else {
		fmt.Fprintf(cmd.ErrOrStderr(), "run failed: %s\n", err.Error())
	}
	return errReported
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
