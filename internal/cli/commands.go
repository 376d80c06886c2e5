package cli

import (
	"context"
	"fmt"
	"time"

	"stockpipe/internal/adapters/sink/ndjson"
	"stockpipe/internal/modkit"
	"stockpipe/internal/modkit/repokit"
	"stockpipe/internal/platform/config"
	"stockpipe/internal/platform/logger"
	phttp "stockpipe/internal/platform/net/http"
	"stockpipe/internal/platform/net/middleware"
	"stockpipe/internal/services/orchestrator/domain"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newExtractCmd(conf func() config.Conf) *cobra.Command {
	return &cobra.Command{
		Use:   "extract",
		Short: "Run stage one only and print the committed sink directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, conf(), "extract")
			if err != nil {
				return err
			}
			defer a.close(context.WithoutCancel(ctx))

			runID := uuid.NewString()
			res, err := a.extract.Runner().Run(logger.WithRun(ctx, runID), runID)
			if err != nil {
				return fail(cmd, domain.Run{ID: runID}, err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), res.SinkDir)
			return err
		},
	}
}

func newLoadCmd(conf func() config.Conf) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Run stage two against a committed sink",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			h, err := ndjson.OpenDir(dir)
			if err != nil {
				return fail(cmd, domain.Run{}, err)
			}
			a, err := bootstrap(ctx, conf(), "load")
			if err != nil {
				return err
			}
			defer a.close(context.WithoutCancel(ctx))

			runID := h.Manifest.RunID
			res, err := a.load.Runner().Run(logger.WithRun(ctx, runID), h)
			if err != nil {
				return fail(cmd, domain.Run{ID: runID}, err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&dir, "sink", "", "committed sink directory printed by extract")
	_ = cmd.MarkFlagRequired("sink")
	return cmd
}

func newServeCmd(conf func() config.Conf) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline on a schedule and expose the status API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			cfg := conf()
			a, err := bootstrap(ctx, cfg, "serve")
			if err != nil {
				return err
			}
			defer a.close(context.WithoutCancel(ctx))

			srv := phttp.NewServer(cfg.Prefix("CORE_"), func(m *chi.Mux) {
				m.Use(middleware.Defaults()...)
			})
			r := srv.Router()
			a.orch.WithBase(ctx)
			modkit.MountAll(r, a.extract, a.load, a.orch)

			var guard func(context.Context) error
			if a.hasStore() {
				guard = func(ctx context.Context) error { return repokit.Guard(ctx, 2*time.Second, a.store) }
			}
			a.orch.MountHealth(r, guard)

			done := make(chan struct{})
			go func() {
				defer close(done)
				a.orch.Schedule(ctx)
			}()

			err = srv.Run(ctx)
			cancel()
			<-done
			return err
		},
	}
}
