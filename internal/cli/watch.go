package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fmueller/voxbatch/internal/batch"
	"github.com/fmueller/voxbatch/internal/discover"
	"github.com/fmueller/voxbatch/internal/watch"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newWatchCmd(app *appState) *cobra.Command {
	settle := watch.DefaultSettle

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Convert existing videos, then keep converting new ones as they appear",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := app.runWatch(cmd.Context(), cmd, settle)
			if err != nil && cmd.Context().Err() != nil {
				app.log().Info("watch stopped", zap.NamedError("reason", cmd.Context().Err()))
				return nil
			}
			return err
		},
	}

	cmd.Flags().DurationVar(&settle, "settle", settle, "Quiet period before a new file is considered complete")
	return cmd
}

// runWatch registers the watches before the initial scan, so videos that
// arrive while the existing ones are converted still produce events. A
// rescan after the batch queues anything the session has not seen yet.
func (a *appState) runWatch(ctx context.Context, cmd *cobra.Command, settle time.Duration) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	opts, err := a.batchOptions(cmd.OutOrStdout())
	if err != nil {
		return err
	}

	var session *batch.Session
	w, err := watch.New(watch.Options{
		Root:   opts.InputDir,
		Ext:    opts.Ext,
		Settle: settle,
		Handler: func(ctx context.Context, path string) error {
			if session.Handled(path) {
				a.log().Debug("already converted, skipping", zap.String("path", path))
				return nil
			}
			_, err := session.Process(ctx, path)
			return err
		},
		Logger: a.log(),
	})
	if err != nil {
		return err
	}
	defer w.Close()

	files, err := discover.Find(opts.InputDir, opts.Ext, a.log())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Found %d %s files\n", len(files), discover.NormalizeExt(opts.Ext))

	session, err = batch.NewSession(ctx, opts)
	if err != nil {
		return err
	}

	if len(files) > 0 {
		if _, err := session.RunAll(ctx, files); err != nil {
			return err
		}
	}

	arrived, err := discover.Find(opts.InputDir, opts.Ext, a.log())
	if err != nil {
		return err
	}
	for _, path := range arrived {
		if !session.Handled(path) {
			a.log().Info("queueing video that arrived during the initial batch", zap.String("path", path))
			w.Queue(path)
		}
	}

	return w.Run(ctx)
}
