package cli

import (
	"fmt"

	"github.com/fmueller/voxbatch/internal/discover"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newScanCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "scan [dir]",
		Short: "List the video files a batch run would process",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				app.cfg.InputDir = args[0]
			}
			if err := app.cfg.Validate(); err != nil {
				return err
			}

			files, err := discover.Find(app.cfg.InputDir, app.cfg.Extension, app.log())
			if err != nil {
				return err
			}

			for _, path := range files {
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			app.log().Info("scan complete", zap.String("root", app.cfg.InputDir), zap.String("ext", app.cfg.Extension), zap.Int("files", len(files)))
			return nil
		},
	}
}
