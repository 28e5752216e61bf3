package cli

import (
	"fmt"
	"strings"

	"github.com/fmueller/voxbatch/internal/platform"
	"github.com/fmueller/voxbatch/internal/whisper"
	"github.com/spf13/cobra"
)

func newSetupCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Download and verify the selected speech model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			modelDir, err := platform.ResolveModelDir(app.cfg.ModelDir)
			if err != nil {
				return err
			}

			resolved, err := whisper.EnsureModel(cmd.Context(), whisper.LoadOptions{
				Selector:     app.cfg.Model,
				ModelDir:     modelDir,
				AutoDownload: true,
				Verify:       true,
				NoProgress:   !app.progressEnabled(),
				Logger:       app.log(),
				Fetch:        app.fetchFn,
			})
			if err != nil {
				return err
			}
			if resolved.IsCustomPath {
				return fmt.Errorf("setup expects a named model (%s); got custom path %s", strings.Join(whisper.Selectors(), "|"), resolved.Path)
			}

			if resolved.Fetched {
				fmt.Fprintf(cmd.OutOrStdout(), "Model %s installed at %s\n", resolved.Label(), resolved.Path)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Model %s already present at %s\n", resolved.Label(), resolved.Path)
			return nil
		},
	}
}
