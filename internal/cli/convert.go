package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fmueller/voxbatch/internal/batch"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newConvertCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "convert <video-file>",
		Short: "Transcribe a single video file into the output directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.cfg.Normalize(); err != nil {
				return err
			}

			videoPath := args[0]
			info, err := os.Stat(videoPath)
			if err != nil {
				return fmt.Errorf("video file not found: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory; run voxbatch --input %s to convert a tree", videoPath, videoPath)
			}

			opts, err := app.batchOptions(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			opts.InputDir = filepath.Dir(videoPath)

			session, err := batch.NewSession(cmd.Context(), opts)
			if err != nil {
				return err
			}

			stop := startSpinner(app.progressEnabled(), "Transcribing "+filepath.Base(videoPath))
			res, err := session.Process(cmd.Context(), videoPath)
			stop()
			if err != nil {
				return fmt.Errorf("convert %s: %w", videoPath, err)
			}

			if res.Skipped {
				app.log().Info("silence gate skipped transcription", zap.String("path", videoPath))
			}
			return nil
		},
	}
}
