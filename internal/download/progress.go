package download

import (
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

// newByteBar returns nil when progress is off or the size is unknown.
func newByteBar(enabled bool, total int64, description string) *progressbar.ProgressBar {
	if !enabled || total <= 0 {
		return nil
	}

	return progressbar.NewOptions64(
		total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(20),
		progressbar.OptionShowBytes(true),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)
}
