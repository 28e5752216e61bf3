package batch

import (
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

type fileProgress struct {
	bar  *progressbar.ProgressBar
	once sync.Once
}

func newFileProgress(enabled bool, total int) *fileProgress {
	if !enabled || total <= 0 {
		return &fileProgress{}
	}

	return &fileProgress{bar: progressbar.NewOptions(
		total,
		progressbar.OptionSetDescription("Processing videos"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(20),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)}
}

func (p *fileProgress) describe(name string) {
	if p.bar == nil {
		return
	}
	p.bar.Describe("Processing " + name)
}

func (p *fileProgress) advance() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Add(1)
}

func (p *fileProgress) finish() {
	if p.bar == nil {
		return
	}
	p.once.Do(func() {
		_ = p.bar.Finish()
	})
}
