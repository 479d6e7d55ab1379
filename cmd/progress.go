package cmd

import (
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// stageProgress draws one bar per reduction stage. A nil writer disables it.
type stageProgress struct {
	out   io.Writer
	stage string
	bar   *progressbar.ProgressBar
}

func newStageProgress(out io.Writer) *stageProgress {
	return &stageProgress{out: out}
}

// progressWriter returns stderr when it is a terminal, nil otherwise.
func progressWriter() io.Writer {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return os.Stderr
	}
	return nil
}

// Report matches projection.ProgressFunc.
func (p *stageProgress) Report(stage string, done, total int) {
	if p.out == nil || total <= 0 {
		return
	}
	if p.bar == nil || stage != p.stage {
		p.Finish()
		p.stage = stage
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionSetDescription("umap "+stage),
			progressbar.OptionSetWidth(32),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}
	_ = p.bar.Set(done)
}

func (p *stageProgress) Finish() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
	p.bar = nil
}
