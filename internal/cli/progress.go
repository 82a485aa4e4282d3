package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// barProgress renders one progress bar per active stage.
type barProgress struct {
	mu   sync.Mutex
	out  io.Writer
	bars map[string]*progressbar.ProgressBar
}

func newBarProgress(out io.Writer) *barProgress {
	return &barProgress{out: out, bars: make(map[string]*progressbar.ProgressBar)}
}

func (p *barProgress) Start(stage string, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if total <= 0 {
		return
	}
	out := p.out
	p.bars[stage] = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(out),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription(fmt.Sprintf("[cyan]%-8s[reset]", stage)),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(out)
		}),
	)
}

func (p *barProgress) Add(stage string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if bar, ok := p.bars[stage]; ok {
		_ = bar.Add(n)
	}
}

func (p *barProgress) Finish(stage string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if bar, ok := p.bars[stage]; ok {
		_ = bar.Finish()
		delete(p.bars, stage)
	}
}
