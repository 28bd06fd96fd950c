package cli

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/meigma/dataanchor"
)

// progressMode returns the configured progress mode: "auto", "tty", or "plain".
func progressMode() string {
	cfg, err := settings()
	if err != nil {
		return "auto"
	}
	switch cfg.Progress {
	case "auto", "tty", "plain":
		return cfg.Progress
	default:
		return "auto"
	}
}

// shouldShowProgress returns true if progress bars should be displayed.
func shouldShowProgress() bool {
	switch progressMode() {
	case "plain":
		return false
	case "tty":
		return true
	default:
		return term.IsTerminal(int(os.Stderr.Fd()))
	}
}

// progressBar renders byte progress on a single terminal line.
type progressBar struct {
	mu          sync.Mutex
	out         io.Writer
	bar         progress.Model
	description string
	drawn       bool
}

func newProgressBar(out io.Writer, description string) *progressBar {
	return &progressBar{
		out:         out,
		bar:         progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		description: description,
	}
}

// Set redraws the bar at done of total bytes.
func (p *progressBar) Set(done, total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ratio := 1.0
	if total > 0 {
		ratio = float64(done) / float64(total)
	}
	fmt.Fprintf(p.out, "\r%s %s %s/%s", p.description, p.bar.ViewAs(ratio),
		humanize.IBytes(uint64(done)), humanize.IBytes(uint64(total)))
	p.drawn = true
}

// Finish ends the progress line.
func (p *progressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.drawn {
		fmt.Fprintln(p.out)
	}
}

// newUploadProgress creates a progress callback for uploads.
// Returns the callback and a finish function to call when done.
// Returns nil callback if progress should not be shown.
func newUploadProgress() (callback dataanchor.ProgressCallback, finish func()) {
	if !shouldShowProgress() {
		return nil, func() {}
	}

	bar := newProgressBar(os.Stderr, "Anchoring")
	callback = func(event dataanchor.ProgressEvent) {
		bar.Set(event.BytesTransferred, event.TotalBytes)
	}
	return callback, bar.Finish
}
