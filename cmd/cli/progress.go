package cli

import (
	"io"

	"github.com/pterm/pterm"

	"github.com/anstrom/netprobe/internal/scanning"
)

// progressBar draws scan progress on a terminal. Snapshots arrive from a
// single goroutine, and Stop is called after the scan has returned, so no
// locking is needed.
type progressBar struct {
	title string
	out   io.Writer
	bar   *pterm.ProgressbarPrinter
	last  int
}

func newProgressBar(title string, out io.Writer) *progressBar {
	return &progressBar{title: title, out: out}
}

// Update is a scanning.ProgressFunc. The bar starts on the first snapshot,
// when the total is known. Dropped snapshots are caught up on the next one.
func (p *progressBar) Update(s scanning.Snapshot) {
	if p.bar == nil {
		bar, err := pterm.DefaultProgressbar.
			WithTotal(s.Total).
			WithTitle(p.title).
			WithWriter(p.out).
			WithRemoveWhenDone(true).
			Start()
		if err != nil {
			return
		}
		p.bar = bar
	}
	if delta := s.Completed - p.last; delta > 0 {
		p.bar.Add(delta)
		p.last = s.Completed
	}
}

// Stop removes the bar.
func (p *progressBar) Stop() {
	if p.bar != nil {
		_, _ = p.bar.Stop()
	}
}

// progressFor returns the observer for a scan, or nil when progress is off.
func progressFor(enabled bool, title string, out io.Writer) (*progressBar, scanning.ProgressFunc) {
	if !enabled {
		return nil, nil
	}
	p := newProgressBar(title, out)
	return p, p.Update
}
