// Package stats implements the operator dashboard supplementary feature:
// a terminal UI showing live Instance Registry occupancy, built on
// gizak/termui/v3 — a direct dependency that the
// copied snapshot never actually imports anywhere; this gives it a home.
package stats

import (
	"context"
	"fmt"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/webitel/im-thread-gateway/internal/registry"
)

// Run blocks, rendering reg's snapshot every tick until 'q', Ctrl-C, or ctx
// is cancelled (the OnStop path when wired into the server's fx app).
func Run(ctx context.Context, reg *registry.Registry, tick time.Duration) error {
	if err := ui.Init(); err != nil {
		return fmt.Errorf("stats: init termui: %w", err)
	}
	defer ui.Close()

	gauge := widgets.NewGauge()
	gauge.Title = "Connected / Total Threads"
	gauge.SetRect(0, 0, 60, 3)

	info := widgets.NewParagraph()
	info.Title = "Registry"
	info.SetRect(0, 3, 60, 8)

	render := func() {
		s := reg.Snapshot()
		pct := 0
		if s.ThreadCount > 0 {
			pct = s.ConnectedThreads * 100 / s.ThreadCount
		}
		gauge.Percent = pct
		info.Text = fmt.Sprintf("threads: %d\nconnected: %d\noneshot: %d", s.ThreadCount, s.ConnectedThreads, s.OneshotThreads)
		ui.Render(gauge, info)
	}

	render()
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	events := ui.PollEvents()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-events:
			switch e.ID {
			case "q", "<C-c>":
				return nil
			}
		case <-ticker.C:
			render()
		}
	}
}
