package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	ruleforge "github.com/ruleforge/ruleforge-go"
)

// progressRenderer draws analysis progress on stderr. On a terminal it
// redraws a single-line bar in place; otherwise it prints one plain line
// per event so logs stay readable.
type progressRenderer struct {
	out   *os.File
	quiet bool
	tty   bool
	width int
	drew  bool
}

func newProgressRenderer(out *os.File, quiet bool) *progressRenderer {
	r := &progressRenderer{out: out, quiet: quiet}
	if quiet || out == nil {
		return r
	}
	fd := out.Fd()
	r.tty = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	if r.tty {
		r.width = 80
		if w, _, err := term.GetSize(int(fd)); err == nil && w > 0 {
			r.width = w
		}
	}
	return r
}

func (r *progressRenderer) Update(ev ruleforge.ProgressEvent) {
	if r.quiet || r.out == nil {
		return
	}
	pct := clampPercent(ev.Progress)
	if !r.tty {
		fmt.Fprintf(r.out, "%-12s %3d%%  %s\n", ev.Stage, pct, ev.Message)
		return
	}
	fmt.Fprintf(r.out, "\r%s", progressLine(string(ev.Stage), pct, ev.Message, r.width))
	r.drew = true
}

// Finish moves off the bar line so whatever prints next starts clean.
func (r *progressRenderer) Finish() {
	if r.drew {
		fmt.Fprintln(r.out)
	}
}

// clampPercent bounds server-sent progress for display. The SDK passes
// values through untouched; only the rendering clamps.
func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

const barWidth = 20

// progressLine renders one fixed-width bar line, truncated and padded to
// the terminal width so redraws fully overwrite the previous frame.
func progressLine(stage string, pct int, message string, width int) string {
	filled := pct * barWidth / 100
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", barWidth-filled)
	line := fmt.Sprintf("[%s] %3d%% %s", bar, pct, stage)
	if message != "" {
		line += ": " + message
	}
	if width <= 0 {
		return line
	}
	line = runewidth.Truncate(line, width-1, "…")
	return runewidth.FillRight(line, width-1)
}
