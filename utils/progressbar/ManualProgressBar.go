// Package progressbar implements functionality of printing a progress
// bar to a terminal window
package progressbar

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// ManualProgressBar implement progress bar functionality that must
// be manually managed. That is, the Display() function must be called
// whenever an updated progress bar should be printed.
//
// ManualProgressBar does not use concurrency.
type ManualProgressBar struct {
	out             io.Writer
	width           float64
	maxProgress     float64
	currentProgress float64
	bar             strings.Builder
	startTime       time.Time
}

// NewManualProgressBar returns a new ManualProgressBar which is width
// characters wide, is full after max increments, and prints to out
func NewManualProgressBar(out io.Writer, width, max int) *ManualProgressBar {
	return &ManualProgressBar{
		out:         out,
		width:       float64(width),
		maxProgress: float64(max),
		startTime:   time.Now(),
	}
}

// Increment increments the internal progress counter
func (p *ManualProgressBar) Increment() {
	if p.currentProgress < p.maxProgress {
		p.currentProgress++
	}
}

// Progress returns the fraction of progress made
func (p *ManualProgressBar) Progress() float64 {
	if p.maxProgress <= 0 {
		return 1
	}
	return p.currentProgress / p.maxProgress
}

// String returns the progress bar without the elapsed time
func (p *ManualProgressBar) String() string {
	p.bar.Reset()
	p.bar.WriteString("|")

	filled := int(p.Progress() * p.width)
	p.bar.WriteString(strings.Repeat("█", filled))
	p.bar.WriteString(strings.Repeat(" ", int(p.width)-filled))
	fmt.Fprintf(&p.bar, "| [%.2f%%]", p.Progress()*100)

	return p.bar.String()
}

// Display overwrites the current terminal line with the progress bar
func (p *ManualProgressBar) Display() {
	fmt.Fprintf(p.out, "\n\033[1A\033[K%v [elapsed: %v]", p.String(),
		time.Since(p.startTime).Truncate(time.Second))
}

// Close ends the line of the progress bar
func (p *ManualProgressBar) Close() {
	fmt.Fprintln(p.out)
}
