// Package progress defines the observer the engines report progress to, and a
// terminal progress bar that implements it.
package progress

import (
	"io"
	"os"

	"github.com/cheggaaa/pb/v3"
)

// Observer receives progress updates. Engines call Progress synchronously on the
// calling goroutine with a monotonically increasing done count out of total.
type Observer interface {
	Progress(done, total int)
}

// Func adapts an ordinary function to the Observer interface.
type Func func(done, total int)

// Progress calls f(done, total).
func (f Func) Progress(done, total int) { f(done, total) }

type discard struct{}

func (discard) Progress(int, int) {}

// Discard is an Observer that ignores every update.
var Discard Observer = discard{}

// OrDiscard returns observer, or Discard when observer is nil.
func OrDiscard(observer Observer) Observer {
	if observer == nil {
		return Discard
	}

	return observer
}

const barTemplate = `{{ string . "label" }} {{ bar . " " "━" "━" " " " "}} {{counters .}} {{percent .}} {{etime .}}`

// Bar renders updates as a pb/v3 progress bar. The bar starts on the first
// update and finishes when done reaches total.
type Bar struct {
	bar    *pb.ProgressBar
	output io.Writer
	label  string
}

// NewBar returns a Bar writing to output, labelled with label. A nil output
// writes to os.Stdout.
func NewBar(output io.Writer, label string) *Bar {
	if output == nil {
		output = os.Stdout
	}

	return &Bar{output: output, label: label}
}

// Progress implements Observer.
func (b *Bar) Progress(done, total int) {
	if b.bar == nil {
		b.bar = pb.New(total).
			SetTemplateString(barTemplate).
			SetWriter(b.output).
			Set("label", b.label).
			Start()
	}

	b.bar.SetTotal(int64(total))
	b.bar.SetCurrent(int64(done))

	if done >= total {
		b.Finish()
	}
}

// Finish stops the bar if it is running.
func (b *Bar) Finish() {
	if b.bar == nil {
		return
	}

	b.bar.Finish()
	b.bar = nil
}
