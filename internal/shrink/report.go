package shrink

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Report describes the outcome of one shrink.
type Report struct {
	InputPath     string
	OutputPath    string
	OriginalBytes int64
	OutputBytes   int64
	Pages         int
}

// SavedBytes is OriginalBytes minus OutputBytes; negative when the output grew.
func (r Report) SavedBytes() int64 {
	return r.OriginalBytes - r.OutputBytes
}

// SavedPercent is the size reduction in percent of the original, or 0 for an
// empty original.
func (r Report) SavedPercent() float64 {
	if r.OriginalBytes <= 0 {
		return 0
	}

	return (1 - float64(r.OutputBytes)/float64(r.OriginalBytes)) * 100
}

func (r Report) String() string {
	return fmt.Sprintf(
		"Input : %s (%s)\nOutput: %s (%s)\nSaved : %s  (%.1f%% reduction)",
		r.InputPath,
		HumanSize(float64(r.OriginalBytes)),
		r.OutputPath,
		HumanSize(float64(r.OutputBytes)),
		HumanSize(float64(r.SavedBytes())),
		r.SavedPercent(),
	)
}

// HumanSize formats a byte count with 1024-based units and one decimal, e.g.
// "1.5 MB".
func HumanSize(n float64) string {
	printer := message.NewPrinter(language.English)

	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if math.Abs(n) < 1024 {
			return printer.Sprintf("%.1f %s", n, unit)
		}

		n /= 1024
	}

	return printer.Sprintf("%.1f TB", n)
}
