package shrink_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/book-expert/pdf-tools/internal/shrink"
)

func TestHumanSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		want string
		in   float64
	}{
		{in: 0, want: "0.0 B"},
		{in: 512, want: "512.0 B"},
		{in: 1536, want: "1.5 KB"},
		{in: 5 * 1024 * 1024, want: "5.0 MB"},
		{in: 3 * 1024 * 1024 * 1024, want: "3.0 GB"},
		{in: 2 * 1024 * 1024 * 1024 * 1024, want: "2.0 TB"},
		{in: -300, want: "-300.0 B"},
		{in: -2048, want: "-2.0 KB"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, shrink.HumanSize(tc.in), tc.in)
	}
}

func TestReport(t *testing.T) {
	t.Parallel()

	report := shrink.Report{
		InputPath:     "in.pdf",
		OutputPath:    "in.shrink.pdf",
		OriginalBytes: 4096,
		OutputBytes:   1024,
	}

	assert.Equal(t, int64(3072), report.SavedBytes())
	assert.InDelta(t, 75.0, report.SavedPercent(), 1e-9)
	assert.Equal(t,
		"Input : in.pdf (4.0 KB)\nOutput: in.shrink.pdf (1.0 KB)\nSaved : 3.0 KB  (75.0% reduction)",
		report.String(),
	)

	grown := shrink.Report{OriginalBytes: 100, OutputBytes: 150}
	assert.Equal(t, int64(-50), grown.SavedBytes())
	assert.InDelta(t, -50.0, grown.SavedPercent(), 1e-9)

	assert.InDelta(t, 0.0, shrink.Report{}.SavedPercent(), 0)
}
