package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("PDFTOOLS_TEST_PORT", "9090")

	assert.Equal(t, "9090", getEnv("PDFTOOLS_TEST_PORT", DefaultPort))
	assert.Equal(t, DefaultPort, getEnv("PDFTOOLS_TEST_UNSET", DefaultPort))
}

func TestGetEnvInt64(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected int64
	}{
		{name: "valid", value: "1024", expected: 1024},
		{name: "empty", value: "", expected: DefaultMaxFileSize},
		{name: "not a number", value: "lots", expected: DefaultMaxFileSize},
		{name: "negative", value: "-5", expected: DefaultMaxFileSize},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("PDFTOOLS_TEST_SIZE", tc.value)
			assert.Equal(t, tc.expected, getEnvInt64("PDFTOOLS_TEST_SIZE", DefaultMaxFileSize))
		})
	}
}
