package shrink

import (
	"strings"

	"github.com/book-expert/pdf-tools/internal/document"
)

const (
	// DefaultDPI is the render resolution used when none is given.
	DefaultDPI = 150
	// DefaultQuality is the JPEG quality used when none is given.
	DefaultQuality = 60
	// MinQuality and MaxQuality bound the JPEG quality.
	MinQuality = 1
	MaxQuality = 100
)

// Settings controls how pages are re-rasterized.
type Settings struct {
	// DPI is the render resolution; the bitmap is dpi/72 pixels per point.
	DPI int
	// Quality is the JPEG quality in [MinQuality, MaxQuality].
	Quality int
	// Grayscale converts every page to single-channel luminance.
	Grayscale bool
}

// DefaultSettings returns the balanced defaults (same as PresetMedium).
func DefaultSettings() Settings {
	return Settings{DPI: DefaultDPI, Quality: DefaultQuality}
}

// Validate reports ErrInvalidParameter for a non-positive DPI or a quality out of
// range.
func (s Settings) Validate() error {
	if s.DPI <= 0 {
		return document.InvalidParameterf("dpi must be positive, got %d", s.DPI)
	}

	if s.Quality < MinQuality || s.Quality > MaxQuality {
		return document.InvalidParameterf(
			"quality must be between %d and %d, got %d",
			MinQuality,
			MaxQuality,
			s.Quality,
		)
	}

	return nil
}

// Preset names a fixed DPI and quality pair.
type Preset string

// Known presets. PresetNone means no preset was chosen.
const (
	PresetNone       Preset = ""
	PresetLight      Preset = "light"
	PresetMedium     Preset = "medium"
	PresetAggressive Preset = "aggressive"
)

// Presets lists the known presets from least to most lossy.
func Presets() []Preset {
	return []Preset{PresetLight, PresetMedium, PresetAggressive}
}

// ParsePreset resolves a preset name case-insensitively. An empty name yields
// PresetNone.
func ParsePreset(name string) (Preset, error) {
	preset := Preset(strings.ToLower(strings.TrimSpace(name)))
	if preset == PresetNone {
		return PresetNone, nil
	}

	if _, err := preset.Settings(); err != nil {
		return PresetNone, err
	}

	return preset, nil
}

// Settings returns the preset's DPI and quality, in color.
func (p Preset) Settings() (Settings, error) {
	switch p {
	case PresetLight:
		return Settings{DPI: 200, Quality: 75}, nil
	case PresetMedium:
		return Settings{DPI: 150, Quality: 60}, nil
	case PresetAggressive:
		return Settings{DPI: 120, Quality: 50}, nil
	case PresetNone:
		return Settings{}, document.InvalidParameterf("no preset selected")
	default:
		return Settings{}, document.InvalidParameterf(
			"unknown preset %q (want light, medium or aggressive)",
			string(p),
		)
	}
}

// ResolveSettings combines a preset or explicit values into validated Settings.
// A zero dpi or quality means the value was not given and takes its default. A
// preset together with an explicit dpi or quality is ErrInvalidParameter.
func ResolveSettings(preset Preset, dpi, quality int, grayscale bool) (Settings, error) {
	if preset != PresetNone {
		if dpi != 0 || quality != 0 {
			return Settings{}, document.InvalidParameterf(
				"preset %q cannot be combined with an explicit dpi or quality",
				string(preset),
			)
		}

		settings, presetErr := preset.Settings()
		if presetErr != nil {
			return Settings{}, presetErr
		}

		settings.Grayscale = grayscale

		return settings, nil
	}

	settings := DefaultSettings()
	settings.Grayscale = grayscale

	if dpi != 0 {
		settings.DPI = dpi
	}

	if quality != 0 {
		settings.Quality = quality
	}

	if validateErr := settings.Validate(); validateErr != nil {
		return Settings{}, validateErr
	}

	return settings, nil
}
