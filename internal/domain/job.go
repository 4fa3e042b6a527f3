package domain

import (
	"strings"
	"time"
)

// Style enumerates the supported thumbnail visual styles.
type Style string

const (
	StyleBoldGraphic    Style = "Bold & Graphic"
	StyleTechFuturistic Style = "Tech/Futuristic"
	StyleMinimalist     Style = "Minimalist"
	StylePhotorealistic Style = "Photorealistic"
	StyleIllustrated    Style = "Illustrated"
)

// Styles lists every supported style in presentation order.
func Styles() []Style {
	return []Style{
		StyleBoldGraphic,
		StyleTechFuturistic,
		StyleMinimalist,
		StylePhotorealistic,
		StyleIllustrated,
	}
}

// Valid reports whether the style belongs to the supported set.
func (s Style) Valid() bool {
	switch s {
	case StyleBoldGraphic, StyleTechFuturistic, StyleMinimalist, StylePhotorealistic, StyleIllustrated:
		return true
	}
	return false
}

// ColorScheme enumerates optional palette presets.
type ColorScheme string

const (
	ColorSchemeVibrant    ColorScheme = "vibrant"
	ColorSchemeSunset     ColorScheme = "sunset"
	ColorSchemeForest     ColorScheme = "forest"
	ColorSchemeNeon       ColorScheme = "neon"
	ColorSchemePurple     ColorScheme = "purple"
	ColorSchemeMonochrome ColorScheme = "monochrome"
	ColorSchemeOcean      ColorScheme = "ocean"
	ColorSchemePastel     ColorScheme = "pastel"
)

// Valid reports whether the color scheme belongs to the supported set. The
// empty scheme is valid because the field is optional.
func (c ColorScheme) Valid() bool {
	switch c {
	case "", ColorSchemeVibrant, ColorSchemeSunset, ColorSchemeForest, ColorSchemeNeon,
		ColorSchemePurple, ColorSchemeMonochrome, ColorSchemeOcean, ColorSchemePastel:
		return true
	}
	return false
}

// AspectRatio enumerates supported output aspect ratios.
type AspectRatio string

const (
	AspectWide     AspectRatio = "16:9"
	AspectSquare   AspectRatio = "1:1"
	AspectVertical AspectRatio = "9:16"
	AspectClassic  AspectRatio = "4:3"
)

// NormalizeAspectRatio sanitizes free-form input into a supported ratio,
// defaulting to 16:9.
func NormalizeAspectRatio(raw string) AspectRatio {
	switch AspectRatio(strings.TrimSpace(raw)) {
	case AspectSquare:
		return AspectSquare
	case AspectVertical:
		return AspectVertical
	case AspectClassic:
		return AspectClassic
	default:
		return AspectWide
	}
}

// Size returns the target pixel dimensions for the ratio.
func (a AspectRatio) Size() (width, height int) {
	switch a {
	case AspectSquare:
		return 1024, 1024
	case AspectVertical:
		return 1024, 1792
	case AspectClassic:
		return 1280, 960
	default:
		return 1792, 1024
	}
}

// JobStatus enumerates the thumbnail generation lifecycle states.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusGenerating JobStatus = "generating"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Thumbnail is a user-initiated generation job together with its result. The
// composed prompt is the exact string sent to providers, persisted once the
// job transitions to generating. ImageURL is non-empty iff Status is
// completed; Provider then names the adapter that produced the asset.
type Thumbnail struct {
	ID             string
	OwnerID        string
	Title          string
	Style          Style
	ColorScheme    ColorScheme
	AspectRatio    AspectRatio
	UserPrompt     string
	TextOverlay    bool
	ComposedPrompt string
	Status         JobStatus
	ImageURL       string
	Provider       string
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
