// Package promptgen composes the natural-language prompt sent to image
// generation providers. Composition is deterministic: the same request always
// yields the same prompt, so the persisted composed_prompt is auditable.
package promptgen

import (
	"fmt"
	"strings"

	"thumbnailer/internal/domain"
)

var stylePrompts = map[domain.Style]string{
	domain.StyleBoldGraphic:    "eye-catching thumbnail, bold typography, vibrant colors, expressive facial reaction, dramatic lighting, high contrast, click-worthy composition, professional style",
	domain.StyleTechFuturistic: "futuristic thumbnail, sleek modern design, digital UI elements, glowing accents, holographic effects, cyber-tech aesthetic, sharp lighting, high-tech atmosphere",
	domain.StyleMinimalist:     "minimalist thumbnail, clean layout, simple shapes, limited color palette, plenty of negative space, modern flat design, clear focal point",
	domain.StylePhotorealistic: "photorealistic thumbnail, ultra-realistic lighting, natural skin tones, candid moment, DSLR-style photography, lifestyle realism, shallow depth of field",
	domain.StyleIllustrated:    "illustrated thumbnail, custom digital illustration, stylized characters, bold outlines, vibrant colors, creative cartoon or vector art style",
}

var colorSchemeDescriptions = map[domain.ColorScheme]string{
	domain.ColorSchemeVibrant:    "vibrant and energetic colors, high saturation, bold contrasts, eye-catching palette",
	domain.ColorSchemeSunset:     "warm sunset tones, orange pink and purple hues, soft gradients, cinematic glow",
	domain.ColorSchemeForest:     "natural green tones, earthy colors, calm and organic palette, fresh atmosphere",
	domain.ColorSchemeNeon:       "neon glow effects, electric blues and pinks, cyberpunk lighting, high contrast glow",
	domain.ColorSchemePurple:     "purple-dominant color palette, magenta and violet tones, modern and stylish mood",
	domain.ColorSchemeMonochrome: "black and white color scheme, high contrast, dramatic lighting, timeless aesthetic",
	domain.ColorSchemeOcean:      "cool blue and teal tones, aquatic color palette, fresh and clean atmosphere",
	domain.ColorSchemePastel:     "soft pastel colors, low saturation, gentle tones, calm and friendly aesthetic",
}

// StyleDescription returns the prompt fragment for a style. Unknown styles
// fall back to the bold and graphic fragment so composition never produces an
// empty visual direction.
func StyleDescription(s domain.Style) string {
	if desc, ok := stylePrompts[s]; ok {
		return desc
	}
	return stylePrompts[domain.StyleBoldGraphic]
}

// Compose builds the full provider prompt for a thumbnail request.
func Compose(t *domain.Thumbnail) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Create a %s for: %q.", StyleDescription(t.Style), strings.TrimSpace(t.Title))

	if desc, ok := colorSchemeDescriptions[t.ColorScheme]; ok && t.ColorScheme != "" {
		fmt.Fprintf(&b, " Use a %s color scheme.", desc)
	}
	if extra := strings.TrimSpace(t.UserPrompt); extra != "" {
		fmt.Fprintf(&b, " Additional details: %s.", extra)
	}

	fmt.Fprintf(&b, " The thumbnail should be %s, visually stunning, and designed to maximize click-through rate.", t.AspectRatio)
	if t.TextOverlay {
		b.WriteString(" Leave clear space for a large title text overlay and keep the focal subject off-center.")
	}
	b.WriteString(" Make it bold, professional, and impossible to ignore.")

	return b.String()
}
