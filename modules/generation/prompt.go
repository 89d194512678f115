package generation

import (
	"strings"

	"styleforge-server/modules/common/model"
)

// styleDirections - art direction appended per style
var styleDirections = map[model.Style]string{
	model.StyleEditorial: "[HIGH-FASHION EDITORIAL]\n" +
		"• Vogue/Harper's Bazaar aesthetic, sophisticated and striking\n" +
		"• Directional lighting that sculpts the subject\n" +
		"• Clean composition, magazine-cover polish",
	model.StyleStreetwear: "[STREETWEAR]\n" +
		"• Urban location, candid energy, bold attitude\n" +
		"• Hard flash or golden-hour daylight\n" +
		"• Oversized silhouettes and texture-rich details",
	model.StyleVintage: "[VINTAGE]\n" +
		"• Film-era color grading with soft grain\n" +
		"• Warm, slightly faded tones and period styling\n" +
		"• Natural window light, nostalgic mood",
}

// BuildPrompt - user prompt plus the art direction of style
func BuildPrompt(userPrompt string, style model.Style, withReference bool) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(userPrompt))
	b.WriteString("\n\n")
	if direction, ok := styleDirections[style]; ok {
		b.WriteString(direction)
		b.WriteString("\n\n")
	}
	if withReference {
		b.WriteString("Use the attached image as the reference subject; keep its identity and proportions.\n")
	}
	b.WriteString("Create ONE photorealistic image.")
	return b.String()
}
