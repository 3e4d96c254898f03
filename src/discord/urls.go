package discord

import (
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`<?https?://[^\s\[\]()<>]+>?`)

// WrapURLsNoEmbed wraps URLs in angle brackets to prevent Discord embeds.
func WrapURLsNoEmbed(text string) string {
	return urlPattern.ReplaceAllStringFunc(text, func(u string) string {
		if strings.HasPrefix(u, "<") && strings.HasSuffix(u, ">") {
			return u
		}
		u = strings.Trim(u, "<>")
		trimmed := strings.TrimRight(u, ".,;:!?")
		return "<" + trimmed + ">" + u[len(trimmed):]
	})
}
