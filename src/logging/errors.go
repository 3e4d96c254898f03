package logging

import (
	"errors"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/stake-plus/mod-review/src/supabase"
)

// IsRateLimit reports whether err came from a 429 on Discord or the record store.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil && rest.Response.StatusCode == http.StatusTooManyRequests {
		return true
	}
	var rl *discordgo.RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var apiErr *supabase.APIError
	return errors.As(err, &apiErr) && apiErr.RateLimited()
}
