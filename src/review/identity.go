package review

import "strings"

// IdentityPredicate decides whether an applicant is a synthetic (test/demo/bot) identity.
type IdentityPredicate func(username, discordID string) bool

var syntheticMarkers = []string{"test", "bot", "demo", "fake", "dummy"}

// DefaultPlaceholders are identities the test harness and manual seeding use.
var DefaultPlaceholders = []string{
	"unknown",
	"user",
	"username",
	"placeholder",
	"anonymous",
	"123456789",
	"000000000000000000",
}

// MinDiscordIDLength is the shortest id treated as a real account.
const MinDiscordIDLength = 5

// NewIdentityPredicate builds the marker/placeholder/length rule with extra placeholders.
func NewIdentityPredicate(placeholders []string) IdentityPredicate {
	known := make(map[string]struct{}, len(placeholders))
	for _, p := range placeholders {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			known[p] = struct{}{}
		}
	}
	return func(username, discordID string) bool {
		name := strings.ToLower(strings.TrimSpace(username))
		id := strings.ToLower(strings.TrimSpace(discordID))

		for _, m := range syntheticMarkers {
			if strings.Contains(name, m) || strings.Contains(id, m) {
				return true
			}
		}
		if _, ok := known[name]; ok {
			return true
		}
		if _, ok := known[id]; ok {
			return true
		}
		return len(id) < MinDiscordIDLength
	}
}

// IsSyntheticIdentity applies the default rule.
var IsSyntheticIdentity = NewIdentityPredicate(DefaultPlaceholders)
