package review

import "strings"

// Messages is the DM copy sent to applicants. {reason} and {username} are substituted.
type Messages struct {
	AcceptTitle string `yaml:"accept_title"`
	AcceptBody  string `yaml:"accept_body"`
	AcceptColor int    `yaml:"accept_color"`
	RejectTitle string `yaml:"reject_title"`
	RejectBody  string `yaml:"reject_body"`
	RejectColor int    `yaml:"reject_color"`
}

// DefaultRejectionReason is stored when an admin rejects without a reason.
const DefaultRejectionReason = "No reason provided"

// DefaultMessages returns the stock copy.
func DefaultMessages() Messages {
	return Messages{
		AcceptTitle: "Moderator application accepted",
		AcceptBody:  "Congratulations {username}! Your moderator application was accepted and the moderator role has been added to your account. Welcome to the team.",
		AcceptColor: 0x57F287,
		RejectTitle: "Moderator application update",
		RejectBody:  "Hi {username}, thank you for taking the moderator test. Your application was not accepted this time.\n\n**Reason:** {reason}",
		RejectColor: 0xED4245,
	}
}

// withDefaults fills blank fields from DefaultMessages.
func (m Messages) withDefaults() Messages {
	d := DefaultMessages()
	if m.AcceptTitle == "" {
		m.AcceptTitle = d.AcceptTitle
	}
	if m.AcceptBody == "" {
		m.AcceptBody = d.AcceptBody
	}
	if m.AcceptColor == 0 {
		m.AcceptColor = d.AcceptColor
	}
	if m.RejectTitle == "" {
		m.RejectTitle = d.RejectTitle
	}
	if m.RejectBody == "" {
		m.RejectBody = d.RejectBody
	}
	if m.RejectColor == 0 {
		m.RejectColor = d.RejectColor
	}
	return m
}

func render(tmpl, username, reason string) string {
	return strings.NewReplacer("{username}", username, "{reason}", reason).Replace(tmpl)
}
