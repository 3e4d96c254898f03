package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Status is the review state of an application.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// ApplicationID is the store-assigned key. PostgREST hands back bigint keys as
// JSON numbers, the gorm store uses UUID strings; both decode into the same type.
type ApplicationID string

func (id *ApplicationID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ApplicationID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("application id: %w", err)
	}
	*id = ApplicationID(n.String())
	return nil
}

func (id ApplicationID) String() string { return string(id) }

// Application is a moderator-test submission tracked through review.
type Application struct {
	ID              ApplicationID `gorm:"primaryKey;size:36" json:"id"`
	DiscordID       string        `gorm:"size:32;index;not null" json:"discord_id"`
	DiscordUsername string        `gorm:"size:64;not null" json:"discord_username"`
	Score           int           `json:"score"`
	TotalQuestions  int           `json:"total_questions"`
	CorrectAnswers  int           `json:"correct_answers"`
	WrongAnswers    int           `json:"wrong_answers"`
	ConversationLog string        `gorm:"type:text" json:"conversation_log"`
	Answers         string        `gorm:"type:text" json:"answers"`
	Status          Status        `gorm:"size:16;index;not null;default:pending" json:"status"`
	ReviewedBy      string        `gorm:"size:64" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time    `json:"reviewed_at,omitempty"`
	RejectionReason string        `gorm:"type:text" json:"rejection_reason,omitempty"`
	ReviewNotes     string        `gorm:"type:text" json:"review_notes,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// TableName keeps the gorm table aligned with the hosted schema.
func (Application) TableName() string { return "applications" }

// Submission is the intake payload; the store assigns id, status and timestamps.
type Submission struct {
	DiscordID       string `json:"discord_id" binding:"required,max=32"`
	DiscordUsername string `json:"discord_username" binding:"required,max=64"`
	Score           int    `json:"score" binding:"min=0"`
	TotalQuestions  int    `json:"total_questions" binding:"min=0"`
	CorrectAnswers  int    `json:"correct_answers" binding:"min=0"`
	WrongAnswers    int    `json:"wrong_answers" binding:"min=0"`
	ConversationLog string `json:"conversation_log"`
	Answers         string `json:"answers"`
}

// Transition is the set of columns written when an application leaves pending.
type Transition struct {
	Status          Status
	ReviewedBy      string
	ReviewedAt      time.Time
	RejectionReason string
	ReviewNotes     string
}

// Columns renders t as a column patch. updated_at always tracks reviewed_at.
func (t Transition) Columns() map[string]any {
	cols := map[string]any{
		"status":      string(t.Status),
		"reviewed_by": t.ReviewedBy,
		"reviewed_at": t.ReviewedAt.UTC(),
		"updated_at":  t.ReviewedAt.UTC(),
	}
	if t.RejectionReason != "" {
		cols["rejection_reason"] = t.RejectionReason
	}
	if t.ReviewNotes != "" {
		cols["review_notes"] = t.ReviewNotes
	}
	return cols
}

// ListFilter narrows an application listing.
type ListFilter struct {
	Status Status
	Limit  int
	Offset int
}

// Setting represents a configuration setting stored in the database
type Setting struct {
	Name  string `gorm:"primaryKey;size:64"`
	Value string `gorm:"type:text;not null"`
}

// Action names a review decision.
type Action string

const (
	ActionAccept Action = "accept"
	ActionReject Action = "reject"
)

// TransitionEvent is the audit record emitted after every handled transition.
type TransitionEvent struct {
	ApplicationID   ApplicationID `json:"application_id"`
	DiscordID       string        `json:"discord_id"`
	DiscordUsername string        `json:"discord_username"`
	Action          Action        `json:"action"`
	Reviewer        string        `json:"reviewer"`
	RoleAssigned    bool          `json:"role_assigned"`
	AlreadyHadRole  bool          `json:"already_had_role"`
	DMSent          bool          `json:"dm_sent"`
	IsTestIdentity  bool          `json:"is_test_identity"`
	Committed       bool          `json:"committed"`
	Reason          string        `json:"reason,omitempty"`
	Error           string        `json:"error,omitempty"`
	At              time.Time     `json:"at"`
}
