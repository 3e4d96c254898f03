package review

import "github.com/stake-plus/mod-review/src/types"

// Outcome is the in-band result of a transition. Every handled case produces one;
// callers render it as-is.
type Outcome struct {
	Success          bool         `json:"success"`
	Committed        bool         `json:"committed"`
	AlreadyProcessed bool         `json:"alreadyProcessed,omitempty"`
	RoleAssigned     bool         `json:"roleAssigned"`
	AlreadyHadRole   bool         `json:"alreadyHadRole,omitempty"`
	DMSent           bool         `json:"dmSent"`
	IsTestIdentity   bool         `json:"isTestIdentity"`
	Status           types.Status `json:"status,omitempty"`
	Code             string       `json:"code,omitempty"`
	Error            string       `json:"error,omitempty"`
}

func failed(code string, err error) *Outcome {
	return &Outcome{Code: code, Error: err.Error()}
}

// appendError folds an automation shortfall into the outcome detail.
func (o *Outcome) appendError(msg string) {
	if o.Error == "" {
		o.Error = msg
		return
	}
	o.Error += "; " + msg
}
