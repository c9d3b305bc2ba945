package models

// ConditionCategory says which supervision period a condition belongs to.
// AP conditions lapse once only the PSS period remains; PSS conditions
// survive for the whole top-up-supervision window.
type ConditionCategory string

const (
	ConditionAP  ConditionCategory = "AP"
	ConditionPSS ConditionCategory = "PSS"
)

// ConditionSource distinguishes policy-sourced additional conditions from
// free-text bespoke ones. Standard conditions are part of the licence
// template and are never removed by the expiry job.
type ConditionSource string

const (
	ConditionStandard   ConditionSource = "STANDARD"
	ConditionAdditional ConditionSource = "ADDITIONAL"
	ConditionBespoke    ConditionSource = "BESPOKE"
)

// Condition is one supervision condition attached to a licence.
type Condition struct {
	ID       int64             `json:"id"`
	Code     string            `json:"code,omitempty"`
	Category ConditionCategory `json:"category"`
	Source   ConditionSource   `json:"source"`
	Text     string            `json:"text"`
	Sequence int               `json:"sequence"`
}

// Removable reports whether the AP-period condition should be dropped once
// the licence is in its PSS-only period.
func (c Condition) Removable() bool {
	return c.Category == ConditionAP &&
		(c.Source == ConditionAdditional || c.Source == ConditionBespoke)
}
