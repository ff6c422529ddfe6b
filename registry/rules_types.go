package registry

// RuleInput is the operator-facing payload for creating or updating a
// chemical rule. Updates take effect for future evaluations only in the
// sense that past evaluations are never revisited; the registry itself
// keeps a single current row per chemical.
type RuleInput struct {
	Name             string `json:"name"`
	ActiveIngredient string `json:"activeIngredient"`
	PHIDays          int    `json:"phiDays"`
	Banned           bool   `json:"banned"`
	TargetMarket     string `json:"targetMarket"`
}
