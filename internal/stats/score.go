package stats

// Rule is one indicator in a weighted rule model. Weights within a single
// model sum to 1.0 by convention so the combined score scales to a 0-100
// probability after multiplying by 100.
type Rule struct {
	Name   string
	Met    bool
	Weight float64
}

// WeightedScore sums the weights of all met rules.
func WeightedScore(rules []Rule) float64 {
	var score float64
	for _, r := range rules {
		if r.Met {
			score += r.Weight
		}
	}
	return score
}

// MetRules returns the names of the rules that fired, preserving order.
func MetRules(rules []Rule) []string {
	var names []string
	for _, r := range rules {
		if r.Met {
			names = append(names, r.Name)
		}
	}
	return names
}
