package models

import "slices"

// ClassMap translates predicted class indices into the evaluation taxonomy.
// It is partial: indices without an entry pass through unchanged.
type ClassMap map[int]int

// Remap returns the evaluation index for a predicted class.
func (m ClassMap) Remap(class int) int {
	if mapped, ok := m[class]; ok {
		return mapped
	}
	return class
}

// MergeRule lets one coarse predicted class stand in for several fine-grained
// ground-truth classes. A nil One disables the rule.
type MergeRule struct {
	One  *int  `json:"one"  yaml:"one"`
	Many []int `json:"many" yaml:"many"`
}

// NewMergeRule returns a rule under which class one matches any of many.
func NewMergeRule(one int, many ...int) MergeRule {
	return MergeRule{One: &one, Many: many}
}

// Enabled reports whether the rule has a coarse class.
func (r MergeRule) Enabled() bool {
	return r.One != nil
}

// Coerce returns the class a prediction takes on when compared against a
// ground-truth box of class truth: the truth's class when predicted is the
// coarse class and truth is one of the fine classes, predicted otherwise.
func (r MergeRule) Coerce(predicted, truth int) int {
	if r.One == nil || predicted != *r.One {
		return predicted
	}
	if slices.Contains(r.Many, truth) {
		return truth
	}
	return predicted
}
