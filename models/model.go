// Package models - Class taxonomies and the rules that translate between them.
package models

// Taxonomy identifies the labeling scheme a class index belongs to, for
// example the detector's training labels or the evaluation dataset's categories.
type Taxonomy string

const (
	// TaxonomyPredicted is the label space of the detector output.
	TaxonomyPredicted Taxonomy = "predicted"
	// TaxonomyEvaluation is the label space of the ground-truth annotations.
	TaxonomyEvaluation Taxonomy = "evaluation"
)
