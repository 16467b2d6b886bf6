// Package textproc turns free-text item descriptions into comparable forms.
//
// Descriptions arrive from procurement scrapes and sale records with
// inconsistent casing, punctuation and filler words. Normalize produces a
// canonical string, Tokenize reduces it to a set of meaningful tokens and
// ClassifyCategory assigns a coarse product category by keyword hits.
//
// # Matching
//
// Overlap computes the Jaccard index between two token sets. It is the basis
// of description matching in the matching package.
//
//	a := textproc.Tokenize("Stryker Restraint Kit, Large")
//	b := textproc.Tokenize("STRYKER restraint kit (lg)")
//	score := textproc.Overlap(a, b)
package textproc
