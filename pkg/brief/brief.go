// Package brief normalizes raw marketing input text into structured records
// consumed by the pipeline: the brief itself, the brand guide, and the
// phrase denylist.
//
// Parsing is deliberately lenient. Section headers are matched best-effort
// and case-insensitively, malformed or absent sections produce empty values,
// and no input ever causes a parse error. The structured records are treated
// as immutable once built.
package brief

import "strings"

// Brief is the normalized marketing brief.
type Brief struct {
	// Product is the product or offer name.
	Product string `json:"product"`

	// Category is the product category.
	Category string `json:"category"`

	// Summary is a one-paragraph description of the offer.
	Summary string `json:"summary"`

	// Audience lists target audience segments.
	Audience []string `json:"audience"`

	// ValueProps lists the value propositions to communicate.
	ValueProps []string `json:"valueProps"`

	// ProofPoints lists evidence statements. Numbers used in generated copy
	// must trace back to these.
	ProofPoints []string `json:"proofPoints"`

	// PrimaryCTA is the main call to action.
	PrimaryCTA string `json:"primaryCta"`

	// SecondaryCTA is an optional alternate call to action.
	SecondaryCTA string `json:"secondaryCta"`

	// Raw is the source text the brief was parsed from.
	Raw string `json:"raw"`
}

// Brand is the normalized brand guide.
type Brand struct {
	// Voice describes the brand voice in prose.
	Voice string `json:"voice"`

	// ToneWords lists adjectives the copy should embody.
	ToneWords []string `json:"toneWords"`

	// DoNot lists phrases the brand forbids; any occurrence in a draft is
	// a tone violation.
	DoNot []string `json:"doNot"`

	// Raw is the source text the guide was parsed from.
	Raw string `json:"raw"`
}

// Denylist is the set of banned phrases.
type Denylist struct {
	// Phrases are matched case-insensitively as substrings.
	Phrases []string `json:"phrases"`

	// Raw is the source text the list was parsed from.
	Raw string `json:"raw"`
}

// Inputs bundles the three normalized inputs for one run.
type Inputs struct {
	Brief    Brief    `json:"brief"`
	Brand    Brand    `json:"brand"`
	Denylist Denylist `json:"denylist"`
}

// CombinedRaw returns the concatenated raw input text, in the form the
// guardrail engine screens before any generation occurs.
func (in Inputs) CombinedRaw() string {
	var b strings.Builder
	b.WriteString(in.Brief.Raw)
	b.WriteString("\n")
	b.WriteString(in.Brand.Raw)
	b.WriteString("\n")
	b.WriteString(in.Denylist.Raw)
	return b.String()
}

// HasNumericProof reports whether any proof point contains a digit. The
// review engine uses this to require numeric evidence in drafts.
func (b Brief) HasNumericProof() bool {
	for _, p := range b.ProofPoints {
		if strings.ContainsAny(p, "0123456789") {
			return true
		}
	}
	return false
}

// CoreFactsPresent reports whether the brief carries the facts every
// acceptable draft set must be grounded in: a product name, a summary,
// and at least one value proposition.
func (b Brief) CoreFactsPresent() bool {
	return strings.TrimSpace(b.Product) != "" &&
		strings.TrimSpace(b.Summary) != "" &&
		len(b.ValueProps) > 0
}
