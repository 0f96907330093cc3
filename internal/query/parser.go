// Package query turns free-text pharmacy queries into a structured drug and
// dosage intent and narrows the search candidate set before the vector step.
package query

import (
	"regexp"
	"strings"

	"github.com/vldmrch/pharmsync/internal/catalog"
)

// Parsed is the structured intent extracted from a free-text query. Zero
// values mean the corresponding signal was not detected.
type Parsed struct {
	DrugName       string  `json:"drug_name,omitempty"`
	MatchedVariant string  `json:"drug_variant_matched,omitempty"`
	DosageValue    float64 `json:"dosage_value,omitempty"`
	DosageUnit     string  `json:"dosage_unit,omitempty"`
}

// HasDrug reports whether a drug name was detected.
func (p *Parsed) HasDrug() bool {
	return p.DrugName != ""
}

// HasDosage reports whether a dosage was detected.
func (p *Parsed) HasDosage() bool {
	return p.DosageValue > 0
}

// Dosage returns the detected dosage in normalized token form ("500мг").
func (p *Parsed) Dosage() string {
	if !p.HasDosage() {
		return ""
	}
	return catalog.FormatDosage(p.DosageValue, p.DosageUnit)
}

var bareNumberPattern = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

// Parse extracts the drug-name and dosage intent from a free-text query.
// The drug name is matched against the curated dictionary including
// misspellings and transliteration variants; the longest matching variant
// wins. A bare number defaults to "мг" only when a drug was also detected,
// since only then is a dosage reading plausible.
func Parse(text string) *Parsed {
	parsed := &Parsed{}
	normalized := Normalize(text)
	if normalized == "" {
		return parsed
	}

	parsed.DrugName, parsed.MatchedVariant = matchDrug(normalized)

	if value, unit, ok := catalog.ParseDosage(normalized); ok {
		parsed.DosageValue = value
		parsed.DosageUnit = unit
		return parsed
	}
	if parsed.HasDrug() {
		// Strip the matched variant first so "но-шпа 40" does not read a
		// number out of the drug name itself.
		rest := strings.Replace(normalized, parsed.MatchedVariant, "", 1)
		if m := bareNumberPattern.FindString(rest); m != "" {
			if value, _, ok := catalog.ParseDosage(m + "мг"); ok {
				parsed.DosageValue = value
				parsed.DosageUnit = "мг"
			}
		}
	}
	return parsed
}

// Normalize lowercases the query and folds the character variants that the
// dictionary does not distinguish (ё/е, Ukrainian і/и, apostrophes).
func Normalize(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	replacer := strings.NewReplacer(
		"ё", "е",
		"ї", "и",
		"’", "",
		"'", "",
	)
	return replacer.Replace(s)
}

// matchDrug scans the dictionary for the longest variant, brand, or
// canonical name contained in the normalized query.
func matchDrug(normalized string) (canonical, variant string) {
	best := ""
	bestCanonical := ""
	consider := func(term, generic string) {
		if len(term) > len(best) && strings.Contains(normalized, term) {
			best = term
			bestCanonical = generic
		}
	}
	for generic := range drugVariants {
		consider(generic, generic)
		for _, v := range drugVariants[generic] {
			consider(strings.ToLower(v), generic)
		}
	}
	for brand, generic := range brandToGeneric {
		consider(brand, generic)
	}
	return bestCanonical, best
}
