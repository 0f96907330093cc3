package catalog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const searchableTextBudget = 2000

var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]*>`)
	htmlEntityPattern = regexp.MustCompile(`&(nbsp|amp|quot|lt|gt|laquo|raquo|#\d+);`)
	whitespacePattern = regexp.MustCompile(`\s+`)

	// Matches a dosage token such as "500мг", "2,5 мг", "100 ml". A trailing
	// letter or digit disqualifies the unit ("500грн" is not "500г"); \b is
	// not usable here because RE2 word boundaries are ASCII-only.
	dosagePattern = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(мкг|мг|мл|ме|г|mcg|mg|ml|iu|g)(?:[^\pL\d]|$)`)

	// Upstream text fields occasionally carry literal placeholder junk.
	placeholders = []string{"null", "undefined", "n/a", "-", "—"}
)

// latinUnits maps Latin dosage unit spellings to their Cyrillic canonical
// form used across the catalog.
var latinUnits = map[string]string{
	"mg":  "мг",
	"ml":  "мл",
	"g":   "г",
	"mcg": "мкг",
	"iu":  "ме",
}

// categoryLabels maps the upstream numeric category code to a search-facing
// label. Unknown codes fall back to "general".
var categoryLabels = map[int]string{
	1:  "analgesics",
	2:  "antibiotics",
	3:  "antivirals",
	4:  "cardiovascular",
	5:  "gastrointestinal",
	6:  "dermatology",
	7:  "vitamins",
	8:  "allergy",
	9:  "respiratory",
	10: "pediatric",
	11: "medical_devices",
	12: "hygiene",
}

// DefaultCategory is used when the upstream category code is unknown.
const DefaultCategory = "general"

// prescriptionKeywords flag product names that indicate a prescription-only
// medicine. The heuristic errs toward false negatives; the catalog has no
// authoritative flag upstream.
var prescriptionKeywords = []string{
	"антибиотик", "амоксициллин", "азитромицин", "цефтриаксон",
	"рецепт", "инсулин", "трамадол", "кодеин", "преднизолон",
	"antibiotic", "amoxicillin", "insulin",
}

// CleanText strips HTML tags, entities, and placeholder artifacts from an
// upstream text field and collapses whitespace.
func CleanText(s string) string {
	s = htmlTagPattern.ReplaceAllString(s, " ")
	s = htmlEntityPattern.ReplaceAllString(s, " ")
	s = whitespacePattern.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	for _, p := range placeholders {
		if strings.EqualFold(s, p) {
			return ""
		}
	}
	return s
}

// ExtractDosage extracts the first dosage token from a product name and
// returns it in normalized form ("500мг"). Latin units are mapped to their
// Cyrillic spelling and decimal commas to points. Returns "" when the name
// carries no dosage.
func ExtractDosage(name string) string {
	m := dosagePattern.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	value := strings.ReplaceAll(m[1], ",", ".")
	unit := strings.ToLower(m[2])
	if cyr, ok := latinUnits[unit]; ok {
		unit = cyr
	}
	return value + unit
}

// ParseDosage splits a normalized dosage token into its numeric value and
// unit. ok is false for an empty or malformed token.
func ParseDosage(dosage string) (value float64, unit string, ok bool) {
	m := dosagePattern.FindStringSubmatch(dosage)
	if m == nil {
		return 0, "", false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return 0, "", false
	}
	unit = strings.ToLower(m[2])
	if cyr, exists := latinUnits[unit]; exists {
		unit = cyr
	}
	return v, unit, true
}

// CategoryLabel maps an upstream numeric category code to its label.
func CategoryLabel(code int) string {
	if label, ok := categoryLabels[code]; ok {
		return label
	}
	return DefaultCategory
}

// RequiresPrescription applies the keyword heuristic over the product name.
func RequiresPrescription(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range prescriptionKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// BuildSearchableText concatenates the embeddable product fields into the
// text used as embedding input, truncated to a fixed character budget.
func BuildSearchableText(name, generic, manufacturer, ingredients, description string) string {
	parts := make([]string, 0, 5)
	for _, p := range []string{name, generic, manufacturer, ingredients, description} {
		if cleaned := CleanText(p); cleaned != "" {
			parts = append(parts, cleaned)
		}
	}
	text := strings.Join(parts, ". ")
	return TruncateText(text, searchableTextBudget)
}

// TruncateText cuts s to at most max runes without splitting a rune.
func TruncateText(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// DosageMatch classifies how closely a candidate dosage matches a query
// dosage: "exact" for the same value and unit, "close" within ±20%, and ""
// otherwise. Unit mismatches never match.
func DosageMatch(queryValue float64, queryUnit, candidate string) string {
	cv, cu, ok := ParseDosage(candidate)
	if !ok || queryValue <= 0 {
		return ""
	}
	if cu != queryUnit {
		return ""
	}
	if cv == queryValue {
		return "exact"
	}
	diff := cv - queryValue
	if diff < 0 {
		diff = -diff
	}
	// Relative to the larger value, so 400мг vs 500мг reads as 20% apart
	// regardless of which side is the query.
	base := cv
	if queryValue > base {
		base = queryValue
	}
	if diff/base <= 0.20 {
		return "close"
	}
	return ""
}

// FormatDosage renders a value/unit pair back into the normalized token form.
func FormatDosage(value float64, unit string) string {
	return strconv.FormatFloat(value, 'f', -1, 64) + unit
}

// String implements fmt.Stringer for sync log rows in operational logging.
func (l SyncLog) String() string {
	return fmt.Sprintf("%s sync %s: processed=%d created=%d updated=%d failed=%d in %dms",
		l.Type, l.Status, l.Processed, l.Created, l.Updated, l.Failed, l.DurationMs)
}
