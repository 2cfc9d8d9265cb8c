package intake

import (
	"sort"
	"strings"
	"unicode"
)

// Concern is one of the broker-facing worries a customer can flag.
type Concern struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Keywords []string `json:"-"`
}

// Concern identifiers understood by the default catalogue.
const (
	ConcernTools     = "tools"
	ConcernPublic    = "public"
	ConcernEmployees = "employees"
	ConcernContracts = "contracts"
	ConcernAdvice    = "advice"
	ConcernData      = "data"
	ConcernStock     = "stock"
	ConcernPremises  = "premises"
	ConcernVehicles  = "vehicles"
)

// Keywords match whole words. A trailing "*" marks a stem that matches any
// word starting with it; keywords with spaces match as phrases.
var vocabulary = []Concern{
	{ID: ConcernTools, Label: "Tools & equipment theft", Keywords: []string{"tool", "tools", "toolkit", "equipment", "kit"}},
	{ID: ConcernPublic, Label: "Public injury / property damage", Keywords: []string{"injur*", "third party", "property damage", "public liability"}},
	{ID: ConcernEmployees, Label: "Anyone helps me (casual / labour-only)", Keywords: []string{"employee*", "employer*", "employs", "employing", "labour*", "labor", "laborer*", "subcontract*", "casual"}},
	{ID: ConcernContracts, Label: "Contracts / required cover", Keywords: []string{"contract*", "tender*", "required cover"}},
	{ID: ConcernAdvice, Label: "I give advice / design / specifications", Keywords: []string{"advice", "advise*", "advising", "design*", "specification*", "specify", "specifies"}},
	{ID: ConcernData, Label: "Customer data / online systems", Keywords: []string{"data", "database*", "cyber*", "hack*", "ransom*", "gdpr"}},
	{ID: ConcernStock, Label: "I hold stock / materials", Keywords: []string{"stock", "stocks", "stockist*", "material", "materials", "inventory"}},
	{ID: ConcernPremises, Label: "Premises damage / contents", Keywords: []string{"premises", "workshop*", "office", "offices", "contents", "fire", "fires", "flood*"}},
	{ID: ConcernVehicles, Label: "Business vehicle risk", Keywords: []string{"van", "vans", "vehicle*", "lorry", "lorries", "fleet*"}},
}

// Concerns returns the concern vocabulary in display order.
func Concerns() []Concern {
	out := make([]Concern, len(vocabulary))
	copy(out, vocabulary)
	return out
}

// NormalizeConcern maps an id or a display label onto a concern id.
// Unknown values are lower-cased and kept so remote agents still see them.
func NormalizeConcern(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	for _, c := range vocabulary {
		if strings.EqualFold(trimmed, c.ID) || strings.EqualFold(trimmed, c.Label) {
			return c.ID
		}
	}
	return strings.ToLower(trimmed)
}

// ConcernsFromText finds concern ids mentioned in free text. The result is sorted.
func ConcernsFromText(text string) []string {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return nil
	}
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var out []string
	for _, c := range vocabulary {
		if mentions(lower, words, c.Keywords) {
			out = append(out, c.ID)
		}
	}
	sort.Strings(out)
	return out
}

// mentions matches phrases as substrings, stems as word prefixes and every
// other keyword as a whole word.
func mentions(text string, words []string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(kw, " ") {
			if strings.Contains(text, kw) {
				return true
			}
			continue
		}
		stem, isStem := strings.CutSuffix(kw, "*")
		for _, w := range words {
			if w == stem || (isStem && strings.HasPrefix(w, stem)) {
				return true
			}
		}
	}
	return false
}
