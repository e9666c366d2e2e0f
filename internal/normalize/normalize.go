// Package normalize repairs encoding corruption in raw address text and
// derives the canonical lookup key used by every store.
//
// The repair table only contains classic UTF-8-as-Latin-1 artifacts observed
// in the tour-plan exports. It is applied to a fixed point because doubly
// re-encoded text unwraps one layer per pass ("ÃƒÂ¶" → "Ã¶" → "ö"); the pass
// count is capped so adversarial input cannot loop.
package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/tourkit/address-resolver/internal/domain"
)

// DefaultMaxPasses bounds the fixed-point repair loop. The deepest corruption
// seen in real exports is two layers; five leaves headroom.
const DefaultMaxPasses = 5

// KeyDelimiter joins the normalized street, postal code, and city into the
// canonical key.
const KeyDelimiter = "|"

// mojibakeFixes maps corrupted sequences to their correct characters. Order
// is irrelevant: the loop reapplies the whole table until nothing matches.
// Second-layer entries unwrap to first-layer ones, which then resolve.
var mojibakeFixes = [][2]string{
	{"ÃƒÂ¤", "Ã¤"}, {"ÃƒÂ¶", "Ã¶"}, {"ÃƒÂ¼", "Ã¼"}, {"ÃƒÂŸ", "ÃŸ"},
	{"Ã¤", "ä"}, {"Ã¶", "ö"}, {"Ã¼", "ü"}, {"ÃŸ", "ß"},
	{"Ã„", "Ä"}, {"Ã–", "Ö"}, {"Ãœ", "Ü"},
	{"Â ", " "}, // non-breaking-space residue
}

var (
	// District qualifiers ("Ortsteil"). Parenthesized forms are delimited and
	// safe to drop anywhere; bare forms only at the end of the string, and
	// only when followed by a bounded run of letters. Ambiguous matches stay.
	otParenRe = regexp.MustCompile(`\s*\(\s*[Oo][Tt]\s+[\p{L}.-]{1,40}\s*\)`)
	otTrailRe = regexp.MustCompile(`\s*(?:/\s*|\s)[Oo][Tt]\s+[\p{L}.-]{1,40}\s*$`)

	// Warehouse hall qualifiers: ", Halle 2" / "/ Halle 12b".
	halleRe = regexp.MustCompile(`\s*[,/]\s*[Hh]alle\s+\d+\w*`)

	pipeRe   = regexp.MustCompile(`\s*\|\s*`)
	multiSep = regexp.MustCompile(`\s*[;,]+\s*`)
	spaces   = regexp.MustCompile(`\s+`)

	// "Street 12, 01468 City" — the dominant single-line layout.
	addrLineRe = regexp.MustCompile(`^(.+?),\s*(\d{4,5})\s+(.+)$`)

	// Street-type abbreviations folded for key derivation only, so
	// "Schulstr. 25" and "Schulstraße 25" share a key.
	abbrevs = []struct {
		re  *regexp.Regexp
		rep string
	}{
		{regexp.MustCompile(`(?i)str\.`), "straße"},
		{regexp.MustCompile(`(?i)strasse\b`), "straße"},
		{regexp.MustCompile(`(?i)\bpl\.`), "platz"},
	}
)

// Normalizer turns raw address text into a NormalizedAddress. It is pure and
// total: the worst case is best-effort cleaned text, never an error.
type Normalizer struct {
	maxPasses int
}

// New creates a Normalizer with the given repair pass cap. Non-positive
// values fall back to DefaultMaxPasses.
func New(maxPasses int) *Normalizer {
	if maxPasses <= 0 {
		maxPasses = DefaultMaxPasses
	}
	return &Normalizer{maxPasses: maxPasses}
}

// Normalize cleans a single-line address and derives its canonical key.
// Original casing is preserved in the display fields; only the key is folded.
func (n *Normalizer) Normalize(raw string) domain.NormalizedAddress {
	s := n.clean(raw)

	street, postal, city := splitLine(s)
	return domain.NormalizedAddress{
		Raw:          s,
		CanonicalKey: n.Key(street, postal, city),
		Street:       street,
		PostalCode:   postal,
		City:         city,
	}
}

// FromParts normalizes an address that already arrives split into
// street/postal/city columns, as tour-plan records do.
func (n *Normalizer) FromParts(street, postal, city string) domain.NormalizedAddress {
	street = n.clean(street)
	postal = strings.TrimSpace(postal)
	city = n.clean(city)

	raw := street
	if postal != "" || city != "" {
		raw = strings.TrimSpace(street + ", " + strings.TrimSpace(postal+" "+city))
	}
	return domain.NormalizedAddress{
		Raw:          raw,
		CanonicalKey: n.Key(street, postal, city),
		Street:       street,
		PostalCode:   postal,
		City:         city,
	}
}

// Key builds the canonical key from cleaned components. Keys are invariant
// under case, whitespace, known mojibake, and street-type abbreviations.
func (n *Normalizer) Key(street, postal, city string) string {
	return foldForKey(n.clean(street)) + KeyDelimiter +
		strings.TrimSpace(postal) + KeyDelimiter +
		foldForKey(n.clean(city))
}

// FoldAlias canonicalizes a synonym alias for lookup: case and whitespace
// insensitive, but otherwise verbatim ("Sven - PF" keeps its hyphen).
func FoldAlias(alias string) string {
	return strings.ToLower(spaces.ReplaceAllString(strings.TrimSpace(alias), " "))
}

// clean runs encoding repair and conservative noise stripping. Display
// casing is untouched.
func (n *Normalizer) clean(s string) string {
	s = n.repairMojibake(s)

	if strings.Contains(s, "|") {
		s = pipeRe.ReplaceAllString(s, ", ")
	}
	s = halleRe.ReplaceAllString(s, "")
	s = otParenRe.ReplaceAllString(s, "")
	s = otTrailRe.ReplaceAllString(s, "")

	parts := multiSep.Split(s, -1)
	kept := parts[:0]
	for _, p := range parts {
		if p = strings.Trim(p, " ,;/"); p != "" {
			kept = append(kept, p)
		}
	}
	s = strings.Join(kept, ", ")

	return norm.NFC.String(strings.TrimSpace(spaces.ReplaceAllString(s, " ")))
}

// repairMojibake applies the substitution table until the string is stable
// or the pass cap is reached.
func (n *Normalizer) repairMojibake(s string) string {
	for pass := 0; pass < n.maxPasses; pass++ {
		before := s
		for _, fix := range mojibakeFixes {
			s = strings.ReplaceAll(s, fix[0], fix[1])
		}
		if s == before {
			break
		}
	}
	return s
}

func foldForKey(s string) string {
	s = strings.ToLower(s)
	for _, a := range abbrevs {
		s = a.re.ReplaceAllString(s, a.rep)
	}
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

// splitLine pulls street/postal/city out of a one-line address. Lines that
// do not match the dominant layout keep everything in Street so the key is
// still deterministic.
func splitLine(s string) (street, postal, city string) {
	if m := addrLineRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1]), m[2], strings.TrimSpace(m[3])
	}
	return s, "", ""
}
