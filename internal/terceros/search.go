package terceros

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldQuery strips diacritics so "Pérez" and "Perez" match the same rows.
func foldQuery(q string) string {
	folded, _, err := transform.String(foldTransformer, q)
	if err != nil {
		return q
	}
	return folded
}

// searchPatterns builds the ILIKE patterns for a free-text query: the raw
// fragment plus its accent-folded variant when they differ.
func searchPatterns(q string) []string {
	q = strings.TrimSpace(q)
	patterns := []string{"%" + q + "%"}
	if folded := foldQuery(q); folded != q {
		patterns = append(patterns, "%"+folded+"%")
	}
	return patterns
}

// Accent mapping for the SQL side. translate() on the stored columns must
// fold the same characters foldQuery folds, so an unaccented query still
// matches accented data and vice versa.
const (
	searchAccented = "áàâäãéèêëíìîïóòôöõúùûüñçÁÀÂÄÃÉÈÊËÍÌÎÏÓÒÔÖÕÚÙÛÜÑÇ"
	searchPlain    = "aaaaaeeeeiiiiooooouuuuncAAAAAEEEEIIIIOOOOOUUUUNC"
)

// foldedColumn wraps a column expression so stored accents are stripped
// before the ILIKE comparison.
func foldedColumn(col string) string {
	return "translate(" + col + ", '" + searchAccented + "', '" + searchPlain + "')"
}
