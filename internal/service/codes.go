package service

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
)

const (
	categoryPrefixLen = 3
	maxCodeAttempts   = 1000
)

// categoryPrefix derives the uppercase three-letter code prefix of a name.
// Diacritics are folded ("Échelle" -> "ECH") and non-alphanumerics dropped.
func categoryPrefix(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	var b strings.Builder
	for _, r := range strings.ToUpper(folded) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			if b.Len() == categoryPrefixLen {
				break
			}
		}
	}
	prefix := b.String()
	if prefix == "" {
		return "CAT"
	}
	for len(prefix) < categoryPrefixLen {
		prefix += "X"
	}
	return prefix
}

// nextFreeCode returns base, or base followed by the smallest numeric suffix
// that is not taken.
func nextFreeCode(tx *gorm.DB, base string, exists func(tx *gorm.DB, code string) (bool, error)) (string, error) {
	candidate := base
	for n := 1; n <= maxCodeAttempts; n++ {
		taken, err := exists(tx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, n)
	}
	return "", fmt.Errorf("no free code for prefix %s", base)
}

// itemCode formats the sequential code of the n-th item of a category.
func itemCode(categoryCode string, n int64) string {
	return fmt.Sprintf("%s-%03d", categoryCode, n)
}
