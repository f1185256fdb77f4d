package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MatchThreshold is the minimum Jaro-Winkler similarity (on normalized names) for
// two names to be treated as the same person when no token rule matches.
const MatchThreshold = 0.92

// MinTokenRatio is the minimum token overlap required alongside MatchThreshold.
const MinTokenRatio = 0.5

var (
	whitespaceRegex  = regexp.MustCompile(`\s+`)
	parentheticalRe  = regexp.MustCompile(`\([^)]*\)`)
	nonAlphanumRegex = regexp.MustCompile(`[^a-z0-9]+`)
	quoteReplacer    = strings.NewReplacer("’", "'", "‘", "'", "“", `"`, "”", `"`, "`", "'")
)

func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeName lowercases a person name, folds accents, drops parentheticals and
// punctuation and collapses whitespace. "José  O’Brien (Jr.)" -> "jose o brien".
func NormalizeName(name string) string {
	name = quoteReplacer.Replace(name)
	name = foldDiacritics(name)
	name = strings.ToLower(name)
	name = parentheticalRe.ReplaceAllString(name, " ")
	// apostrophes join the surrounding letters, O'Brien is one token
	name = strings.ReplaceAll(name, "'", "")
	name = nonAlphanumRegex.ReplaceAllString(name, " ")
	name = whitespaceRegex.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// CompactName is NormalizeName without any spaces.
func CompactName(name string) string {
	return strings.ReplaceAll(NormalizeName(name), " ", "")
}

// Tokens returns the normalized tokens of a name.
func Tokens(name string) []string {
	n := NormalizeName(name)
	if n == "" {
		return nil
	}
	return strings.Split(n, " ")
}

func tokenSet(name string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, t := range Tokens(name) {
		set[t] = struct{}{}
	}
	return set
}

// TokenRatio is the Jaccard similarity of the token sets of two names.
func TokenRatio(a, b string) float64 {
	left := tokenSet(a)
	right := tokenSet(b)
	if len(left) == 0 || len(right) == 0 {
		return 0
	}
	shared := 0
	for t := range left {
		if _, ok := right[t]; ok {
			shared++
		}
	}
	union := len(left) + len(right) - shared
	return float64(shared) / float64(union)
}

// SharedTokens counts the tokens two names have in common.
func SharedTokens(a, b string) int {
	left := tokenSet(a)
	shared := 0
	for t := range tokenSet(b) {
		if _, ok := left[t]; ok {
			shared++
		}
	}
	return shared
}

// Similarity is the Jaro-Winkler similarity of the normalized names.
func Similarity(a, b string) float64 {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	return matchr.JaroWinkler(na, nb, false)
}

// NamesMatch reports whether two spellings refer to the same name:
//   - equal after normalization or with spaces removed (O'Brien ~ OBrien)
//   - one contains the other (as whole tokens)
//   - they share at least min(2, fewest tokens) tokens
//   - Jaro-Winkler >= MatchThreshold with token ratio >= MinTokenRatio
func NamesMatch(a, b string) bool {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb || CompactName(a) == CompactName(b) {
		return true
	}
	if strings.Contains(" "+na+" ", " "+nb+" ") || strings.Contains(" "+nb+" ", " "+na+" ") {
		return true
	}

	ta, tb := Tokens(a), Tokens(b)
	required := min(2, min(len(ta), len(tb)))
	if required >= 2 && SharedTokens(a, b) >= required {
		return true
	}

	return Similarity(a, b) >= MatchThreshold && TokenRatio(a, b) >= MinTokenRatio
}

// MatchName reports whether name contains any of the matchers, both compared in their
// CompactName form: MatchName("Camera and Electrical Department", []string{"electrical"}).
func MatchName(name string, matchers []string) bool {
	name = CompactName(name)
	for _, m := range matchers {
		if strings.Contains(name, CompactName(m)) {
			return true
		}
	}
	return false
}

// Slug lowercases text and joins its words with `sep`, dropping dots and apostrophes.
// Slug("Lisa Vanderpump", "-") -> "lisa-vanderpump"
func Slug(text, sep string) string {
	text = strings.ToLower(foldDiacritics(quoteReplacer.Replace(text)))
	text = strings.NewReplacer(".", "", "'", "").Replace(text)
	return strings.Join(strings.Fields(text), sep)
}

// SplitList splits a sheet cell holding a list ("a, b; c") into trimmed non-empty items.
func SplitList(cell string) []string {
	parts := strings.FieldsFunc(cell, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
