package bio

import (
	"regexp"
	"strings"
)

type Gender string

const (
	GenderUnknown Gender = ""
	GenderMale    Gender = "M"
	GenderFemale  Gender = "F"
)

// GenderFromText maps free-form values like "Male", "female", "M" or "woman" to a Gender.
func GenderFromText(value string) Gender {
	v := strings.ToLower(strings.TrimSpace(value))
	switch {
	case v == "":
		return GenderUnknown
	case strings.Contains(v, "female") || v == "woman" || v == "f":
		return GenderFemale
	case strings.Contains(v, "male") || v == "man" || v == "m":
		return GenderMale
	}
	return GenderUnknown
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

var (
	explicitMale = compileAll(
		`\b(?:gender|sex)\s*:\s*(?:male|m)\b`,
		`\bis an? male\b`,
		`\bmale (?:actor|contestant|model|singer|dancer|personality)\b`,
	)
	explicitFemale = compileAll(
		`\b(?:gender|sex)\s*:\s*(?:female|f)\b`,
		`\bis an? female\b`,
		`\bfemale (?:actor|contestant|model|singer|dancer|personality)\b`,
		`\bactress\b`,
	)

	contextualMale = compileAll(
		`\bhe\s+(?:is|was|has|had|will|would|can|could|should|might)\b`,
		`\bhim\s+(?:to|from|with|by|for|as|in|on|at)\b`,
		`\bhis\s+(?:career|life|work|role|performance|appearance|family|wife|girlfriend)\b`,
		`\b(?:made|gave|brought|took|sent|showed|told)\s+him\b`,
		`\bhe\s+(?:appeared|starred|played|worked|lived|grew|born|died)\b`,
	)
	contextualFemale = compileAll(
		`\bshe\s+(?:is|was|has|had|will|would|can|could|should|might)\b`,
		`\bher\s+(?:to|from|with|by|for|as|in|on|at)\b`,
		`\bher\s+(?:career|life|work|role|performance|appearance|family|husband|boyfriend)\b`,
		`\b(?:made|gave|brought|took|sent|showed|told)\s+her\b`,
		`\bshe\s+(?:appeared|starred|played|worked|lived|grew|born|died)\b`,
	)

	simpleMale   = regexp.MustCompile(`\b(?:he|him|his|himself)\b`)
	simpleFemale = regexp.MustCompile(`\b(?:she|her|hers|herself)\b`)

	maleTitles = []string{
		"mr", "mister", "sir", "king", "prince", "duke", "lord", "boyfriend", "husband",
		"father", "dad", "son", "brother", "uncle", "nephew", "grandfather", "grandson",
		"widower", "bachelor",
	}
	femaleTitles = []string{
		"ms", "mrs", "miss", "madam", "lady", "queen", "princess", "duchess", "girlfriend",
		"wife", "mother", "mom", "mum", "daughter", "sister", "aunt", "niece", "grandmother",
		"granddaughter", "widow", "bachelorette",
	}
	maleTitleRes   = titlePatterns(maleTitles)
	femaleTitleRes = titlePatterns(femaleTitles)
)

// a title only says something about the subject when it is not describing
// somebody else ("his wife", "her husband")
func titlePatterns(titles []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(titles))
	for i, t := range titles {
		out[i] = regexp.MustCompile(`(?:^|[^a-z'])(his |her |their |my )?` + regexp.QuoteMeta(t) + `\.?(?:$|[^a-z'])`)
	}
	return out
}

func countTitles(text string, patterns []*regexp.Regexp) int {
	n := 0
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if m[1] == "" {
				n++
				break
			}
		}
	}
	return n
}

func countAll(text string, patterns []*regexp.Regexp) int {
	n := 0
	for _, re := range patterns {
		n += len(re.FindAllStringIndex(text, -1))
	}
	return n
}

func anyMatch(text string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// GenderEvidence is the weighted evidence ScoreGender collected.
type GenderEvidence struct {
	Male   int
	Female int
}

// Decide turns evidence into a gender:
// M if male >= 3 and male > 1.5 * female, F symmetric, otherwise whichever side is
// the only one with any evidence.
func (e GenderEvidence) Decide() Gender {
	male, female := float64(e.Male), float64(e.Female)
	switch {
	case e.Male >= 3 && male > female*1.5:
		return GenderMale
	case e.Female >= 3 && female > male*1.5:
		return GenderFemale
	case e.Male > 0 && e.Female == 0:
		return GenderMale
	case e.Female > 0 && e.Male == 0:
		return GenderFemale
	}
	return GenderUnknown
}

// ScoreGender infers a gender from prose about `name`. Explicit statements decide
// immediately, otherwise contextual pronoun phrases weigh 2, bare pronouns 1 and
// each distinct gendered title or relation 3.
func ScoreGender(text, name string) (Gender, GenderEvidence) {
	text = strings.ToLower(whitespaceRe.ReplaceAllString(text, " "))
	if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
		text = strings.ReplaceAll(text, name, "person")
	}

	male := anyMatch(text, explicitMale)
	female := anyMatch(text, explicitFemale)
	if male && !female {
		return GenderMale, GenderEvidence{Male: 10}
	}
	if female && !male {
		return GenderFemale, GenderEvidence{Female: 10}
	}

	evidence := GenderEvidence{
		Male: countAll(text, contextualMale)*2 +
			len(simpleMale.FindAllStringIndex(text, -1)) +
			countTitles(text, maleTitleRes)*3,
		Female: countAll(text, contextualFemale)*2 +
			len(simpleFemale.FindAllStringIndex(text, -1)) +
			countTitles(text, femaleTitleRes)*3,
	}
	return evidence.Decide(), evidence
}

// PronounGender is the simpler rule used on wiki article bodies: plain pronoun counts,
// the larger side wins when it has at least two hits.
func PronounGender(text string) Gender {
	text = strings.ToLower(text)
	male := len(simpleMale.FindAllStringIndex(text, -1))
	female := len(simpleFemale.FindAllStringIndex(text, -1))
	if male > female && male >= 2 {
		return GenderMale
	}
	if female > male && female >= 2 {
		return GenderFemale
	}
	return GenderUnknown
}

// GenderFromTMDb maps TMDb's person gender code, 0 (not set) and 3 (non-binary) are
// not written to the sheet.
func GenderFromTMDb(code int) Gender {
	switch code {
	case 1:
		return GenderFemale
	case 2:
		return GenderMale
	}
	return GenderUnknown
}
