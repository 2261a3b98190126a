package interaction

import (
	"regexp"
	"strings"
)

// Normalization rewrites names into canonical tokens so that spelling and
// brand variants of the same substance collapse to one cache key
// ("Fish Oil", "fish-oil" and "omega 3" all become "omega3"). Rules apply
// in order; more specific patterns (vitamin b12) run before their prefixes
// (vitamin b). Applying Normalize to its own output changes nothing.

type rewriteRule struct {
	pattern *regexp.Regexp
	repl    string
}

var rewriteRules = []rewriteRule{
	{regexp.MustCompile(`\s+`), ""},
	{regexp.MustCompile(`[-_]`), ""},
	{regexp.MustCompile(`vitamin\s*d3?`), "vitd"},
	{regexp.MustCompile(`vitamin\s*e`), "vitamine"},
	{regexp.MustCompile(`vitamin\s*c`), "vitc"},
	{regexp.MustCompile(`vitamin\s*b12`), "vitb12"},
	{regexp.MustCompile(`vitamin\s*b6`), "vitb6"},
	{regexp.MustCompile(`vitamin\s*b`), "vitb"},
	{regexp.MustCompile(`vitamin`), "vit"},
	{regexp.MustCompile(`omega[\s-]*3`), "omega3"},
	{regexp.MustCompile(`coq[\s-]*10`), "coenzyme q10"},
	{regexp.MustCompile(`coenzyme\s*q\s*10`), "coenzyme q10"},
	{regexp.MustCompile(`(vit)?b[\s-]*12`), "vitb12"},
	{regexp.MustCompile(`(vit)?d[\s-]*3`), "vitd"},
	{regexp.MustCompile(`magnesium`), "mg"},
	{regexp.MustCompile(`calcium`), "ca"},
	{regexp.MustCompile(`fish\s*oil`), "omega3"},
	{regexp.MustCompile(`st\.?\s*john'?s\s*wort`), "stjohnswort"},
	{regexp.MustCompile(`milk\s*thistle`), "milkthistle"},
	{regexp.MustCompile(`ginkgo\s*biloba`), "ginkgo"},
	{regexp.MustCompile(`curcumin`), "turmeric"},
}

// Normalize collapses a supplement or medication name to its canonical
// lowercase token. It is pure and idempotent.
func Normalize(name string) string {
	s := strings.ToLower(name)
	for _, r := range rewriteRules {
		s = r.pattern.ReplaceAllString(s, r.repl)
	}
	return s
}

// PairKey returns the two normalized names in lexicographic order, the
// canonical form under which a pair is cached.
func PairKey(a, b string) (fst, snd string) {
	na, nb := Normalize(a), Normalize(b)
	if na <= nb {
		return na, nb
	}
	return nb, na
}
