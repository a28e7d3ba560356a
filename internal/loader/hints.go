package loader

import (
	"path/filepath"
	"strings"

	"github.com/Faultbox/meshdeck/internal/texindex"
)

// Tokens too generic to discriminate between materials.
var genericTokens = map[string]struct{}{
	"mat": {}, "material": {}, "mtl": {}, "geo": {}, "mesh": {},
	"obj": {}, "default": {}, "surface": {}, "shader": {},
}

// hintTokens extracts lowercase alphanumeric tokens from a name and drops
// the generic ones.
func hintTokens(name string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() == 0 {
			return
		}
		tok := strings.ToLower(cur.String())
		cur.Reset()
		if _, generic := genericTokens[tok]; !generic {
			tokens = append(tokens, tok)
		}
	}
	for _, r := range name {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// hintScore rates how well a texture stem matches a hint token.
// Exact stems score highest, then prefix, then delimited substring,
// then plain substring.
func hintScore(stem, hint string) int {
	if stem == hint {
		return 100
	}
	if strings.HasPrefix(stem, hint) {
		return 60
	}
	for _, part := range hintTokens(stem) {
		if part == hint {
			return 40
		}
	}
	if strings.Contains(stem, hint) {
		return 20
	}
	return 0
}

// bestHintMatch returns the candidate whose stem best matches any hint.
// With no match at all the ranked list's first entry wins.
func bestHintMatch(candidates []string, hints []string) string {
	if len(candidates) == 0 {
		return ""
	}
	best := ""
	bestScore := 0
	for _, path := range candidates {
		stem := strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
		for _, hint := range hints {
			if s := hintScore(stem, hint); s > bestScore {
				bestScore = s
				best = path
			}
		}
	}
	if best == "" {
		return candidates[0]
	}
	return best
}

// selectTexturePaths picks one texture per core channel from the ranked
// sets, preferring candidates matching the material, object, and model
// stem hints.
func selectTexturePaths(sets map[texindex.Channel][]string, materialName, objectName, modelStem string) map[texindex.Channel]string {
	var hints []string
	for _, src := range []string{materialName, objectName, modelStem} {
		hints = append(hints, hintTokens(src)...)
	}

	out := make(map[texindex.Channel]string, len(texindex.CoreChannels))
	for _, ch := range texindex.CoreChannels {
		out[ch] = bestHintMatch(sets[ch], hints)
	}
	return out
}
