package texindex

import (
	"path/filepath"
	"sort"
	"strings"
)

// SetProfile is a coherent group of textures inferred to belong to the same
// material by sharing a set key derived from the stem.
type SetProfile struct {
	Key      string
	Label    string
	Coverage int
	Paths    map[Channel]string
}

// Channel-suffix tokens stripped from a stem to derive the set key,
// longest first so "_basecolor" is not split as "_color".
var suffixTokens = []string{
	"_base_color", "_basecolor", "_roughness", "_occlusion", "_metallic",
	"_diffuse", "_albedo", "_normal", "_opacity", "_rough", "_metal",
	"_color", "_alpha", "_diff", "_nrm", "_nor", "_rgh", "_met", "_orm", "_ao",
}

// SetKey derives the texture-set key for a file by stripping one trailing
// channel-suffix token from its stem.
func SetKey(path string) string {
	stem := strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	for _, tok := range suffixTokens {
		if strings.HasSuffix(stem, tok) {
			return strings.TrimSuffix(stem, tok)
		}
	}
	return stem
}

// BuildSetProfiles merges per-channel candidate lists into set profiles.
// Profiles are sorted by basecolor presence, then coverage, then key.
func BuildSetProfiles(sets map[Channel][]string) []SetProfile {
	byKey := make(map[string]*SetProfile)

	for _, ch := range []Channel{ChannelBaseColor, ChannelMetal, ChannelRoughness, ChannelNormal, ChannelORM} {
		for _, path := range sets[ch] {
			key := SetKey(path)
			p, ok := byKey[key]
			if !ok {
				p = &SetProfile{Key: key, Label: key, Paths: make(map[Channel]string)}
				byKey[key] = p
			}
			// First candidate per channel wins; lists arrive ranked.
			if _, taken := p.Paths[ch]; !taken {
				p.Paths[ch] = path
			}
		}
	}

	profiles := make([]SetProfile, 0, len(byKey))
	for _, p := range byKey {
		p.Coverage = len(p.Paths)
		profiles = append(profiles, *p)
	}

	sort.SliceStable(profiles, func(i, j int) bool {
		_, bi := profiles[i].Paths[ChannelBaseColor]
		_, bj := profiles[j].Paths[ChannelBaseColor]
		if bi != bj {
			return bi
		}
		if profiles[i].Coverage != profiles[j].Coverage {
			return profiles[i].Coverage > profiles[j].Coverage
		}
		return profiles[i].Key < profiles[j].Key
	})
	return profiles
}

// MatchProfileKey returns the key of the profile whose path tuple exactly
// equals the current per-channel selection, or "" when none matches.
func MatchProfileKey(profiles []SetProfile, current map[Channel]string) string {
	for _, p := range profiles {
		if pathsEqual(p.Paths, current) {
			return p.Key
		}
	}
	return ""
}

func pathsEqual(a, b map[Channel]string) bool {
	for ch, pa := range a {
		if pa == "" {
			continue
		}
		if b[ch] == "" || NormPath(pa) != NormPath(b[ch]) {
			return false
		}
	}
	for ch, pb := range b {
		if pb != "" && a[ch] == "" {
			return false
		}
	}
	return true
}
