package pipeline

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/Faultbox/meshdeck/internal/texindex"
)

// Coverage is the per-pipeline channel presence summary.
type Coverage struct {
	Title         string
	Presence      map[string]bool
	Missing       []string
	ReadyRequired int
	Status        string // ready, partial, missing
}

// channelAliases maps equivalent channel spellings both ways.
var channelAliases = map[string]string{
	"metal":     "metallic",
	"metallic":  "metal",
	"ao":        "occlusion",
	"occlusion": "ao",
}

// stemImplications maps a stem token to the channels its presence
// implies. A packed ORM map covers three channels at once.
var stemImplications = map[string][]string{
	"_orm":       {"ao", "roughness", "metal", "orm"},
	"_occlusion": {"ao"},
	"_ao":        {"ao"},
}

// EvaluateCoverage computes channel presence per pipeline from the
// effective channel assignments plus name heuristics over every known
// texture file.
func EvaluateCoverage(cfg *Config, effectivePaths map[texindex.Channel]string,
	sets map[texindex.Channel][]string) map[string]Coverage {

	present := presenceFromInputs(cfg, effectivePaths, sets)

	out := make(map[string]Coverage, len(cfg.Pipelines))
	for code, pl := range cfg.Pipelines {
		cov := Coverage{Title: pl.Title, Presence: make(map[string]bool)}
		for _, ch := range append(append([]string{}, pl.RequiredChannels...), pl.OptionalChannels...) {
			cov.Presence[ch] = channelPresent(present, ch)
		}
		for _, ch := range pl.RequiredChannels {
			if cov.Presence[ch] {
				cov.ReadyRequired++
			} else {
				cov.Missing = append(cov.Missing, ch)
			}
		}
		sort.Strings(cov.Missing)
		switch {
		case len(pl.RequiredChannels) == 0 || len(cov.Missing) == 0:
			cov.Status = "ready"
		case cov.ReadyRequired > 0:
			cov.Status = "partial"
		default:
			cov.Status = "missing"
		}
		out[code] = cov
	}
	return out
}

// presenceFromInputs merges direct channel assignments with stem
// heuristics over every texture basename.
func presenceFromInputs(cfg *Config, effectivePaths map[texindex.Channel]string,
	sets map[texindex.Channel][]string) map[string]bool {

	present := make(map[string]bool)
	for ch, path := range effectivePaths {
		if path != "" {
			present[string(ch)] = true
		}
	}
	for ch, paths := range sets {
		if len(paths) > 0 {
			present[string(ch)] = true
		}
		for _, path := range paths {
			applyStemHeuristics(present, cfg, path)
		}
	}
	for _, path := range effectivePaths {
		applyStemHeuristics(present, cfg, path)
	}
	return present
}

func applyStemHeuristics(present map[string]bool, cfg *Config, path string) {
	if path == "" {
		return
	}
	stem := strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	for token, channels := range stemImplications {
		if strings.Contains(stem, token) {
			for _, ch := range channels {
				present[ch] = true
			}
		}
	}
	// Profile-declared packed maps extend the built-in heuristics.
	for _, pl := range cfg.Pipelines {
		for _, packed := range pl.PackedMaps {
			if packed.Token != "" && strings.Contains(stem, strings.ToLower(packed.Token)) {
				for _, ch := range packed.Channels {
					present[ch] = true
				}
			}
		}
	}
}

func channelPresent(present map[string]bool, ch string) bool {
	if present[ch] {
		return true
	}
	if alias, ok := channelAliases[ch]; ok && present[alias] {
		return true
	}
	return false
}
