// Package texindex discovers texture files near a model, classifies them by
// PBR channel, and groups them into coherent texture sets.
package texindex

import (
	"path/filepath"
	"strings"
)

// Channel names one texture input to the material model.
type Channel string

// Core channels bind to shader samplers; the auxiliary ones are recognized
// by the pipeline validator.
const (
	ChannelBaseColor Channel = "basecolor"
	ChannelMetal     Channel = "metal"
	ChannelRoughness Channel = "roughness"
	ChannelNormal    Channel = "normal"
	ChannelORM       Channel = "orm"
	ChannelOpacity   Channel = "opacity"
	ChannelAO        Channel = "ao"
	ChannelMaskMap   Channel = "mask_map"
	ChannelOther     Channel = "other"
)

// CoreChannels are the channels the renderer binds per submesh.
var CoreChannels = []Channel{ChannelBaseColor, ChannelMetal, ChannelRoughness, ChannelNormal}

// Extensions lists recognized texture file extensions.
var Extensions = []string{".png", ".jpg", ".jpeg", ".tga", ".bmp", ".tif", ".tiff"}

// HasTextureExt reports whether path has a recognized texture extension.
func HasTextureExt(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

var normalTokens = []string{"normal", "_nrm", "_nor"}
var roughnessTokens = []string{"rough", "_rgh"}
var metalTokens = []string{"metal", "_met"}
var albedoTokens = []string{"dif", "diff", "diffuse", "albedo", "basecolor", "base_color", "color"}

// Classify returns the channel a texture file most likely feeds, from its
// filename stem alone. A packed ORM map takes precedence over everything.
func Classify(path string) Channel {
	stem := strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))

	if strings.Contains(stem, "_orm") || strings.HasSuffix(stem, "orm") {
		return ChannelORM
	}
	for _, tok := range normalTokens {
		if strings.Contains(stem, tok) {
			return ChannelNormal
		}
	}
	for _, tok := range roughnessTokens {
		if strings.Contains(stem, tok) {
			return ChannelRoughness
		}
	}
	for _, tok := range metalTokens {
		if strings.Contains(stem, tok) {
			return ChannelMetal
		}
	}
	for _, tok := range albedoTokens {
		if strings.Contains(stem, tok) {
			return ChannelBaseColor
		}
	}
	return ChannelOther
}

// Group partitions a ranked candidate list by channel, preserving order.
func Group(candidates []string) map[Channel][]string {
	groups := make(map[Channel][]string)
	for _, path := range candidates {
		ch := Classify(path)
		groups[ch] = append(groups[ch], path)
	}
	return groups
}

// NormPath returns the canonical case-folded slash form used for
// deduplication and profile matching.
func NormPath(path string) string {
	return strings.ToLower(filepath.ToSlash(filepath.Clean(path)))
}
