// Package material resolves the effective texture path per channel and
// draw call, layering user overrides on top of the loader's defaults.
package material

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/Faultbox/meshdeck/internal/loader"
	"github.com/Faultbox/meshdeck/internal/texindex"
)

// Resolver owns the override state for the currently adopted payload.
type Resolver struct {
	payload *loader.MeshPayload

	materialOverrides map[string]map[texindex.Channel]string
	globalOverrides   map[texindex.Channel]string
	lastKnown         map[texindex.Channel]string
}

func NewResolver() *Resolver {
	return &Resolver{
		materialOverrides: make(map[string]map[texindex.Channel]string),
		globalOverrides:   make(map[texindex.Channel]string),
		lastKnown:         make(map[texindex.Channel]string),
	}
}

// AdoptPayload switches the resolver to a new payload, remembering each
// channel's first non-empty submesh default as the last-known path.
func (r *Resolver) AdoptPayload(p *loader.MeshPayload) {
	r.payload = p
	if p == nil {
		return
	}
	for _, ch := range texindex.CoreChannels {
		for i := range p.Submeshes {
			if path := p.Submeshes[i].TexturePaths[ch]; path != "" {
				r.lastKnown[ch] = path
				break
			}
		}
	}
}

// Release drops the payload and every override. Last-known paths are
// kept; they carry across model switches.
func (r *Resolver) Release() {
	r.payload = nil
	r.materialOverrides = make(map[string]map[texindex.Channel]string)
	r.globalOverrides = make(map[texindex.Channel]string)
}

// SetMaterialOverride pins a channel path for one material UID. An empty
// path removes the override.
func (r *Resolver) SetMaterialOverride(materialUID string, ch texindex.Channel, path string) {
	if path == "" {
		if m, ok := r.materialOverrides[materialUID]; ok {
			delete(m, ch)
			if len(m) == 0 {
				delete(r.materialOverrides, materialUID)
			}
		}
		return
	}
	m := r.materialOverrides[materialUID]
	if m == nil {
		m = make(map[texindex.Channel]string)
		r.materialOverrides[materialUID] = m
	}
	m[ch] = path
}

// ApplySetProfile pins every core channel to the profile's paths.
// Channels the profile does not cover lose their global override, so
// switching sets never leaves a stale pick behind.
func (r *Resolver) ApplySetProfile(paths map[texindex.Channel]string) {
	for _, ch := range texindex.CoreChannels {
		r.SetGlobalOverride(ch, paths[ch])
	}
}

// SetGlobalOverride pins a channel path for every material. An empty
// path removes the override.
func (r *Resolver) SetGlobalOverride(ch texindex.Channel, path string) {
	if path == "" {
		delete(r.globalOverrides, ch)
		return
	}
	r.globalOverrides[ch] = path
}

// Resolve returns the effective texture path for a submesh and channel.
// First non-empty wins: material override, global override, submesh
// default, last-known path, then the ranked set's head.
func (r *Resolver) Resolve(sub *loader.Submesh, ch texindex.Channel) string {
	if m, ok := r.materialOverrides[sub.MaterialUID]; ok {
		if path := m[ch]; path != "" {
			return path
		}
	}
	if path := r.globalOverrides[ch]; path != "" {
		return path
	}
	if path := sub.TexturePaths[ch]; path != "" {
		return path
	}
	if path := r.lastKnown[ch]; path != "" {
		return path
	}
	if r.payload != nil {
		if ranked := r.payload.TextureSets[ch]; len(ranked) > 0 {
			return ranked[0]
		}
	}
	return ""
}

// ChannelState summarizes a channel across every material of the
// payload: "single" when all agree on one non-empty path, "mixed" when
// at least two distinct non-empty paths exist, "none" otherwise.
type ChannelState struct {
	State string
	Path  string
}

// GlobalChannelStates computes the per-channel agreement the UI's
// tri-state selectors present.
func (r *Resolver) GlobalChannelStates() map[texindex.Channel]ChannelState {
	out := make(map[texindex.Channel]ChannelState, len(texindex.CoreChannels))
	for _, ch := range texindex.CoreChannels {
		out[ch] = r.channelState(ch)
	}
	return out
}

func (r *Resolver) channelState(ch texindex.Channel) ChannelState {
	if r.payload == nil || len(r.payload.Submeshes) == 0 {
		return ChannelState{State: "none"}
	}
	distinct := make(map[string]struct{})
	allAgree := true
	first := ""
	for i := range r.payload.Submeshes {
		path := r.Resolve(&r.payload.Submeshes[i], ch)
		if path != "" {
			distinct[path] = struct{}{}
		}
		if i == 0 {
			first = path
		} else if path != first {
			allAgree = false
		}
	}
	switch {
	case allAgree && first != "":
		return ChannelState{State: "single", Path: first}
	case len(distinct) >= 2:
		return ChannelState{State: "mixed"}
	default:
		return ChannelState{State: "none"}
	}
}

// OverridesPayload is the JSON shape persisted per asset.
type OverridesPayload struct {
	Version   int                          `json:"version"`
	Global    map[string]string            `json:"global,omitempty"`
	Materials map[string]map[string]string `json:"materials,omitempty"`
}

// HasOverrides reports whether anything would be persisted.
func (r *Resolver) HasOverrides() bool {
	return len(r.globalOverrides) > 0 || len(r.materialOverrides) > 0
}

// EncodeOverrides serializes the current overrides for catalog storage.
// Returns nil when there is nothing to store.
func (r *Resolver) EncodeOverrides() ([]byte, error) {
	if !r.HasOverrides() {
		return nil, nil
	}
	payload := OverridesPayload{Version: 1}
	if len(r.globalOverrides) > 0 {
		payload.Global = make(map[string]string, len(r.globalOverrides))
		for ch, path := range r.globalOverrides {
			payload.Global[string(ch)] = path
		}
	}
	if len(r.materialOverrides) > 0 {
		payload.Materials = make(map[string]map[string]string, len(r.materialOverrides))
		for uid, m := range r.materialOverrides {
			entry := make(map[string]string, len(m))
			for ch, path := range m {
				entry[string(ch)] = path
			}
			payload.Materials[uid] = entry
		}
	}
	return json.Marshal(payload)
}

// ApplyOverridesJSON restores overrides persisted by EncodeOverrides.
// Nil or empty input clears everything.
func (r *Resolver) ApplyOverridesJSON(data []byte) error {
	r.materialOverrides = make(map[string]map[texindex.Channel]string)
	r.globalOverrides = make(map[texindex.Channel]string)
	if len(data) == 0 {
		return nil
	}
	var payload OverridesPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return errors.Wrap(err, "texture overrides payload")
	}
	for ch, path := range payload.Global {
		r.SetGlobalOverride(texindex.Channel(ch), path)
	}
	for uid, m := range payload.Materials {
		for ch, path := range m {
			r.SetMaterialOverride(uid, texindex.Channel(ch), path)
		}
	}
	return nil
}
