package material

import (
	"testing"

	"github.com/Faultbox/meshdeck/internal/loader"
	"github.com/Faultbox/meshdeck/internal/texindex"
)

func twoMaterialPayload() *loader.MeshPayload {
	return &loader.MeshPayload{
		Submeshes: []loader.Submesh{
			{
				MaterialName: "skin",
				MaterialUID:  loader.MaterialUID("skin"),
				TexturePaths: map[texindex.Channel]string{
					texindex.ChannelBaseColor: "/tex/skin_basecolor.png",
					texindex.ChannelNormal:    "/tex/skin_normal.png",
				},
			},
			{
				MaterialName: "cloth",
				MaterialUID:  loader.MaterialUID("cloth"),
				TexturePaths: map[texindex.Channel]string{
					texindex.ChannelBaseColor: "/tex/cloth_basecolor.png",
				},
			},
		},
		TextureSets: map[texindex.Channel][]string{
			texindex.ChannelRoughness: {"/tex/shared_roughness.png"},
		},
	}
}

func TestResolvePrecedence(t *testing.T) {
	r := NewResolver()
	payload := twoMaterialPayload()
	r.AdoptPayload(payload)
	skin := &payload.Submeshes[0]

	// 5. Ranked set head when nothing else knows the channel.
	if got := r.Resolve(skin, texindex.ChannelRoughness); got != "/tex/shared_roughness.png" {
		t.Fatalf("ranked fallback = %q", got)
	}

	// 3. Submesh default.
	if got := r.Resolve(skin, texindex.ChannelNormal); got != "/tex/skin_normal.png" {
		t.Fatalf("submesh default = %q", got)
	}

	// 2. Global override beats the default.
	r.SetGlobalOverride(texindex.ChannelNormal, "/ovr/global_normal.png")
	if got := r.Resolve(skin, texindex.ChannelNormal); got != "/ovr/global_normal.png" {
		t.Fatalf("global override = %q", got)
	}

	// 1. Material override beats everything.
	r.SetMaterialOverride(skin.MaterialUID, texindex.ChannelNormal, "/ovr/skin_normal.png")
	if got := r.Resolve(skin, texindex.ChannelNormal); got != "/ovr/skin_normal.png" {
		t.Fatalf("material override = %q", got)
	}

	// Removing overrides falls back down the chain.
	r.SetMaterialOverride(skin.MaterialUID, texindex.ChannelNormal, "")
	r.SetGlobalOverride(texindex.ChannelNormal, "")
	if got := r.Resolve(skin, texindex.ChannelNormal); got != "/tex/skin_normal.png" {
		t.Fatalf("after clearing overrides = %q", got)
	}
}

func TestResolveLastKnownSurvivesModelSwitch(t *testing.T) {
	r := NewResolver()
	r.AdoptPayload(twoMaterialPayload())

	bare := &loader.MeshPayload{
		Submeshes: []loader.Submesh{{
			MaterialUID:  loader.MaterialUID("plain"),
			TexturePaths: map[texindex.Channel]string{},
		}},
	}
	r.AdoptPayload(bare)

	// 4. Last-known path from the previous payload.
	if got := r.Resolve(&bare.Submeshes[0], texindex.ChannelNormal); got != "/tex/skin_normal.png" {
		t.Fatalf("last known = %q", got)
	}
}

func TestApplySetProfile(t *testing.T) {
	r := NewResolver()
	payload := twoMaterialPayload()
	r.AdoptPayload(payload)
	skin := &payload.Submeshes[0]

	// A stale pick on a channel the profile does not cover.
	r.SetGlobalOverride(texindex.ChannelNormal, "/ovr/old_normal.png")

	r.ApplySetProfile(map[texindex.Channel]string{
		texindex.ChannelBaseColor: "/tex/set_basecolor.png",
		texindex.ChannelRoughness: "/tex/set_roughness.png",
	})

	if got := r.Resolve(skin, texindex.ChannelBaseColor); got != "/tex/set_basecolor.png" {
		t.Fatalf("profile basecolor = %q", got)
	}
	if got := r.Resolve(skin, texindex.ChannelRoughness); got != "/tex/set_roughness.png" {
		t.Fatalf("profile roughness = %q", got)
	}
	// The uncovered channel falls back to the submesh default.
	if got := r.Resolve(skin, texindex.ChannelNormal); got != "/tex/skin_normal.png" {
		t.Fatalf("uncovered channel = %q", got)
	}
}

func TestGlobalChannelStates(t *testing.T) {
	r := NewResolver()
	payload := twoMaterialPayload()
	r.AdoptPayload(payload)

	states := r.GlobalChannelStates()
	if st := states[texindex.ChannelBaseColor]; st.State != "mixed" {
		t.Fatalf("basecolor state = %+v, want mixed", st)
	}
	// Both materials resolve roughness to the shared ranked head.
	if st := states[texindex.ChannelRoughness]; st.State != "single" || st.Path != "/tex/shared_roughness.png" {
		t.Fatalf("roughness state = %+v", st)
	}

	// A global override forces agreement.
	r.SetGlobalOverride(texindex.ChannelBaseColor, "/ovr/base.png")
	states = r.GlobalChannelStates()
	if st := states[texindex.ChannelBaseColor]; st.State != "single" || st.Path != "/ovr/base.png" {
		t.Fatalf("overridden basecolor state = %+v", st)
	}
}

func TestOverridesRoundTrip(t *testing.T) {
	r := NewResolver()
	payload := twoMaterialPayload()
	r.AdoptPayload(payload)
	skinUID := payload.Submeshes[0].MaterialUID

	if data, err := r.EncodeOverrides(); err != nil || data != nil {
		t.Fatalf("empty encode = %s, %v", data, err)
	}

	r.SetGlobalOverride(texindex.ChannelBaseColor, "/ovr/base.png")
	r.SetMaterialOverride(skinUID, texindex.ChannelNormal, "/ovr/n.png")
	data, err := r.EncodeOverrides()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	restored := NewResolver()
	restored.AdoptPayload(twoMaterialPayload())
	if err := restored.ApplyOverridesJSON(data); err != nil {
		t.Fatalf("apply: %v", err)
	}
	sub := &restored.payload.Submeshes[0]
	if got := restored.Resolve(sub, texindex.ChannelBaseColor); got != "/ovr/base.png" {
		t.Fatalf("restored global = %q", got)
	}
	if got := restored.Resolve(sub, texindex.ChannelNormal); got != "/ovr/n.png" {
		t.Fatalf("restored material = %q", got)
	}

	if err := restored.ApplyOverridesJSON(nil); err != nil {
		t.Fatal(err)
	}
	if restored.HasOverrides() {
		t.Fatal("overrides survived a clear")
	}

	if err := restored.ApplyOverridesJSON([]byte("{not json")); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
