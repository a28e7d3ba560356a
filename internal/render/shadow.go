package render

import (
	"math"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/Faultbox/meshdeck/pkg/vecmath"
)

// Shadow status strings surfaced to the UI.
const (
	ShadowStatusOff             = "off"
	ShadowStatusOn              = "on"
	ShadowStatusNoContext       = "no context"
	ShadowStatusFBOIncomplete   = "fbo incomplete"
	ShadowStatusRuntimeFallback = "runtime fallback"
	ShadowStatusInitFailed      = "init failed"
	ShadowStatusUnsupported     = "unsupported"
)

// DefaultShadowResolution is used when the config leaves it unset.
const DefaultShadowResolution = 2048

// ShadowMap is a depth-only framebuffer for the directional light pass.
type ShadowMap struct {
	FBO          uint32
	DepthTexture uint32
	Resolution   int32
	Status       string
	prevViewport [4]int32
}

// NewShadowMap allocates the depth texture and framebuffer. On an
// incomplete framebuffer the resources are released and the status is
// recorded; the caller renders without shadows.
func NewShadowMap(resolution int32) *ShadowMap {
	if resolution <= 0 {
		resolution = DefaultShadowResolution
	}
	sm := &ShadowMap{Resolution: resolution}

	gl.GenFramebuffers(1, &sm.FBO)
	gl.BindFramebuffer(gl.FRAMEBUFFER, sm.FBO)

	gl.GenTextures(1, &sm.DepthTexture)
	gl.BindTexture(gl.TEXTURE_2D, sm.DepthTexture)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.DEPTH_COMPONENT24, resolution, resolution,
		0, gl.DEPTH_COMPONENT, gl.FLOAT, nil)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)

	// White border keeps geometry outside the light frustum lit.
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_BORDER)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_BORDER)
	border := []float32{1, 1, 1, 1}
	gl.TexParameterfv(gl.TEXTURE_2D, gl.TEXTURE_BORDER_COLOR, &border[0])

	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_COMPARE_MODE, gl.COMPARE_REF_TO_TEXTURE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_COMPARE_FUNC, gl.LEQUAL)

	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.TEXTURE_2D, sm.DepthTexture, 0)
	gl.DrawBuffer(gl.NONE)
	gl.ReadBuffer(gl.NONE)

	if status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER); status != gl.FRAMEBUFFER_COMPLETE {
		gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
		gl.DeleteFramebuffers(1, &sm.FBO)
		gl.DeleteTextures(1, &sm.DepthTexture)
		sm.FBO = 0
		sm.DepthTexture = 0
		sm.Status = ShadowStatusFBOIncomplete
		return sm
	}

	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	sm.Status = ShadowStatusOn
	return sm
}

// IsValid reports whether the depth pass can run.
func (sm *ShadowMap) IsValid() bool {
	return sm != nil && sm.FBO != 0 && sm.DepthTexture != 0
}

// Begin binds the depth framebuffer for the shadow pass, saving the
// viewport and applying a polygon offset against acne.
func (sm *ShadowMap) Begin() {
	gl.GetIntegerv(gl.VIEWPORT, &sm.prevViewport[0])

	gl.BindFramebuffer(gl.FRAMEBUFFER, sm.FBO)
	gl.Viewport(0, 0, sm.Resolution, sm.Resolution)
	gl.Clear(gl.DEPTH_BUFFER_BIT)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.Enable(gl.POLYGON_OFFSET_FILL)
	gl.PolygonOffset(1.1, 2.0)
	gl.Enable(gl.CULL_FACE)
	gl.CullFace(gl.FRONT)
}

// End restores the default framebuffer and the saved viewport.
func (sm *ShadowMap) End() {
	gl.Disable(gl.POLYGON_OFFSET_FILL)
	gl.CullFace(gl.BACK)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.Viewport(sm.prevViewport[0], sm.prevViewport[1], sm.prevViewport[2], sm.prevViewport[3])
}

// BindTexture binds the depth texture to a texture unit for sampling.
func (sm *ShadowMap) BindTexture(unit uint32) {
	gl.ActiveTexture(unit)
	gl.BindTexture(gl.TEXTURE_2D, sm.DepthTexture)
}

// Destroy releases the GL resources.
func (sm *ShadowMap) Destroy() {
	if sm.FBO != 0 {
		gl.DeleteFramebuffers(1, &sm.FBO)
		sm.FBO = 0
	}
	if sm.DepthTexture != 0 {
		gl.DeleteTextures(1, &sm.DepthTexture)
		sm.DepthTexture = 0
	}
}

// LightSpaceMatrix builds the directional light's view-projection for a
// normalized model: an orthographic frustum of extent 1.8 times the
// model radius looking at the grounded target.
func LightSpaceMatrix(lightPos vecmath.Vec3, modelRadius float32) vecmath.Mat4 {
	if modelRadius <= 0 {
		modelRadius = 1
	}
	extent := 1.8 * modelRadius
	far := float32(math.Max(12, float64(8*modelRadius)))

	target := vecmath.Vec3{X: 0, Y: -0.5 * modelRadius, Z: 0}
	view := vecmath.LookAt(lightPos, target, vecmath.Vec3{X: 0, Y: 1, Z: 0})
	proj := vecmath.Ortho(-extent, extent, -extent, extent, 0.1, far)
	return proj.Mul(view)
}
