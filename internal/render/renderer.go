// Package render owns every GL resource: programs, framebuffers,
// textures, and the two-pass draw loop. All entry points must run on
// the thread that owns the GL context.
package render

import (
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Faultbox/meshdeck/internal/config"
	"github.com/Faultbox/meshdeck/internal/loader"
	"github.com/Faultbox/meshdeck/internal/logger"
	"github.com/Faultbox/meshdeck/internal/material"
	"github.com/Faultbox/meshdeck/internal/render/shaders"
	"github.com/Faultbox/meshdeck/internal/texindex"
	"github.com/Faultbox/meshdeck/pkg/vecmath"
)

// AlphaMode selects per-material transparency handling.
type AlphaMode int

const (
	AlphaOpaque AlphaMode = iota
	AlphaCutout
	AlphaBlend
)

// MaterialParams are the user-tunable per-material shading settings.
type MaterialParams struct {
	AlphaMode           AlphaMode
	AlphaCutoff         float32
	BlendOpacity        float32
	UseBaseAlphaInBlend bool
	TwoSided            bool
	BaseColorFactor     [3]float32
	MetallicFactor      float32
	RoughnessFactor     float32
}

// DefaultMaterialParams returns neutral shading settings.
func DefaultMaterialParams() MaterialParams {
	return MaterialParams{
		AlphaCutoff:     0.5,
		BlendOpacity:    1.0,
		BaseColorFactor: [3]float32{1, 1, 1},
		MetallicFactor:  1,
		RoughnessFactor: 1,
	}
}

// Light is one point light of the fixed two-light rig.
type Light struct {
	Position  vecmath.Vec3
	Color     [3]float32
	Intensity float32
}

// gpuMesh is the uploaded geometry plus per-submesh draw ranges.
type gpuMesh struct {
	vao, vbo, ebo uint32
	ranges        []drawRange
}

type drawRange struct {
	offset int32 // index offset into the EBO
	count  int32
}

// Renderer draws the adopted payload with a shadow pass and a forward
// Cook-Torrance pass over a gradient background and ground plane.
type Renderer struct {
	pbr        *Program
	depth      *Program
	background *Program

	shadow         *ShadowMap
	shadowsEnabled bool
	shadowStatus   string

	cache    *TextureCache
	Warmup   WarmupQueue
	Resolver *material.Resolver
	Camera   *OrbitCamera

	payload *loader.MeshPayload
	mesh    *gpuMesh

	quadVAO, quadVBO     uint32
	groundVAO, groundVBO uint32
	groundEBO            uint32

	materialParams map[string]MaterialParams
	ambient        float32
	lights         [2]Light
	modelRadius    float32

	log *zap.Logger
}

// NewRenderer compiles the programs and allocates the fixed scene
// geometry. Must be called with a current GL context.
func NewRenderer(cfg *config.ViewerConfig) (*Renderer, error) {
	r := &Renderer{
		cache:          NewTextureCache(),
		Resolver:       material.NewResolver(),
		Camera:         NewOrbitCamera(),
		materialParams: make(map[string]MaterialParams),
		ambient:        cfg.AmbientStrength,
		modelRadius:    1,
		shadowStatus:   ShadowStatusOff,
		log:            logger.Named("render"),
	}

	var err error
	if r.pbr, err = NewProgram(shaders.PBRVertexShader, shaders.PBRFragmentShader); err != nil {
		return nil, errors.Wrap(err, "pbr program")
	}
	if r.depth, err = NewProgram(shaders.DepthVertexShader, shaders.DepthFragmentShader); err != nil {
		return nil, errors.Wrap(err, "depth program")
	}
	if r.background, err = NewProgram(shaders.BackgroundVertexShader, shaders.BackgroundFragmentShader); err != nil {
		return nil, errors.Wrap(err, "background program")
	}

	r.lights = [2]Light{
		{Position: vecmath.Vec3{X: 2.5, Y: 3.0, Z: 2.0}, Color: [3]float32{1, 0.98, 0.92}, Intensity: 3.2},
		{Position: vecmath.Vec3{X: -2.0, Y: 1.2, Z: -1.5}, Color: [3]float32{0.55, 0.65, 0.9}, Intensity: 1.1},
	}

	r.initQuad()
	r.initGround()

	if cfg.ShadowsEnabled {
		r.EnableShadows(cfg.ShadowResolution)
	}
	return r, nil
}

// EnableShadows (re)creates the shadow map and updates the status.
func (r *Renderer) EnableShadows(resolution int32) {
	if r.shadow != nil {
		r.shadow.Destroy()
		r.shadow = nil
	}
	sm := NewShadowMap(resolution)
	if !sm.IsValid() {
		r.shadowsEnabled = false
		r.shadowStatus = sm.Status
		r.log.Warn("shadow init failed", zap.String("status", sm.Status))
		return
	}
	r.shadow = sm
	r.shadowsEnabled = true
	r.shadowStatus = ShadowStatusOn
}

// DisableShadows turns the shadow pass off, keeping the reason.
func (r *Renderer) DisableShadows(status string) {
	r.shadowsEnabled = false
	if status != "" {
		r.shadowStatus = status
	} else {
		r.shadowStatus = ShadowStatusOff
	}
}

// ShadowStatus returns the textual shadow state for the status line.
func (r *Renderer) ShadowStatus() string { return r.shadowStatus }

// SetMaterialParams stores per-material shading settings.
func (r *Renderer) SetMaterialParams(materialUID string, params MaterialParams) {
	r.materialParams[materialUID] = params
}

// MaterialParamsFor returns the stored settings for a material, or the
// defaults when none were set.
func (r *Renderer) MaterialParamsFor(materialUID string) MaterialParams {
	return r.paramsFor(materialUID)
}

func (r *Renderer) paramsFor(materialUID string) MaterialParams {
	if p, ok := r.materialParams[materialUID]; ok {
		return p
	}
	return DefaultMaterialParams()
}

// seedTwoSidedParams marks materials the payload declares double-sided,
// preserving any settings already stored for them.
func seedTwoSidedParams(p *loader.MeshPayload, params map[string]MaterialParams) {
	for i := range p.Submeshes {
		sub := &p.Submeshes[i]
		if !sub.TwoSided {
			continue
		}
		mp, ok := params[sub.MaterialUID]
		if !ok {
			mp = DefaultMaterialParams()
		}
		mp.TwoSided = true
		params[sub.MaterialUID] = mp
	}
}

// AdoptPayload uploads the payload's geometry and queues the non-base
// texture warm-up.
func (r *Renderer) AdoptPayload(p *loader.MeshPayload) error {
	if len(p.Vertices) < 3 {
		return errors.New("payload has no drawable geometry")
	}
	r.releaseMesh()

	r.payload = p
	seedTwoSidedParams(p, r.materialParams)
	r.Resolver.AdoptPayload(p)
	r.Warmup.Fill(p)
	r.mesh = uploadMesh(p)
	r.modelRadius = 1 // geometry is normalized to the unit ball

	r.log.Debug("payload adopted",
		zap.Int("vertices", len(p.Vertices)),
		zap.Int("submeshes", len(p.Submeshes)))
	return nil
}

// ReleasePayload drops the mesh, clears overrides, and queues texture
// deletion for the next context activation.
func (r *Renderer) ReleasePayload() {
	r.releaseMesh()
	r.payload = nil
	r.Resolver.Release()
	r.Warmup.Clear()
	r.materialParams = make(map[string]MaterialParams)
	r.cache.InvalidateAll()
}

func (r *Renderer) releaseMesh() {
	if r.mesh == nil {
		return
	}
	gl.DeleteVertexArrays(1, &r.mesh.vao)
	gl.DeleteBuffers(1, &r.mesh.vbo)
	gl.DeleteBuffers(1, &r.mesh.ebo)
	r.mesh = nil
}

// TickWarmup uploads at most one queued texture. Returns the remaining
// queue length.
func (r *Renderer) TickWarmup() int {
	if path, ok := r.Warmup.Next(); ok {
		if _, _, err := r.cache.Get(path); err != nil {
			r.log.Debug("warmup skip", zap.String("path", path), zap.Error(err))
		}
	}
	return r.Warmup.Pending()
}

// RenderFrame draws one frame into the current framebuffer.
func (r *Renderer) RenderFrame(width, height int32) {
	r.cache.FlushDeletions()

	gl.Viewport(0, 0, width, height)
	gl.ClearColor(0, 0, 0, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

	r.drawBackground()

	if r.payload == nil || r.mesh == nil {
		return
	}

	aspect := float32(width) / float32(max32(height, 1))
	view := r.Camera.ViewMatrix()
	proj := vecmath.Perspective(0.9, aspect, 0.05, 100)
	model := vecmath.Identity()
	lightSpace := LightSpaceMatrix(r.lights[0].Position, r.modelRadius)

	if r.shadowsEnabled && r.shadow.IsValid() {
		r.renderShadowPass(&model, &lightSpace)
	}

	r.renderForwardPass(&model, &view, &proj, &lightSpace)
}

func (r *Renderer) renderShadowPass(model, lightSpace *vecmath.Mat4) {
	// Clear any stale error so pass failure detection is accurate.
	for gl.GetError() != gl.NO_ERROR {
	}

	r.shadow.Begin()
	r.depth.Use()
	r.depth.SetMat4("uModel", model.Ptr())
	r.depth.SetMat4("uLightSpace", lightSpace.Ptr())

	gl.BindVertexArray(r.mesh.vao)
	for i, sub := range r.payload.Submeshes {
		params := r.paramsFor(sub.MaterialUID)
		// Blend-mode materials cast no shadow.
		if params.AlphaMode == AlphaBlend {
			continue
		}
		// Front-face culling would drop two-sided geometry entirely.
		if params.TwoSided {
			gl.Disable(gl.CULL_FACE)
		}
		rng := r.mesh.ranges[i]
		gl.DrawElements(gl.TRIANGLES, rng.count, gl.UNSIGNED_INT, gl.PtrOffset(int(rng.offset)*4))
		if params.TwoSided {
			gl.Enable(gl.CULL_FACE)
		}
	}
	gl.BindVertexArray(0)
	r.shadow.End()

	if gl.GetError() != gl.NO_ERROR {
		r.DisableShadows(ShadowStatusRuntimeFallback)
		r.log.Warn("shadow pass failed, disabling shadows")
	}
}

func (r *Renderer) renderForwardPass(model, view, proj, lightSpace *vecmath.Mat4) {
	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)

	r.pbr.Use()
	r.pbr.SetMat4("uModel", model.Ptr())
	r.pbr.SetMat4("uView", view.Ptr())
	r.pbr.SetMat4("uProjection", proj.Ptr())
	r.pbr.SetMat4("uLightSpace", lightSpace.Ptr())
	r.pbr.SetFloat("uAmbientStrength", r.ambient)
	r.setLightUniforms(view)

	shadowOn := int32(0)
	if r.shadowsEnabled && r.shadow.IsValid() {
		r.shadow.BindTexture(gl.TEXTURE4)
		shadowOn = 1
	}
	r.pbr.SetInt("uShadowsEnabled", shadowOn)
	r.pbr.SetInt("uShadowMap", 4)

	r.drawGround()

	gl.Enable(gl.CULL_FACE)
	gl.CullFace(gl.BACK)

	gl.BindVertexArray(r.mesh.vao)

	// Opaque and cutout first, blend last.
	for pass := 0; pass < 2; pass++ {
		blendPass := pass == 1
		if blendPass {
			gl.Enable(gl.BLEND)
			gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
			gl.DepthMask(false)
		}
		for i := range r.payload.Submeshes {
			sub := &r.payload.Submeshes[i]
			params := r.paramsFor(sub.MaterialUID)
			if (params.AlphaMode == AlphaBlend) != blendPass {
				continue
			}
			if params.TwoSided {
				gl.Disable(gl.CULL_FACE)
			}
			r.drawSubmesh(sub, r.mesh.ranges[i], params)
			if params.TwoSided {
				gl.Enable(gl.CULL_FACE)
			}
		}
		if blendPass {
			gl.DepthMask(true)
			gl.Disable(gl.BLEND)
		}
	}
	gl.BindVertexArray(0)
	gl.Disable(gl.CULL_FACE)
}

func (r *Renderer) setLightUniforms(view *vecmath.Mat4) {
	for i, light := range r.lights {
		pos := view.TransformPoint([3]float32{light.Position.X, light.Position.Y, light.Position.Z})
		name := "uLightPos0"
		colorName := "uLightColor0"
		if i == 1 {
			name = "uLightPos1"
			colorName = "uLightColor1"
		}
		r.pbr.SetVec3(name, pos[0], pos[1], pos[2])
		r.pbr.SetVec3(colorName,
			light.Color[0]*light.Intensity,
			light.Color[1]*light.Intensity,
			light.Color[2]*light.Intensity)
	}
}

// drawSubmesh resolves and binds the submesh's textures, pushes the
// material uniforms, and issues the indexed draw.
func (r *Renderer) drawSubmesh(sub *loader.Submesh, rng drawRange, params MaterialParams) {
	bind := func(unit uint32, slot string, flag string, ch texindex.Channel) {
		path := r.Resolver.Resolve(sub, ch)
		if path == "" {
			r.pbr.SetInt(flag, 0)
			return
		}
		id, _, err := r.cache.Get(path)
		if err != nil {
			r.pbr.SetInt(flag, 0)
			return
		}
		gl.ActiveTexture(gl.TEXTURE0 + unit)
		gl.BindTexture(gl.TEXTURE_2D, id)
		r.pbr.SetInt(slot, int32(unit))
		r.pbr.SetInt(flag, 1)
	}

	bind(0, "uBaseMap", "uHasBaseMap", texindex.ChannelBaseColor)
	bind(1, "uMetalMap", "uHasMetalMap", texindex.ChannelMetal)
	bind(2, "uRoughMap", "uHasRoughMap", texindex.ChannelRoughness)
	bind(3, "uNormalMap", "uHasNormalMap", texindex.ChannelNormal)

	r.pbr.SetVec3("uBaseColorFactor",
		params.BaseColorFactor[0], params.BaseColorFactor[1], params.BaseColorFactor[2])
	r.pbr.SetFloat("uMetallicFactor", params.MetallicFactor)
	r.pbr.SetFloat("uRoughnessFactor", params.RoughnessFactor)
	r.pbr.SetInt("uAlphaMode", int32(params.AlphaMode))
	r.pbr.SetFloat("uAlphaCutoff", params.AlphaCutoff)
	r.pbr.SetFloat("uAlphaBlendOpacity", params.BlendOpacity)
	// Base alpha only participates in blending when the bound base map
	// actually carries a non-opaque pixel.
	useBaseAlpha := int32(0)
	if params.UseBaseAlphaInBlend {
		if base := r.Resolver.Resolve(sub, texindex.ChannelBaseColor); base != "" && r.cache.HasAlpha(base) {
			useBaseAlpha = 1
		}
	}
	r.pbr.SetInt("uUseBaseAlphaInBlend", useBaseAlpha)

	gl.DrawElements(gl.TRIANGLES, rng.count, gl.UNSIGNED_INT, gl.PtrOffset(int(rng.offset)*4))
}

// Destroy releases every GL resource the renderer owns.
func (r *Renderer) Destroy() {
	r.releaseMesh()
	if r.shadow != nil {
		r.shadow.Destroy()
	}
	r.cache.Destroy()
	if r.pbr != nil {
		r.pbr.Destroy()
	}
	if r.depth != nil {
		r.depth.Destroy()
	}
	if r.background != nil {
		r.background.Destroy()
	}
	if r.quadVAO != 0 {
		gl.DeleteVertexArrays(1, &r.quadVAO)
		gl.DeleteBuffers(1, &r.quadVBO)
	}
	if r.groundVAO != 0 {
		gl.DeleteVertexArrays(1, &r.groundVAO)
		gl.DeleteBuffers(1, &r.groundVBO)
		gl.DeleteBuffers(1, &r.groundEBO)
	}
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}
