package render

import (
	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/Faultbox/meshdeck/internal/loader"
)

const vertexStride = 8 * 4 // position(3) + normal(3) + uv(2), float32

// uploadMesh interleaves the payload attributes into one VBO and
// records per-submesh index ranges for ranged draws.
func uploadMesh(p *loader.MeshPayload) *gpuMesh {
	interleaved := make([]float32, 0, len(p.Vertices)*8)
	for i := range p.Vertices {
		interleaved = append(interleaved,
			p.Vertices[i][0], p.Vertices[i][1], p.Vertices[i][2])
		if i < len(p.Normals) {
			interleaved = append(interleaved,
				p.Normals[i][0], p.Normals[i][1], p.Normals[i][2])
		} else {
			interleaved = append(interleaved, 0, 1, 0)
		}
		if i < len(p.TexCoords) {
			interleaved = append(interleaved, p.TexCoords[i][0], p.TexCoords[i][1])
		} else {
			interleaved = append(interleaved, 0, 0)
		}
	}

	m := &gpuMesh{ranges: make([]drawRange, len(p.Submeshes))}
	offset := int32(0)
	for i := range p.Submeshes {
		count := int32(len(p.Submeshes[i].Indices))
		m.ranges[i] = drawRange{offset: offset, count: count}
		offset += count
	}

	gl.GenVertexArrays(1, &m.vao)
	gl.BindVertexArray(m.vao)

	gl.GenBuffers(1, &m.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, m.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(interleaved)*4, gl.Ptr(interleaved), gl.STATIC_DRAW)

	gl.GenBuffers(1, &m.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, m.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(p.Indices)*4, gl.Ptr(p.Indices), gl.STATIC_DRAW)

	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 3, gl.FLOAT, false, vertexStride, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointer(1, 3, gl.FLOAT, false, vertexStride, gl.PtrOffset(3*4))
	gl.EnableVertexAttribArray(2)
	gl.VertexAttribPointer(2, 2, gl.FLOAT, false, vertexStride, gl.PtrOffset(6*4))

	gl.BindVertexArray(0)
	return m
}

// initQuad allocates the full-screen background triangle strip.
func (r *Renderer) initQuad() {
	quad := []float32{
		-1, -1,
		1, -1,
		-1, 1,
		1, 1,
	}
	gl.GenVertexArrays(1, &r.quadVAO)
	gl.BindVertexArray(r.quadVAO)
	gl.GenBuffers(1, &r.quadVBO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.quadVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(quad)*4, gl.Ptr(quad), gl.STATIC_DRAW)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 2, gl.FLOAT, false, 2*4, gl.PtrOffset(0))
	gl.BindVertexArray(0)
}

// initGround allocates a large quad at y = -1, just under the unit
// ball, with the interleaved layout the shading program expects.
func (r *Renderer) initGround() {
	const ext = float32(6)
	verts := []float32{
		// x, y, z, nx, ny, nz, u, v
		-ext, -1, -ext, 0, 1, 0, 0, 0,
		ext, -1, -ext, 0, 1, 0, 4, 0,
		ext, -1, ext, 0, 1, 0, 4, 4,
		-ext, -1, ext, 0, 1, 0, 0, 4,
	}
	indices := []uint32{0, 2, 1, 0, 3, 2}

	gl.GenVertexArrays(1, &r.groundVAO)
	gl.BindVertexArray(r.groundVAO)
	gl.GenBuffers(1, &r.groundVBO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.groundVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(verts)*4, gl.Ptr(verts), gl.STATIC_DRAW)
	gl.GenBuffers(1, &r.groundEBO)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, r.groundEBO)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(indices)*4, gl.Ptr(indices), gl.STATIC_DRAW)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 3, gl.FLOAT, false, vertexStride, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointer(1, 3, gl.FLOAT, false, vertexStride, gl.PtrOffset(3*4))
	gl.EnableVertexAttribArray(2)
	gl.VertexAttribPointer(2, 2, gl.FLOAT, false, vertexStride, gl.PtrOffset(6*4))
	gl.BindVertexArray(0)
}

// drawBackground paints the vertical gradient with depth writes off.
func (r *Renderer) drawBackground() {
	gl.Disable(gl.DEPTH_TEST)
	r.background.Use()
	r.background.SetVec3("uTopColor", 0.16, 0.18, 0.22)
	r.background.SetVec3("uBottomColor", 0.05, 0.05, 0.07)
	gl.BindVertexArray(r.quadVAO)
	gl.DrawArrays(gl.TRIANGLE_STRIP, 0, 4)
	gl.BindVertexArray(0)
	gl.Enable(gl.DEPTH_TEST)
}

// drawGround draws the receiving plane with the shading program
// already active and its shared uniforms set.
func (r *Renderer) drawGround() {
	r.pbr.SetInt("uHasBaseMap", 0)
	r.pbr.SetInt("uHasMetalMap", 0)
	r.pbr.SetInt("uHasRoughMap", 0)
	r.pbr.SetInt("uHasNormalMap", 0)
	r.pbr.SetVec3("uBaseColorFactor", 0.22, 0.22, 0.24)
	r.pbr.SetFloat("uMetallicFactor", 0)
	r.pbr.SetFloat("uRoughnessFactor", 0.9)
	r.pbr.SetInt("uAlphaMode", int32(AlphaOpaque))
	r.pbr.SetFloat("uAlphaCutoff", 0.5)
	r.pbr.SetFloat("uAlphaBlendOpacity", 1)
	r.pbr.SetInt("uUseBaseAlphaInBlend", 0)

	gl.BindVertexArray(r.groundVAO)
	gl.DrawElements(gl.TRIANGLES, 6, gl.UNSIGNED_INT, gl.PtrOffset(0))
	gl.BindVertexArray(0)
}
