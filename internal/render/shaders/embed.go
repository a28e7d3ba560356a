// Package shaders provides embedded GLSL shader sources.
package shaders

import _ "embed"

// PBRVertexShader is the vertex shader for the forward model pass.
//
//go:embed pbr.vert
var PBRVertexShader string

// PBRFragmentShader is the Cook-Torrance fragment shader.
//
//go:embed pbr.frag
var PBRFragmentShader string

// DepthVertexShader is the vertex shader for the shadow depth pass.
//
//go:embed depth.vert
var DepthVertexShader string

// DepthFragmentShader is the depth-only fragment shader.
//
//go:embed depth.frag
var DepthFragmentShader string

// BackgroundVertexShader is the vertex shader for the gradient quad.
//
//go:embed background.vert
var BackgroundVertexShader string

// BackgroundFragmentShader is the fragment shader for the gradient quad.
//
//go:embed background.frag
var BackgroundFragmentShader string
